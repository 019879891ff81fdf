// Package inbox feeds receipt photos dropped into a kiosk directory through
// the validation pipeline. A file named <phone>_<anything>.jpg is credited to
// that phone number; processed files move to processed/, files that could
// not be handled move to failed/.
package inbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"loyalty/pkg/pipeline"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	defaultDebounce = 300 * time.Millisecond
)

var phonePrefixRE = regexp.MustCompile(`^\+?\d{7,15}$`)

type Validator interface {
	Validate(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

type Options struct {
	Dir     string
	StoreID uint
	Workers int
	// Debounce is how long a new file must stay quiet before it is picked up.
	Debounce time.Duration
}

type Inbox struct {
	opts   Options
	v      Validator
	logger *zap.Logger
}

func New(opts Options, v Validator, logger *zap.Logger) *Inbox {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{opts: opts, v: v, logger: logger}
}

// IsSupported reports whether name looks like an image upload.
func IsSupported(name string) bool {
	if strings.HasPrefix(name, ".") || strings.Contains(name, ".ocr.") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// PhoneFromName returns the phone prefix of a <phone>_<rest> filename, or "".
func PhoneFromName(name string) string {
	base := filepath.Base(name)
	i := strings.IndexByte(base, '_')
	if i <= 0 {
		return ""
	}
	if p := base[:i]; phonePrefixRE.MatchString(p) {
		return p
	}
	return ""
}

// ListImages returns the supported files directly inside dir, sorted.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Stats counts what one run did.
type Stats struct {
	mu       sync.Mutex
	ByStatus map[string]int
	Failed   int
}

func (s *Stats) record(status string, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed {
		s.Failed++
		return
	}
	if s.ByStatus == nil {
		s.ByStatus = map[string]int{}
	}
	s.ByStatus[status]++
}

// RunOnce processes the files currently in the directory and returns when
// all of them are done.
func (ib *Inbox) RunOnce(ctx context.Context) (*Stats, error) {
	files, err := ListImages(ib.opts.Dir)
	if err != nil {
		return nil, err
	}
	ib.logger.Info("inbox scan", zap.String("dir", ib.opts.Dir), zap.Int("files", len(files)))
	ch := make(chan string, len(files))
	for _, f := range files {
		ch <- f
	}
	close(ch)
	stats := &Stats{}
	ib.runWorkers(ctx, ch, stats)
	return stats, nil
}

// Watch processes the current files and then every new file until ctx is
// cancelled.
func (ib *Inbox) Watch(ctx context.Context) (*Stats, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer w.Close()
	if err := w.Add(ib.opts.Dir); err != nil {
		return nil, err
	}
	initial, err := ListImages(ib.opts.Dir)
	if err != nil {
		return nil, err
	}
	ib.logger.Info("watching inbox", zap.String("dir", ib.opts.Dir), zap.Int("initial", len(initial)))

	ch := make(chan string, 256)
	go func() {
		defer close(ch)
		for _, f := range initial {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
		ib.debounce(ctx, w, ch)
	}()
	stats := &Stats{}
	ib.runWorkers(ctx, ch, stats)
	return stats, nil
}

// debounce forwards a created or rewritten file once it has been quiet for
// the debounce interval.
func (ib *Inbox) debounce(ctx context.Context, w *fsnotify.Watcher, out chan<- string) {
	pending := map[string]time.Time{}
	ticker := time.NewTicker(ib.opts.Debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != filepath.Clean(ib.opts.Dir) || !IsSupported(name) {
				continue
			}
			pending[name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) < ib.opts.Debounce {
					continue
				}
				delete(pending, name)
				select {
				case out <- name:
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			ib.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (ib *Inbox) runWorkers(ctx context.Context, files <-chan string, stats *Stats) {
	var wg sync.WaitGroup
	for i := 0; i < ib.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range files {
				status, err := ib.processFile(ctx, name)
				stats.record(status, err != nil)
			}
		}()
	}
	wg.Wait()
}

func (ib *Inbox) processFile(ctx context.Context, name string) (string, error) {
	src := filepath.Join(ib.opts.Dir, name)
	log := ib.logger.With(zap.String("file", name))
	buf, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			// picked up twice; the first worker already moved it
			return "", nil
		}
		log.Warn("read failed", zap.Error(err))
		return "", ib.fail(src, name, err)
	}
	res, err := ib.v.Validate(ctx, pipeline.Input{
		Image:         buf,
		Filename:      name,
		Store:         pipeline.ExplicitStore(ib.opts.StoreID),
		CustomerPhone: PhoneFromName(name),
	})
	if err != nil {
		log.Error("validation failed", zap.Error(err))
		return "", ib.fail(src, name, err)
	}
	fields := []zap.Field{zap.String("status", res.Status), zap.String("reason", res.Reason)}
	if res.ReceiptID != nil {
		fields = append(fields, zap.Uint("receipt_id", *res.ReceiptID))
	}
	if res.RewardCode != "" {
		fields = append(fields, zap.String("reward_code", res.RewardCode))
	}
	log.Info("receipt processed", fields...)
	if err := moveTo(src, filepath.Join(ib.opts.Dir, ProcessedDir), name); err != nil {
		log.Warn("move to processed failed", zap.Error(err))
	}
	return res.Status, nil
}

func (ib *Inbox) fail(src, name string, cause error) error {
	if err := moveTo(src, filepath.Join(ib.opts.Dir, FailedDir), name); err != nil {
		ib.logger.Warn("move to failed dir failed", zap.String("file", name), zap.Error(err))
	}
	return cause
}

// moveTo moves src into dir, renaming when possible and copying otherwise.
func moveTo(src, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyRemove(src, dst)
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
