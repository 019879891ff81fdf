package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"loyalty/models"
)

// DefaultTTL is how long a loaded settings row is served from memory.
const DefaultTTL = 5 * time.Minute

var (
	// ErrNotFound is returned by a Source that has no settings row yet.
	ErrNotFound = errors.New("settings row not found")
	// ErrInvalid wraps validation failures from Update.
	ErrInvalid = errors.New("invalid settings")
)

type Source interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Provider caches settings from a Source. It is safe for concurrent use.
type Provider struct {
	source   Source
	ttl      time.Duration
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	mu       sync.Mutex
	cached   *Settings
	loadedAt time.Time
}

func NewProvider(source Source, ttl time.Duration, logger *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{source: source, ttl: ttl, logger: logger, validate: validator.New(), now: time.Now}
}

// Get never fails. A missing row caches the defaults like a loaded row; a
// read error serves the defaults without caching so the next call retries.
func (p *Provider) Get(ctx context.Context) Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if p.cached != nil && now.Sub(p.loadedAt) < p.ttl {
		return p.cached.clone()
	}
	s, err := p.source.Load(ctx)
	switch {
	case err == nil:
		p.cached, p.loadedAt = s, now
	case errors.Is(err, ErrNotFound):
		p.logger.Info("settings row missing, using defaults")
		d := Defaults()
		p.cached, p.loadedAt = &d, now
	default:
		p.logger.Warn("settings load failed, using defaults", zap.Error(err))
		return Defaults()
	}
	return p.cached.clone()
}

// Invalidate drops the cached value.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// Update validates and persists s, then invalidates the cache.
func (p *Provider) Update(ctx context.Context, s Settings, by string) (Settings, error) {
	s.AllowedTINs = normalizeTINs(s.AllowedTINs)
	if err := p.validate.Struct(s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s.MinReceiptAmount.IsNegative() {
		return Settings{}, fmt.Errorf("%w: minReceiptAmount must not be negative", ErrInvalid)
	}
	s.MinReceiptAmount = s.MinReceiptAmount.Round(2)
	s.UpdatedBy = by
	s.UpdatedAt = p.now()
	if err := p.source.Save(ctx, s); err != nil {
		return Settings{}, err
	}
	p.Invalidate()
	p.logger.Info("settings updated", zap.String("by", by))
	return s, nil
}

func normalizeTINs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		d := models.DigitsOnly(t)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
