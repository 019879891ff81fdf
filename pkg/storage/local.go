package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Local stores images below a base directory.
type Local struct {
	base string
	now  func() time.Time
}

func NewLocal(base string) (*Local, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Local{base: base, now: time.Now}, nil
}

func (l *Local) full(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.base, filepath.FromSlash(key)), nil
}

func (l *Local) Save(ctx context.Context, buf []byte, bucketKey, originalName string) (string, error) {
	key, err := objectKey(bucketKey, originalName, l.now())
	if err != nil {
		return "", err
	}
	dst, _ := l.full(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, buf, 0o644); err != nil {
		return "", err
	}
	return key, nil
}

func (l *Local) Get(ctx context.Context, p string) ([]byte, error) {
	f, err := l.full(p)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (l *Local) Delete(ctx context.Context, p string) error {
	f, err := l.full(p)
	if err != nil {
		return err
	}
	err = os.Remove(f)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	f, err := l.full(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(f)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
