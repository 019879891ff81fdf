package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	id := uint(7)
	require.Equal(t, "store-7", BucketFor(&id))
	require.Equal(t, UnassignedBucket, BucketFor(nil))
}

func TestObjectKeyLayout(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	key, err := objectKey("store-7", "IMG_001.PNG", now)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "store-7/2024/03/"), key)
	require.True(t, strings.HasSuffix(key, ".png"), key)

	key, err = objectKey("unassigned", "upload", now)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(key, ".jpg"), key)

	_, err = objectKey("../etc", "a.jpg", now)
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	p, err := l.Save(ctx, []byte("image-bytes"), "store-1", "r.jpg")
	require.NoError(t, err)
	ok, err := l.Exists(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	b, err := l.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "image-bytes", string(b))

	require.NoError(t, l.Delete(ctx, p))
	ok, err = l.Exists(ctx, p)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = l.Get(ctx, p)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	for _, p := range []string{"../secret", "/etc/passwd", "a/../../b", ""} {
		_, err := l.Get(context.Background(), p)
		require.ErrorIs(t, err, ErrInvalidPath, p)
	}
}

// fakeS3 answers path-style object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[key] = b
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		b, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Write(b)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s, err := NewS3(ctx, S3Config{Bucket: "receipts", Region: "us-east-1", AccessKey: "test", SecretKey: "test", Endpoint: srv.URL})
	require.NoError(t, err)

	p, err := s.Save(ctx, []byte("jpeg"), "store-2", "x.jpg")
	require.NoError(t, err)
	require.Contains(t, fake.objects, "/receipts/"+p)

	ok, err := s.Exists(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	b, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(b))

	require.NoError(t, s.Delete(ctx, p))
	ok, err = s.Exists(ctx, p)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = s.Get(ctx, p)
	require.ErrorIs(t, err, ErrNotFound)
}
