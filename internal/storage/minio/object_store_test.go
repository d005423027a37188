package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeS3 implements just enough of the S3 API for bucket checks, puts and stats.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if _, ok := r.URL.Query()["location"]; ok {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
		return
	}
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		data, ok := f.objects[bucket+"/"+key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newFakeStore(t *testing.T) (*ObjectStore, *fakeS3) {
	t.Helper()

	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	store, err := New(context.Background(), Config{
		Endpoint:  u.Host,
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
		Bucket:    "magazines",
	})
	require.NoError(t, err)
	return store, fake
}

func TestNewCreatesBucket(t *testing.T) {
	t.Parallel()

	_, fake := newFakeStore(t)
	require.True(t, fake.buckets["magazines"])
}

func TestPutAndExists(t *testing.T) {
	t.Parallel()

	store, fake := newFakeStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "archive/spring-1995.pdf")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, "archive/spring-1995.pdf", "application/pdf", []byte("%PDF")))
	require.Equal(t, []byte("%PDF"), fake.objects["magazines/archive/spring-1995.pdf"])

	ok, err = store.Exists(ctx, "archive/spring-1995.pdf")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Bucket: "b"})
	require.Error(t, err)
	_, err = New(context.Background(), Config{Endpoint: "localhost:9000"})
	require.Error(t, err)
}
