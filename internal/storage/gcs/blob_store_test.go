package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutUploadsObject(t *testing.T) {
	t.Parallel()

	var gotName, gotBody string
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprintln(w, `{"name": "magazines/spring-1995.pdf", "bucket": "test-bucket"}`)
	}))

	err := store.Put(context.Background(), "magazines/spring-1995.pdf", "application/pdf", []byte("%PDF-data"))
	require.NoError(t, err)
	assert.Equal(t, "magazines/spring-1995.pdf", gotName)
	assert.Contains(t, gotBody, "%PDF-data")
	assert.Equal(t, "gs://test-bucket/magazines/spring-1995.pdf", store.URI("magazines/spring-1995.pdf"))
}

func TestPutServerError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := store.Put(context.Background(), "magazines/x.pdf", "", []byte("x"))
	require.Error(t, err)

	err = store.Put(context.Background(), " ", "", []byte("x"))
	require.Error(t, err)
}

func TestExists(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "present.pdf") {
			fmt.Fprintln(w, `{"name": "present.pdf", "bucket": "test-bucket", "size": "3"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"error": {"code": 404, "message": "No such object"}}`)
	}))

	ok, err := store.Exists(context.Background(), "present.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "absent.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}
