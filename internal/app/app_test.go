// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/app"
	"github.com/JakeFAU/magazine-archive/internal/config"
	"github.com/JakeFAU/magazine-archive/internal/extract"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5},
		Archive: config.ArchiveConfig{Extension: ".pdf"},
		Ingest: config.IngestConfig{
			StagingDir:            t.TempDir(),
			UploadTimeoutSeconds:  5,
			DBTimeoutSeconds:      5,
			ExtractTimeoutSeconds: 5,
		},
		HTTP: config.HTTPConfig{
			UserAgent:      "magazine-archive-test",
			TimeoutSeconds: 5,
			MaxBytes:       1 << 20,
		},
		Storage: config.StorageConfig{
			Backend:       config.BackendMemory,
			Prefix:        "magazines",
			PublicBaseURL: "https://cdn.example",
		},
		Search: config.SearchConfig{Backend: config.BackendMemory, SnippetRunes: 80},
	}
}

func archiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/archive", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<html><body>
<a href="/docs/spring-1995.pdf">Spring 1995</a>
<a href="/about">About</a>
</body></html>`)
	})
	mux.HandleFunc("/docs/spring-1995.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 spring issue"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewWithoutArchiveDisablesIngest(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.Nil(t, a.Orchestrator)
	require.NotNil(t, a.Query)
	require.NotNil(t, a.Reconciler)
	require.NoError(t, a.Ping(context.Background()))

	rec := httptest.NewRecorder()
	a.Server(context.Background()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestThenQueryThroughServer(t *testing.T) {
	t.Parallel()

	srv := archiveServer(t)
	cfg := memoryConfig(t)
	cfg.Archive.URL = srv.URL + "/archive"

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	require.NotNil(t, a.Orchestrator)

	report, err := a.Orchestrator.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Counters.Discovered)
	require.Equal(t, 1, report.Counters.Created)
	require.Empty(t, report.Failures)

	rec := httptest.NewRecorder()
	a.Server(context.Background()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/magazines/spring_1995", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "spring-1995", body["id"])
	require.Equal(t, "1995-03-21", body["date"])
	require.Equal(t, "magazines/spring-1995.pdf", body["documentKey"])
	require.Equal(t, "https://cdn.example/magazines/spring-1995.pdf", body["documentURL"])

	reconciled, err := a.Reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reconciled.Checked)
	require.Empty(t, reconciled.Missing)
}

func TestNewWithBleveIndex(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Search.Backend = config.BackendBleve

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Storage.Backend = "tape"
	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unsupported storage backend")

	cfg = memoryConfig(t)
	cfg.Search.Backend = "grep"
	_, err = app.New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unsupported search backend")
}

func TestBuildExtractor(t *testing.T) {
	t.Parallel()

	require.Equal(t, extract.Noop{}, app.BuildExtractor(config.ExtractConfig{}, 0))

	chain, ok := app.BuildExtractor(config.ExtractConfig{
		Command: []string{"pdftotext", "-layout", "{in}", "-"},
		Native:  true,
	}, 0).(extract.Chain)
	require.True(t, ok)
	require.Len(t, chain, 2)

	cmd, ok := chain[0].(*extract.Command)
	require.True(t, ok)
	require.Equal(t, "pdftotext", cmd.Name)
	require.Equal(t, []string{"-layout", "{in}", "-"}, cmd.Args)
	require.Equal(t, extract.PDF{}, chain[1])
}
