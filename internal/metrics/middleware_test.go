package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/magazines/{idOrSlug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/magazines", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before404 := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))
	before200 := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))
	seriesBefore := testutil.CollectAndCount(httpRequestDurationSeconds)

	for _, path := range []string{"/magazines/spring-1995", "/magazines/summer-1996", "/magazines"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, before404+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404")))
	require.Equal(t, before200+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")))
	// Identifiers collapse into the route pattern: at most one new series per route.
	require.LessOrEqual(t, testutil.CollectAndCount(httpRequestDurationSeconds)-seriesBefore, 2)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestMiddlewareOutsideRouter(t *testing.T) {
	Init()
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/raw", nil))
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "418")))
}
