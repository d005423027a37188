// Package api hosts the HTTP server, middleware, and REST handlers for the
// magazine archive. Notable routes:
//   - GET /magazines, /magazines/search?q= and /magazines/{idOrSlug} for readers.
//   - POST /v1/ingest to start an ingestion run (API key protected when enabled).
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
