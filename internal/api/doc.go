// Package api hosts the HTTP server, middleware, and REST handlers for the
// dictionary service. Notable routes:
//   - POST /api/v1/dict/generate to start a dictionary run.
//   - GET /api/v1/dict/{dict_name}/status, /statistics and /download.
//   - DELETE /api/v1/dict/{dict_name} to drop an entry and its artifact.
//   - GET /api/v1/dict for an operator listing.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus scraping.
package api
