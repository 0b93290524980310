// Package main is the dictgen service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes generate, status, statistics, download, delete and listing routes plus
//     health, readiness and Prometheus endpoints. Requests are validated and handed to the job manager.
//   - Job lifecycle: internal/jobs.Manager claims a registry entry per dictionary name, detaches one run per claim and
//     writes its terminal state exactly once. Deleting an entry never stops its run; the late write is discarded.
//   - Fan-out: internal/orchestrator launches every fetch of a run at once. Each fetch takes a permit from the single
//     process-wide internal/limiter pool, optionally waits on the outbound pacer, and calls the word API. The first
//     failure cancels the rest of that run only.
//   - Persistence: completed dictionaries are written as "word: pronunciation, definition" lines to the configured
//     backend (local directory, memory, GCS or Postgres) and read back at startup to rebuild the registry.
//   - Events: lifecycle events flow through a non-blocking batching hub to Prometheus collectors plus an optional log
//     or Pub/Sub sink.
//
// Quick checklist:
//   - Configure env vars: DICTGEN_SERVER_PORT (or PORT), DICTGEN_LIMITER_MAX_CONCURRENT_REQUESTS (or
//     MAX_CONCURRENT_REQUESTS), DICTGEN_STORAGE_BACKEND and the backend's settings, DICTGEN_EVENTS_SINK.
//   - Run locally: go run . serve --config config.yaml (or rely solely on env overrides and .env).
package main

import (
	"github.com/JakeFAU/dictgen/cmd"
)

func main() {
	cmd.Execute()
}
