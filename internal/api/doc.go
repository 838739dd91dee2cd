// Package api hosts the ops HTTP server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/runs and /api/runs/{run_id} for read-only scraping run status
//     via the store.RunRepository interface.
package api
