// Package main hosts the scraper service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and the POST /scrape endpoint. A request carries a
//     list of URLs plus optional per-batch overrides (max_concurrent, timeout_per_url) and receives one result per
//     URL in input order along with aggregate statistics.
//   - Batch pipeline: internal/batch.Orchestrator fans the URLs out over a bounded worker pool. Each URL flows
//     through sanitization, the compliance gatekeeper, the per-domain rate limiter, the retrying fetch client, and
//     the extraction pipeline. A failure on one URL never affects the others.
//   - Compliance: internal/policy/gatekeeper evaluates robots.txt rules and machine-readable text-and-data-mining
//     opt-out signals (X-TDM-Opt-Out / TDM-Reservation headers before the fetch, tdm-reservation and robots
//     noai/noimageai meta tags after). Undeterminable rules fail open; blocked URLs are never fetched or mined.
//   - Rate limiting: internal/policy/ratelimit enforces a per-domain minimum spacing of one second, raised to the
//     crawl-delay a site declares in robots.txt.
//   - Extraction: internal/extract runs readability first and a goquery heuristic as fallback, producing title,
//     body text, author, and publication time.
//   - Observability: zap provides structured logging; Prometheus metrics are exported via the metrics middleware
//     and /metrics handler; internal/audit batches pipeline milestones to log and Prometheus sinks.
//
// Operational notes:
//   - Configure env vars with the SCRAPER_ prefix: SCRAPER_SERVER_PORT, SCRAPER_SCRAPER_CONCURRENCY,
//     SCRAPER_SCRAPER_USER_AGENT, SCRAPER_HTTP_TIMEOUT_SECONDS, SCRAPER_HTTP_POOL_SIZE,
//     SCRAPER_COMPLIANCE_DEFAULT_CRAWL_DELAY_SECONDS, or supply a YAML file via -config.
//   - Run locally: go run ./cmd/scraperd -config config.yaml (or rely solely on env overrides).
//   - The process is stateless across requests and reacts to SIGINT/SIGTERM with a graceful drain of the HTTP
//     server and the audit hub.
package main
