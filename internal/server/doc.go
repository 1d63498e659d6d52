// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package server exposes the matching engine over HTTP.

Every endpoint speaks the same JSON envelope (APIResponse): success flag,
payload or error, and metadata carrying the request ID and timing. The
X-Request-ID header is honored when the client sends one and generated
otherwise, and rides the logging context through every event a request
emits.

Routes:

	GET  /healthz                    liveness
	GET  /readyz                     storage-backed readiness
	GET  /metrics                    Prometheus exposition
	GET  /api/v1/stats               engine counters
	GET  /api/v1/items               list reports (type, user_id, resolved filters)
	POST /api/v1/items               register a report
	GET  /api/v1/items/{id}          fetch a report
	PUT  /api/v1/items/{id}          replace describable fields
	DEL  /api/v1/items/{id}          remove a report
	POST /api/v1/items/{id}/resolve  mark recovered, cross-link counterpart
	POST /api/v1/items/{id}/matches  run the matching pipeline now
	GET  /api/v1/runs                query run history
	GET  /api/v1/runs/{id}           fetch one run record

The /api/v1 group is rate limited per client IP (configurable, 100/min
by default) and instrumented per route pattern. The match trigger is
synchronous: the response carries the ranked matches and any
notification intents are published to the bus before it returns.

The package only assembles the router and http.Server; starting and
stopping belong to the supervisor tree.
*/
package server
