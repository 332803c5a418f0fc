/*
Package metrics provides Prometheus metrics collection and exposition
for the client, worker, and shredder agents.

Metrics are registered once at package init via prometheus.MustRegister
and exposed over HTTP by Handler, which agents mount under /metrics
alongside the health, readiness, and liveness endpoints from health.go.
Timer offers a small helper for observing operation duration into a
histogram or histogram vector.

Each agent mode touches a different subset of these metrics: the client
observes IngestDuration; the worker observes the lease, discovery-pass,
and preserve-pass families; the shredder observes BlocksShreddedTotal
and ShredDuration. JobsCompletedTotal is incremented by the worker's
completion pass and JobsFailedTotal by each agent mode on a failed
invocation. JobsByStatus is populated by Collector, which polls the job
store periodically so that a single process's view of job counts does
not depend on which agent happens to be running.
*/
package metrics
