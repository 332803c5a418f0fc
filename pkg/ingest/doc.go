/*
Package ingest implements the client agent's single-shot ingest
pipeline (spec §4.2): canonicalize a user-supplied path, mint a job UUID,
and take custody of the target by renaming it into the job store, with
the rename itself serving as the capability check.

Failure between any two status writes leaves a recoverable job for
operator inspection; this package does not attempt automatic recovery
of a partially-ingested job, matching the original's hands-off
failure policy.
*/
package ingest
