/*
Package lease wraps the consensus/coordination service used for
leader election, per spec §2 and §4.3/§4.5: a non-blocking,
time-bounded lease keyed by a path, used only for leadership — never
for durable data.

A lease is a single znode whose payload carries the holder's identity
and an absolute expiry time. Acquire never blocks: if the znode already
exists and has not expired, acquisition fails immediately and the
caller skips the job for this invocation (spec §4.3 step 1). An expired
znode is reclaimed via a version-checked overwrite so a crashed leader's
stale lease cannot wedge a stage past its lease duration.
*/
package lease
