/*
Package coordinator drives a job through its stages by combining the
job store, lease store, block-location oracle and shred primitive
(spec §4.3–§4.6).

A Worker runs the block-discovery leader pass, the per-worker preserve
pass, and the completion leader pass, in that order, on every
invocation (spec §4.3's "discover blocks" and §4.4's "preserve
blocks" stages are both driven by the worker agent). A Shredder runs
the irreversible overwrite pass independently on its own schedule
(spec §4.6).

Each exported RunOnce method performs exactly one pass and returns,
matching the single-shot, cron-invoked scheduling model described in
spec §5. Runner additionally offers the ticker-plus-stop-channel loop
for operators who prefer a long-running agent process over external
cron; it simply calls RunOnce on an interval.
*/
package coordinator
