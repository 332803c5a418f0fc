/*
Package log provides structured logging shared by the client, worker, and
shredder agents.

It wraps zerolog with a single global Logger initialized once per agent
invocation via Init, plus context-logger helpers (WithComponent, WithJobID,
WithWorkerID, WithBlockID) so that every line emitted while processing a
job or block carries consistent, filterable fields.

Console output is used by default for interactive/debug runs; JSON output
is selected with --log-json for production scheduling (cron, systemd
timers) where logs are shipped to an aggregator. Neither format talks to
syslog directly — the original system emitted via syslog, but that
transport is an external collaborator this repository does not implement.
*/
package log
