/*
Package jobstore implements the job store: a directory tree on the DFS
used for durable job records, per-worker worklists, and status files
(spec §4.1, §6).

Every write goes through a temp-file-then-rename so that a reader never
observes a partial write — the same atomicity contract the teacher's
storage layer relies on for its BoltDB writes, here provided by the DFS
itself. DFSClient abstracts the subset of the DFS client library this
package needs; it is satisfied in production by an HDFS-backed
implementation and in tests by an in-memory fake, so the job state
machine is exercised without a live cluster.
*/
package jobstore
