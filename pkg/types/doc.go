/*
Package types defines the core data structures shared by the client,
worker, and shredder agents: the closed-enum status types that drive
the job's state machine, the per-worker worklist, and the
block-location types produced by the block-location oracle. A job
itself has no struct here; it is identified by its ID string.

# State machine

A Job's MasterStatus advances through a single, strictly monotone
sequence (stage1init ... stage3complete); DataStatus tracks the ingested
payload through the first three of those tokens. Rank and AtLeast let
callers compare two statuses without hardcoding the ordering.

# Worklists

Each (job, worker) pair owns one Worklist: a map from block ID to
BlockState (new, finding, linking, linked, shredding, shredded). This
package defines the types only; pkg/jobstore owns reading and writing
them atomically.
*/
package types
