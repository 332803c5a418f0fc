package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dfsshred/shredder/pkg/jobstore"
	"github.com/dfsshred/shredder/pkg/lease"
	"github.com/dfsshred/shredder/pkg/oracle"
)

// Worker drives a single data node's participation in the block
// discovery, preserve, and completion passes (spec §4.3–§4.5). One
// Worker is constructed per agent invocation.
type Worker struct {
	Store  *jobstore.Store
	Lease  *lease.Store
	Oracle oracle.Oracle

	// Identity is this data node's worker ID; must match the identity
	// the block-location oracle emits for this node (spec §4.1).
	Identity string
	// BlockSearchRoot is the local filesystem root searched for a
	// block file by exact name (spec §4.4).
	BlockSearchRoot string
	// ShredSubdir is the per-mount preserved-blocks directory name.
	ShredSubdir string
	// LeaseDuration is the discovery/completion lease's TTL,
	// WORKER_SLEEP (spec §4.3 step 1).
	LeaseDuration time.Duration
	// StallThreshold is how long a worklist may go without reaching
	// "linked" for every block before the completion leader flags it
	// stalled (spec §4.5 step 2, "2 x WORKER_SLEEP").
	StallThreshold time.Duration
	// PollInterval governs how often the completion leader re-checks
	// worklists while waiting (spec §4.5 step 2).
	PollInterval time.Duration

	// MountPointFunc resolves a path's containing mount point; defaults
	// to findMountPoint (a real device-boundary walk). Tests override it
	// since unit tests have no control over filesystem mount layout.
	MountPointFunc func(path string) (string, error)

	Log zerolog.Logger
}

func (w *Worker) mountPointFunc() func(string) (string, error) {
	if w.MountPointFunc != nil {
		return w.MountPointFunc
	}
	return findMountPoint
}

// RunOnce performs one worker invocation: the discovery pass, then the
// preserve pass, then (for jobs ready for it) the completion pass, in
// that order, matching the sequencing described in spec §4.4's "after
// the discovery pass" and §4.5's "after the preserve pass".
func (w *Worker) RunOnce(ctx context.Context) error {
	if err := w.discoverBlocks(ctx); err != nil {
		return fmt.Errorf("worker: discovery pass: %w", err)
	}
	if err := w.preserveBlocks(); err != nil {
		return fmt.Errorf("worker: preserve pass: %w", err)
	}
	if err := w.leadCompletion(ctx); err != nil {
		return fmt.Errorf("worker: completion pass: %w", err)
	}
	return nil
}
