package coordinator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dfsshred/shredder/pkg/jobstore"
	"github.com/dfsshred/shredder/pkg/metrics"
	"github.com/dfsshred/shredder/pkg/shred"
	"github.com/dfsshred/shredder/pkg/types"
)

// Shredder runs the irreversible overwrite pass on one data node,
// independent of and on its own schedule from Worker (spec §4.6).
type Shredder struct {
	Store    *jobstore.Store
	Shredder shred.Shredder

	Identity        string
	BlockSearchRoot string
	ShredSubdir     string

	Log zerolog.Logger
}

// RunOnce shreds every linked block belonging to this node across all
// jobs at stage3shredding, then rolls up the node's own completion
// status, and finally rolls up the job's global completion.
func (s *Shredder) RunOnce(ctx context.Context) error {
	jobs, err := s.Store.GetJobsByStatus(types.Stage3Shredding)
	if err != nil {
		return fmt.Errorf("shredder: list stage3shredding jobs: %w", err)
	}

	for _, jobID := range jobs {
		if err := s.shredOne(ctx, jobID); err != nil {
			s.Log.Error().Err(err).Str("job_id", jobID).Msg("shredder pass failed for job")
		}
	}

	// Any node may perform the idempotent global rollup check, not
	// just the node that happens to run last (spec §4.6).
	for _, jobID := range jobs {
		if err := s.rollupGlobalCompletion(jobID); err != nil {
			s.Log.Error().Err(err).Str("job_id", jobID).Msg("global completion rollup failed")
		}
	}
	return nil
}

func (s *Shredder) shredOne(ctx context.Context, jobID string) error {
	wl, err := s.Store.ReadWorklist(jobID, s.Identity)
	if err != nil {
		return nil // no replicas on this node for this job
	}

	log := s.Log.With().Str("job_id", jobID).Str("worker_id", s.Identity).Logger()
	dirty := false

	for blockID, state := range wl {
		// A block left in "shredding" by an interrupted or failed pass
		// is re-entered so its shred is retried.
		if state != types.BlockLinked && state != types.BlockShredding {
			continue
		}

		wl[blockID] = types.BlockShredding
		dirty = true
		if err := s.Store.WriteWorklist(jobID, s.Identity, wl); err != nil {
			return fmt.Errorf("write worklist (shredding): %w", err)
		}

		timer := metrics.NewTimer()
		path := filepath.Join(s.ShredSubdir, blockID)
		if err := s.findAndShred(ctx, blockID); err != nil {
			log.Error().Err(err).Str("block_id", blockID).Str("path", path).Msg("shred failed, will retry")
			continue
		}
		timer.ObserveDuration(metrics.ShredDuration)
		metrics.BlocksShreddedTotal.Inc()

		wl[blockID] = types.BlockShredded
		if err := s.Store.WriteWorklist(jobID, s.Identity, wl); err != nil {
			return fmt.Errorf("write worklist (shredded): %w", err)
		}
		log.Info().Str("block_id", blockID).Msg("block shredded")
	}

	if dirty && wl.AllInState(types.BlockShredded) {
		if err := s.Store.SetStatus(jobID, s.Identity, string(types.Stage3Complete)); err != nil {
			return fmt.Errorf("set worker status=stage3complete: %w", err)
		}
		log.Info().Msg("all blocks shredded on this node")
	}
	return nil
}

// findAndShred locates blockID under the mount hosting this node's
// hardlink and invokes the shred primitive on it. A block may appear
// in at most one mount on a given node (spec §4.6 step 2).
func (s *Shredder) findAndShred(ctx context.Context, blockID string) error {
	matches, err := findBlockFile(s.BlockSearchRoot, blockID)
	if err != nil {
		return fmt.Errorf("search for preserved block: %w", err)
	}
	for _, m := range matches {
		if filepath.Base(filepath.Dir(m)) == s.ShredSubdir {
			return s.Shredder.Shred(ctx, m)
		}
	}
	return fmt.Errorf("preserved block %s not found under %s", blockID, s.BlockSearchRoot)
}

// rollupGlobalCompletion sets the job's master status to stage3complete
// once every participating data node's own status reads stage3complete.
// Any node's shredder pass may perform this check; it is idempotent
// (spec §4.6).
func (s *Shredder) rollupGlobalCompletion(jobID string) error {
	workers, err := s.Store.ParticipatingWorkers(jobID)
	if err != nil {
		return fmt.Errorf("list participating workers: %w", err)
	}

	allDone := true
	for _, worker := range workers {
		status, err := s.Store.GetWorkerStatus(jobID, worker)
		if err != nil || status != types.Stage3Complete {
			allDone = false
			break
		}
	}
	if !allDone {
		return nil
	}

	if err := s.Store.SetMasterStatus(jobID, types.Stage3Complete); err != nil {
		return fmt.Errorf("set master=stage3complete: %w", err)
	}
	s.Log.Info().Str("job_id", jobID).Msg("job reached stage3complete globally")
	return nil
}
