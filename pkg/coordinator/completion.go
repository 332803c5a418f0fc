package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dfsshred/shredder/pkg/lease"
	"github.com/dfsshred/shredder/pkg/metrics"
	"github.com/dfsshred/shredder/pkg/types"
)

// leadCompletion checks, for every job this node still participates
// in at stage2copyblocks, whether this node's own worklist is fully
// linked; if so it attempts the completion lease and, on success,
// drives the job through deletion to stage3shredding (spec §4.5).
func (w *Worker) leadCompletion(ctx context.Context) error {
	jobs, err := w.Store.GetJobsByStatus(types.StageCopyBlocks)
	if err != nil {
		return fmt.Errorf("completion: list stage2copyblocks jobs: %w", err)
	}

	for _, jobID := range jobs {
		wl, err := w.Store.ReadWorklist(jobID, w.Identity)
		if err != nil {
			continue
		}
		if !wl.AllInState(types.BlockLinked) {
			continue
		}
		if err := w.completeOne(ctx, jobID); err != nil {
			w.Log.Error().Err(err).Str("job_id", jobID).Msg("completion pass failed for job")
		}
	}
	return nil
}

func (w *Worker) completeOne(ctx context.Context, jobID string) error {
	log := w.Log.With().Str("job_id", jobID).Logger()

	// By now the discovery lease has typically expired; the
	// completion holder string still distinguishes the two uses of
	// the same path (spec §4.5).
	err := w.Lease.Acquire(jobID, completionHolder(w.Identity), w.LeaseDuration)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			metrics.LeaseAcquireAttemptsTotal.WithLabelValues("completion", "contended").Inc()
			return nil
		}
		metrics.LeaseAcquireAttemptsTotal.WithLabelValues("completion", "error").Inc()
		return fmt.Errorf("acquire completion lease: %w", err)
	}
	metrics.LeaseAcquireAttemptsTotal.WithLabelValues("completion", "acquired").Inc()
	log.Info().Msg("acquired completion lease")

	if err := w.Store.SetMasterStatus(jobID, types.StageLeaderActive); err != nil {
		return fmt.Errorf("set master=stage2leaderactive: %w", err)
	}

	workers, err := w.Store.ParticipatingWorkers(jobID)
	if err != nil {
		return fmt.Errorf("list participating workers: %w", err)
	}

	if err := w.waitForAllLinked(ctx, log, jobID, workers); err != nil {
		return err
	}

	if err := w.Store.SetMasterStatus(jobID, types.StageReadyForDelete); err != nil {
		return fmt.Errorf("set master=stage2readyForDelete: %w", err)
	}

	if err := w.Store.DeleteDataDir(jobID); err != nil {
		return fmt.Errorf("delete data dir: %w", err)
	}
	if err := w.Store.SetMasterStatus(jobID, types.StageFilesDeleted); err != nil {
		return fmt.Errorf("set master=stage2filesDeleted: %w", err)
	}
	log.Info().Msg("payload deleted from dfs")

	if err := w.Store.SetMasterStatus(jobID, types.Stage2Complete); err != nil {
		return fmt.Errorf("set master=stage2complete: %w", err)
	}
	if err := w.Store.SetMasterStatus(jobID, types.Stage3Shredding); err != nil {
		return fmt.Errorf("set master=stage3shredding: %w", err)
	}
	metrics.JobsCompletedTotal.Inc()
	log.Info().Msg("job advanced to stage3shredding")
	return nil
}

// waitForAllLinked polls every participating worker's worklist until
// all report every block linked, logging (not fencing) any worker that
// has gone more than StallThreshold without reaching that state (spec
// §4.5 step 2).
func (w *Worker) waitForAllLinked(ctx context.Context, log zerolog.Logger, jobID string, workers []string) error {
	stalledSince := make(map[string]time.Time)

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		allLinked := true
		for _, worker := range workers {
			wl, err := w.Store.ReadWorklist(jobID, worker)
			if err != nil {
				return fmt.Errorf("read worklist for %s: %w", worker, err)
			}
			if wl.AllInState(types.BlockLinked) {
				delete(stalledSince, worker)
				continue
			}
			allLinked = false
			since, seen := stalledSince[worker]
			if !seen {
				stalledSince[worker] = time.Now()
				continue
			}
			if time.Since(since) > w.StallThreshold {
				metrics.StalledWorkersTotal.WithLabelValues(worker).Inc()
				log.Warn().Str("worker_id", worker).Dur("stalled_for", time.Since(since)).
					Msg("worker flagged stalled, no automatic fencing")
			}
		}
		if allLinked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
