package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfsshred/shredder/pkg/lease"
	"github.com/dfsshred/shredder/pkg/metrics"
	"github.com/dfsshred/shredder/pkg/types"
)

// discoverBlocks runs the block-discovery leader pass (spec §4.3) over every
// job currently at stage1complete. Losing the lease for a job is not
// an error; it means another worker is handling it this cycle.
func (w *Worker) discoverBlocks(ctx context.Context) error {
	jobs, err := w.Store.GetJobsByStatus(types.Stage1Complete)
	if err != nil {
		return fmt.Errorf("discover: list stage1complete jobs: %w", err)
	}

	for _, jobID := range jobs {
		if err := w.discoverOne(ctx, jobID); err != nil {
			w.Log.Error().Err(err).Str("job_id", jobID).Msg("discovery pass failed for job")
		}
	}
	return nil
}

func (w *Worker) discoverOne(ctx context.Context, jobID string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DiscoveryPassDuration)

	log := w.Log.With().Str("job_id", jobID).Logger()

	err := w.Lease.Acquire(jobID, discoveryHolder(w.Identity), w.LeaseDuration)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			metrics.LeaseAcquireAttemptsTotal.WithLabelValues("discovery", "contended").Inc()
			log.Debug().Msg("discovery lease held by another worker, skipping")
			return nil
		}
		metrics.LeaseAcquireAttemptsTotal.WithLabelValues("discovery", "error").Inc()
		return fmt.Errorf("acquire discovery lease: %w", err)
	}
	metrics.LeaseAcquireAttemptsTotal.WithLabelValues("discovery", "acquired").Inc()
	log.Info().Msg("acquired discovery lease")

	if err := w.Store.SetMasterStatus(jobID, types.StagePrepareBlocklist); err != nil {
		return fmt.Errorf("set master=stage2prepareBlocklist: %w", err)
	}

	targets, err := w.Store.ListDataFiles(jobID)
	if err != nil {
		return fmt.Errorf("list target files: %w", err)
	}

	merged := types.Blocklists{}
	for _, target := range targets {
		blocklists, err := w.Oracle.Locate(ctx, target)
		if err != nil {
			return fmt.Errorf("locate blocks for %s: %w", target, err)
		}
		for node, blocks := range blocklists {
			merged[node] = append(merged[node], blocks...)
		}
	}

	discovered := 0
	for worker, blocks := range merged {
		wl := make(types.Worklist, len(blocks))
		for _, blockID := range blocks {
			wl[blockID] = types.BlockNew
		}
		if err := w.Store.WriteWorklist(jobID, worker, wl); err != nil {
			return fmt.Errorf("write worklist for %s: %w", worker, err)
		}
		discovered += len(wl)
	}
	metrics.BlocksDiscoveredTotal.Add(float64(discovered))

	if err := w.Store.SetMasterStatus(jobID, types.StageCopyBlocks); err != nil {
		return fmt.Errorf("set master=stage2copyblocks: %w", err)
	}
	log.Info().Int("workers", len(merged)).Int("blocks", discovered).Msg("blocklist prepared")

	// The lease is allowed to expire naturally (spec §4.3 step 5); an
	// explicit release would only save the remainder of its duration.
	return nil
}

// discoveryHolder and completionHolder distinguish the two leases that
// share a path (spec §4.5: "lease identity distinguishes it from
// discovery").
func discoveryHolder(identity string) string  { return identity + "#discovery" }
func completionHolder(identity string) string { return identity + "#completion" }
