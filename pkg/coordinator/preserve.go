package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dfsshred/shredder/pkg/metrics"
	"github.com/dfsshred/shredder/pkg/types"
)

// preserveBlocks runs the per-worker preserve pass (spec §4.4) for
// every job at stage2copyblocks or stage2leaderactive that has a
// worklist for this node, so a node still linking its blocks keeps
// advancing while a completion leader waits on it.
func (w *Worker) preserveBlocks() error {
	var jobs []string
	for _, status := range []types.MasterStatus{types.StageCopyBlocks, types.StageLeaderActive} {
		found, err := w.Store.GetJobsByStatus(status)
		if err != nil {
			return fmt.Errorf("preserve: list %s jobs: %w", status, err)
		}
		jobs = append(jobs, found...)
	}

	for _, jobID := range jobs {
		if err := w.preserveOne(jobID); err != nil {
			w.Log.Error().Err(err).Str("job_id", jobID).Msg("preserve pass failed for job")
		}
	}
	return nil
}

func (w *Worker) preserveOne(jobID string) error {
	wl, err := w.Store.ReadWorklist(jobID, w.Identity)
	if err != nil {
		// Absence means this data node holds no replicas for this job
		// (spec §4.4); any other error is worth surfacing.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read worklist: %w", err)
	}

	log := w.Log.With().Str("job_id", jobID).Str("worker_id", w.Identity).Logger()
	dirty := false

	for blockID, state := range wl {
		switch state {
		case types.BlockNew:
			wl[blockID] = types.BlockFinding
			dirty = true
		case types.BlockFinding:
			if err := w.advanceFinding(log, wl, blockID); err != nil {
				log.Error().Err(err).Str("block_id", blockID).Msg("block search failed")
			}
			dirty = true
		case types.BlockLinking:
			if err := w.link(log, blockID); err != nil {
				log.Error().Err(err).Str("block_id", blockID).Msg("link failed")
			} else {
				wl[blockID] = types.BlockLinked
				metrics.BlocksLinkedTotal.Inc()
			}
			dirty = true
		case types.BlockLinked:
			// no-op
		}
	}

	if dirty {
		if err := w.Store.WriteWorklist(jobID, w.Identity, wl); err != nil {
			return fmt.Errorf("write worklist: %w", err)
		}
	}
	return nil
}

// advanceFinding searches BlockSearchRoot for a file named exactly
// blockID. Zero matches is a recoverable error left as "finding" for
// retry on the next pass; more than one match is logged as an error
// and also left as "finding" (spec §4.4).
func (w *Worker) advanceFinding(log zerolog.Logger, wl types.Worklist, blockID string) error {
	matches, err := findBlockFile(w.BlockSearchRoot, blockID)
	if err != nil {
		return err
	}
	switch len(matches) {
	case 0:
		metrics.BlockSearchFailuresTotal.WithLabelValues("not_found").Inc()
		log.Warn().Str("block_id", blockID).Msg("block not found on this node, will retry")
		return nil
	case 1:
		wl[blockID] = types.BlockLinking
		return nil
	default:
		metrics.BlockSearchFailuresTotal.WithLabelValues("multiple_matches").Inc()
		log.Error().Str("block_id", blockID).Strs("matches", matches).Msg("multiple files match block id")
		return nil
	}
}

// link re-resolves blockID's location (the worklist persists only
// state, not path, so a crash between finding and linking simply means
// the next pass searches again), determines its mount point, and
// hardlinks it into that mount's shred subdirectory (spec §4.4's
// "linking" transition).
//
// The findBlockFile matches are filtered through excludeShredSubdir,
// which drops any match already sitting in a ShredSubdir: once a previous, crash-interrupted pass has created the
// hardlink, the replica and its hardlink are two files named blockID,
// and only the replica should ever be treated as the link source
// (findAndShred applies the same exclusion in reverse, picking only the
// ShredSubdir copy).
func (w *Worker) link(log zerolog.Logger, blockID string) error {
	matches, err := findBlockFile(w.BlockSearchRoot, blockID)
	if err != nil {
		return err
	}
	matches = excludeShredSubdir(matches, w.ShredSubdir)
	if len(matches) != 1 {
		return fmt.Errorf("block %s: expected exactly one replica match at link time, found %d", blockID, len(matches))
	}
	src := matches[0]

	mount, err := w.mountPointFunc()(src)
	if err != nil {
		return fmt.Errorf("find mount point for %s: %w", src, err)
	}
	shredDir := filepath.Join(mount, w.ShredSubdir)
	if err := os.MkdirAll(shredDir, 0755); err != nil {
		return fmt.Errorf("ensure shred dir %s: %w", shredDir, err)
	}

	dest := filepath.Join(shredDir, blockID)
	if _, err := os.Stat(dest); err == nil {
		// Already linked from a previous, interrupted pass.
		return nil
	}
	if err := os.Link(src, dest); err != nil {
		return fmt.Errorf("hardlink %s -> %s: %w", src, dest, err)
	}
	log.Debug().Str("src", src).Str("dest", dest).Msg("block hardlinked into shred dir")
	return nil
}

// findBlockFile walks root for a regular file named exactly name.
func findBlockFile(root, name string) ([]string, error) {
	var matches []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable subtree (permissions, races with other
			// processes); skip it rather than aborting the whole search.
			return nil
		}
		if !info.IsDir() && info.Name() == name {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return matches, nil
}

// excludeShredSubdir drops any match whose parent directory is named
// shredSubdir, so a preserved hardlink is never mistaken for the
// original replica it was linked from.
func excludeShredSubdir(matches []string, shredSubdir string) []string {
	var out []string
	for _, m := range matches {
		if filepath.Base(filepath.Dir(m)) == shredSubdir {
			continue
		}
		out = append(out, m)
	}
	return out
}

// findMountPoint walks up from path until it crosses a device
// boundary, the boundary marking the containing mount point. Grounded
// on the original implementation's realpath-plus-ismount loop.
func findMountPoint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(resolved)
	dev, err := deviceOf(dir)
	if err != nil {
		return "", err
	}
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir, nil
		}
		parentDev, err := deviceOf(parent)
		if err != nil {
			return "", err
		}
		if parentDev != dev {
			return dir, nil
		}
		dir = parent
	}
}

func deviceOf(path string) (uint64, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return uint64(st.Dev), nil
}
