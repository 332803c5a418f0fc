package ingest

import (
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dfsshred/shredder/pkg/jobstore"
	"github.com/dfsshred/shredder/pkg/types"
)

// Pipeline runs the client agent's single-shot ingest of one target
// path into a new job (spec §4.2).
type Pipeline struct {
	Store  *jobstore.Store
	Log    zerolog.Logger
	// newID generates job identifiers; overridden in tests for
	// deterministic assertions. Defaults to uuid.NewString.
	newID func() string
}

// New returns a Pipeline backed by store.
func New(store *jobstore.Store, log zerolog.Logger) *Pipeline {
	return &Pipeline{Store: store, Log: log, newID: uuid.NewString}
}

// Ingest canonicalizes target, mints a job, and takes custody of the
// file by renaming it into the job store. It returns the new job ID.
//
// Failure between any two status writes leaves a recoverable job: an
// operator can inspect the job's store directory and either resume or
// abandon it (spec §4.2). This pipeline performs no automatic recovery.
func (p *Pipeline) Ingest(target string) (string, error) {
	canonical, err := p.canonicalize(target)
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}

	jobID := p.newID()
	log := p.Log.With().Str("job_id", jobID).Str("target", canonical).Logger()

	if err := p.Store.SetMasterStatus(jobID, types.StageInit); err != nil {
		return "", fmt.Errorf("ingest: %s: set master=stage1init: %w", jobID, err)
	}
	if err := p.Store.SetStatus(jobID, "data", string(types.DataStageInit)); err != nil {
		return "", fmt.Errorf("ingest: %s: set data=stage1init: %w", jobID, err)
	}

	if err := p.Store.SetMasterStatus(jobID, types.StageIngest); err != nil {
		return "", fmt.Errorf("ingest: %s: set master=stage1ingest: %w", jobID, err)
	}
	if err := p.Store.SetStatus(jobID, "data", string(types.DataStageIngest)); err != nil {
		return "", fmt.Errorf("ingest: %s: set data=stage1ingest: %w", jobID, err)
	}

	if err := p.Store.EnsureDataDir(jobID); err != nil {
		return "", fmt.Errorf("ingest: %s: ensure data dir: %w", jobID, err)
	}
	// The rename is the capability check: if the caller cannot rename
	// target, the whole operation fails here with no further writes.
	if err := p.Store.IngestRename(jobID, canonical); err != nil {
		return "", fmt.Errorf("ingest: %s: claim target: %w", jobID, err)
	}
	log.Info().Msg("target claimed")

	if err := p.Store.SetStatus(jobID, "data", string(types.DataStageIngestComplete)); err != nil {
		return "", fmt.Errorf("ingest: %s: set data=stage1ingestComplete: %w", jobID, err)
	}
	if err := p.Store.SetMasterStatus(jobID, types.Stage1Complete); err != nil {
		return "", fmt.Errorf("ingest: %s: set master=stage1complete: %w", jobID, err)
	}

	log.Info().Msg("ingest complete")
	return jobID, nil
}

// canonicalize rejects anything that is not, right now, an existing
// plain file at an absolute DFS path (spec §4.2 step 1): a directory, a
// symlink, or a non-existent path all fail.
func (p *Pipeline) canonicalize(target string) (string, error) {
	if !path.IsAbs(target) {
		return "", fmt.Errorf("canonicalize: %s is not an absolute path", target)
	}
	clean := path.Clean(target)

	info, err := p.Store.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %s: %w", clean, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("canonicalize: %s is a directory", clean)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("canonicalize: %s is a symlink", clean)
	}
	return clean, nil
}
