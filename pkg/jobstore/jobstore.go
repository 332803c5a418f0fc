package jobstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dfsshred/shredder/pkg/types"
)

// DFSClient is the subset of the DFS client library's surface the job
// store depends on. The production binary satisfies it with the thin
// hdfsClient wrapper around *hdfs.Client (github.com/colinmarc/hdfs/v2)
// in hdfs.go; tests satisfy it with the in-memory fake in fake.go.
type DFSClient interface {
	MkdirAll(path string, perm os.FileMode) error
	CreateFile(path string, replication int, blockSize int64, perm os.FileMode) (io.WriteCloser, error)
	Open(path string) (io.ReadCloser, error)
	Rename(oldpath, newpath string) error
	Remove(path string) error
	ReadDir(dirname string) ([]os.FileInfo, error)
	Stat(name string) (os.FileInfo, error)
}

const (
	filePerm      = 0644
	defaultRepl   = 3
	defaultBlock  = 128 * 1024 * 1024
	componentData = "data"
)

// Store is the job store described by spec §4.1 and §6, rooted at a
// single configured DFS path (e.g. "/.shred").
type Store struct {
	client DFSClient
	root   string
}

// New returns a Store rooted at root, using client for all DFS I/O.
func New(client DFSClient, root string) *Store {
	return &Store{client: client, root: strings.TrimRight(root, "/")}
}

func (s *Store) jobsDir() string {
	return path.Join(s.root, "jobs")
}

// JobPath is the master status file for job.
func (s *Store) JobPath(jobID string) string {
	return path.Join(s.jobsDir(), jobID)
}

// JobDir is the per-job store subdirectory.
func (s *Store) JobDir(jobID string) string {
	return path.Join(s.root, "store", jobID)
}

// DataDir is the ingested-payload directory for job.
func (s *Store) DataDir(jobID string) string {
	return path.Join(s.JobDir(jobID), "data")
}

// DataStatusPath is the data-status file for job.
func (s *Store) DataStatusPath(jobID string) string {
	return path.Join(s.JobDir(jobID), "status")
}

// worklistsDir is the per-job directory holding one worklist file per
// participating worker. Kept apart from WorkerStatusPath's directory
// (spec §6 puts both at "{job}/{worker}", which collide: the worklist
// is a file at that path while the status must live in a directory of
// the same name) so a worker's status write never races MkdirAll
// against its own worklist file.
func (s *Store) worklistsDir(jobID string) string {
	return path.Join(s.JobDir(jobID), "worklists")
}

// WorklistPath is the per-worker worklist file for job.
func (s *Store) WorklistPath(jobID, workerID string) string {
	return path.Join(s.worklistsDir(jobID), workerID)
}

// WorkerStatusPath is the per-worker status file for job.
func (s *Store) WorkerStatusPath(jobID, workerID string) string {
	return path.Join(s.JobDir(jobID), workerID, "status")
}

// writeAtomic writes data to path via a temp file plus rename, so a
// concurrent reader never observes a partial write (spec §4.1).
func (s *Store) writeAtomic(p string, data []byte) error {
	dir := path.Dir(p)
	if err := s.client.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("jobstore: mkdir %s: %w", dir, err)
	}
	tmp := p + ".tmp-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	w, err := s.client.CreateFile(tmp, defaultRepl, defaultBlock, filePerm)
	if err != nil {
		return fmt.Errorf("jobstore: create %s: %w", tmp, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		s.client.Remove(tmp)
		return fmt.Errorf("jobstore: write %s: %w", tmp, err)
	}
	if err := w.Close(); err != nil {
		s.client.Remove(tmp)
		return fmt.Errorf("jobstore: close %s: %w", tmp, err)
	}
	// Overwrite semantics: clear any existing file at the final path
	// before the rename, matching typical DFS rename-onto-existing
	// restrictions.
	_ = s.client.Remove(p)
	if err := s.client.Rename(tmp, p); err != nil {
		return fmt.Errorf("jobstore: rename %s -> %s: %w", tmp, p, err)
	}
	return nil
}

func (s *Store) read(p string) ([]byte, error) {
	r, err := s.client.Open(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// SetStatus writes status atomically to the path determined by
// component, per spec §4.1: "master" targets the master status file,
// "data" targets the job's data-status file, anything else is treated
// as a worker ID targeting that worker's status file.
func (s *Store) SetStatus(jobID, component, status string) error {
	var p string
	switch component {
	case "master":
		p = s.JobPath(jobID)
	case componentData:
		p = s.DataStatusPath(jobID)
	default:
		p = s.WorkerStatusPath(jobID, component)
	}
	return s.writeAtomic(p, []byte(status))
}

// SetMasterStatus is a typed convenience wrapper over SetStatus for
// the master status track.
func (s *Store) SetMasterStatus(jobID string, status types.MasterStatus) error {
	return s.SetStatus(jobID, "master", string(status))
}

// GetMasterStatus reads a job's current master status, rejecting any
// token outside the closed set of master statuses.
func (s *Store) GetMasterStatus(jobID string) (types.MasterStatus, error) {
	b, err := s.read(s.JobPath(jobID))
	if err != nil {
		return "", err
	}
	status := types.MasterStatus(strings.TrimSpace(string(b)))
	if !status.Valid() {
		return "", fmt.Errorf("jobstore: unknown master status %q for %s", status, jobID)
	}
	return status, nil
}

// GetWorkerStatus reads a per-worker status token, written by the
// shredder pass once that node has shredded every block it was
// assigned (spec §4.6). Unknown tokens are rejected.
func (s *Store) GetWorkerStatus(jobID, workerID string) (types.MasterStatus, error) {
	b, err := s.read(s.WorkerStatusPath(jobID, workerID))
	if err != nil {
		return "", err
	}
	status := types.MasterStatus(strings.TrimSpace(string(b)))
	if !status.Valid() {
		return "", fmt.Errorf("jobstore: unknown worker status %q for %s/%s", status, jobID, workerID)
	}
	return status, nil
}

// GetJobsByStatus enumerates {root}/jobs/ and returns the IDs of every
// job whose master status equals targetStatus. A missing jobs
// directory is not an error — it returns an empty set, since a worker
// may run before any client ever has (spec §4.1).
func (s *Store) GetJobsByStatus(targetStatus types.MasterStatus) ([]string, error) {
	entries, err := s.client.ReadDir(s.jobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobstore: list %s: %w", s.jobsDir(), err)
	}

	var matched []string
	for _, entry := range entries {
		if entry.IsDir() || strings.Contains(entry.Name(), ".tmp-") {
			// Stale temp file from an interrupted writeAtomic rename;
			// never a real job ID.
			continue
		}
		b, err := s.read(path.Join(s.jobsDir(), entry.Name()))
		if err != nil {
			// A job file can vanish between listing and reading if the
			// completion leader archives it concurrently; skip it.
			continue
		}
		if types.MasterStatus(strings.TrimSpace(string(b))) == targetStatus {
			matched = append(matched, entry.Name())
		}
	}
	return matched, nil
}

// ReadWorklist loads the worklist for (jobID, workerID). A missing
// file is reported via the returned error so callers can distinguish
// "no replicas on this node" from a parse failure.
func (s *Store) ReadWorklist(jobID, workerID string) (types.Worklist, error) {
	b, err := s.read(s.WorklistPath(jobID, workerID))
	if err != nil {
		return nil, err
	}
	var wl types.Worklist
	if err := json.Unmarshal(b, &wl); err != nil {
		return nil, fmt.Errorf("jobstore: parse worklist %s/%s: %w", jobID, workerID, err)
	}
	return wl, nil
}

// WriteWorklist overwrites the whole worklist file for (jobID,
// workerID). Only the worker named by workerID may call this (spec §3
// invariant 6, single-writer).
func (s *Store) WriteWorklist(jobID, workerID string, wl types.Worklist) error {
	b, err := json.Marshal(wl)
	if err != nil {
		return fmt.Errorf("jobstore: marshal worklist: %w", err)
	}
	return s.writeAtomic(s.WorklistPath(jobID, workerID), b)
}

// Stat resolves a DFS path, used by the client ingest pipeline to
// validate a target before it is claimed (spec §4.2 step 1).
func (s *Store) Stat(p string) (os.FileInfo, error) {
	return s.client.Stat(p)
}

// EnsureDataDir creates the ingested-payload directory for job if it
// does not already exist.
func (s *Store) EnsureDataDir(jobID string) error {
	return s.client.MkdirAll(s.DataDir(jobID), 0755)
}

// IngestRename moves target into the job's data directory. The rename
// is the capability check of spec §4.2 step 4: if the caller lacks
// permission to rename target, this call fails and no further state is
// written.
func (s *Store) IngestRename(jobID, target string) error {
	dest := path.Join(s.DataDir(jobID), path.Base(target))
	if err := s.client.Rename(target, dest); err != nil {
		return fmt.Errorf("jobstore: rename %s -> %s: %w", target, dest, err)
	}
	return nil
}

// ListDataFiles lists the ingested payload files for job.
func (s *Store) ListDataFiles(jobID string) ([]string, error) {
	entries, err := s.client.ReadDir(s.DataDir(jobID))
	if err != nil {
		return nil, fmt.Errorf("jobstore: list %s: %w", s.DataDir(jobID), err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, path.Join(s.DataDir(jobID), entry.Name()))
	}
	return paths, nil
}

// DeleteDataDir removes the job's ingested-payload directory, skipping
// the DFS trash so blocks can be freed immediately (spec §4.5 step 4).
// The DFS client library's Remove already bypasses trash; this walks
// the tree bottom-up since not every DFSClient implementation offers a
// recursive remove.
func (s *Store) DeleteDataDir(jobID string) error {
	return s.removeTree(s.DataDir(jobID))
}

func (s *Store) removeTree(p string) error {
	entries, err := s.client.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("jobstore: list %s: %w", p, err)
	}
	for _, entry := range entries {
		child := path.Join(p, entry.Name())
		if entry.IsDir() {
			if err := s.removeTree(child); err != nil {
				return err
			}
		} else if err := s.client.Remove(child); err != nil {
			return fmt.Errorf("jobstore: remove %s: %w", child, err)
		}
	}
	return s.client.Remove(p)
}

// ParticipatingWorkers returns the worker IDs that have a worklist
// file for job, i.e. the data nodes holding at least one replica of
// one of the job's blocks (spec §3 invariant 2).
func (s *Store) ParticipatingWorkers(jobID string) ([]string, error) {
	entries, err := s.client.ReadDir(s.worklistsDir(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobstore: list %s: %w", s.worklistsDir(jobID), err)
	}
	var workers []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		workers = append(workers, entry.Name())
	}
	return workers, nil
}
