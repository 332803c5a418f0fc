package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsshred/shredder/pkg/jobstore"
	"github.com/dfsshred/shredder/pkg/lease"
	"github.com/dfsshred/shredder/pkg/oracle"
	"github.com/dfsshred/shredder/pkg/shred"
	"github.com/dfsshred/shredder/pkg/types"
)

const testJobID = "11111111-1111-1111-1111-111111111111"

// newTestWorker builds a Worker whose MountPointFunc treats the node's
// own subdirectory under BlockSearchRoot as its mount point, avoiding
// any dependency on the test machine's real filesystem layout.
func newTestWorker(t *testing.T, store *jobstore.Store, leaseStore *lease.Store, or oracle.Oracle, identity, searchRoot string) *Worker {
	t.Helper()
	return &Worker{
		Store:           store,
		Lease:           leaseStore,
		Oracle:          or,
		Identity:        identity,
		BlockSearchRoot: searchRoot,
		ShredSubdir:     ".shred",
		LeaseDuration:   time.Minute,
		StallThreshold:  2 * time.Minute,
		PollInterval:    10 * time.Millisecond,
		MountPointFunc: func(path string) (string, error) {
			return filepath.Dir(path), nil
		},
		Log: zerolog.Nop(),
	}
}

func seedJob(t *testing.T, store *jobstore.Store, client *jobstore.FakeDFSClient) {
	t.Helper()
	require.NoError(t, store.SetMasterStatus(testJobID, types.Stage1Complete))
	require.NoError(t, store.EnsureDataDir(testJobID))
	w, err := client.CreateFile(store.DataDir(testJobID)+"/x", 3, 1, 0644)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestDiscoveryPass_WritesWorklistsAndAdvancesStatus(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	seedJob(t, store, client)

	or := &oracle.FakeOracle{Blocklists: types.Blocklists{
		"10.0.0.1": {"blk_100"},
		"10.0.0.2": {"blk_100"},
	}}
	w := newTestWorker(t, store, lease.New(lease.NewFakeConn(), "/leases"), or, "10.0.0.1", t.TempDir())

	require.NoError(t, w.discoverBlocks(context.Background()))

	master, err := store.GetMasterStatus(testJobID)
	require.NoError(t, err)
	assert.Equal(t, types.StageCopyBlocks, master)

	wl, err := store.ReadWorklist(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.BlockNew, wl["blk_100"])

	workers, err := store.ParticipatingWorkers(testJobID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, workers)
}

func TestDiscoveryPass_SecondWorkerSkipsContendedLease(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	seedJob(t, store, client)

	leaseConn := lease.NewFakeConn()
	or := &oracle.FakeOracle{Blocklists: types.Blocklists{"10.0.0.1": {"blk_100"}}}

	w1 := newTestWorker(t, store, lease.New(leaseConn, "/leases"), or, "10.0.0.1", t.TempDir())
	w2 := newTestWorker(t, store, lease.New(leaseConn, "/leases"), or, "10.0.0.2", t.TempDir())

	require.NoError(t, w1.Lease.Acquire(testJobID, discoveryHolder(w1.Identity), time.Minute))

	require.NoError(t, w2.discoverBlocks(context.Background()))

	// w2 could not acquire the lease, so the job never left stage1complete.
	master, err := store.GetMasterStatus(testJobID)
	require.NoError(t, err)
	assert.Equal(t, types.Stage1Complete, master)
}

func TestPreservePass_FindsLinksAndAdvancesBlockState(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	searchRoot := t.TempDir()

	nodeDir := filepath.Join(searchRoot, "10.0.0.1")
	require.NoError(t, os.MkdirAll(nodeDir, 0755))
	blockPath := filepath.Join(nodeDir, "blk_100")
	require.NoError(t, os.WriteFile(blockPath, []byte("block-bytes"), 0644))

	require.NoError(t, store.SetMasterStatus(testJobID, types.StageCopyBlocks))
	require.NoError(t, store.WriteWorklist(testJobID, "10.0.0.1", types.Worklist{"blk_100": types.BlockNew}))

	w := newTestWorker(t, store, lease.New(lease.NewFakeConn(), "/leases"), &oracle.FakeOracle{}, "10.0.0.1", searchRoot)

	// new -> finding
	require.NoError(t, w.preserveBlocks())
	wl, err := store.ReadWorklist(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.BlockFinding, wl["blk_100"])

	// finding -> linking
	require.NoError(t, w.preserveBlocks())
	wl, err = store.ReadWorklist(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.BlockLinking, wl["blk_100"])

	// linking -> linked, hardlink created under the node's own mount
	require.NoError(t, w.preserveBlocks())
	wl, err = store.ReadWorklist(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.BlockLinked, wl["blk_100"])

	linkPath := filepath.Join(nodeDir, ".shred", "blk_100")
	info, err := os.Stat(linkPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestPreservePass_ResumesAfterCrashBetweenLinkAndPersist(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	searchRoot := t.TempDir()

	nodeDir := filepath.Join(searchRoot, "10.0.0.1")
	require.NoError(t, os.MkdirAll(nodeDir, 0755))
	blockPath := filepath.Join(nodeDir, "blk_100")
	require.NoError(t, os.WriteFile(blockPath, []byte("block-bytes"), 0644))

	// Simulate a worker that hardlinked the block into its shred
	// subdirectory but crashed before persisting the "linked" worklist
	// state, leaving the block recorded as still "linking" with both the
	// original replica and its hardlink present on disk.
	shredDir := filepath.Join(nodeDir, ".shred")
	require.NoError(t, os.MkdirAll(shredDir, 0755))
	require.NoError(t, os.Link(blockPath, filepath.Join(shredDir, "blk_100")))

	require.NoError(t, store.SetMasterStatus(testJobID, types.StageCopyBlocks))
	require.NoError(t, store.WriteWorklist(testJobID, "10.0.0.1", types.Worklist{"blk_100": types.BlockLinking}))

	w := newTestWorker(t, store, lease.New(lease.NewFakeConn(), "/leases"), &oracle.FakeOracle{}, "10.0.0.1", searchRoot)

	require.NoError(t, w.preserveBlocks())

	wl, err := store.ReadWorklist(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.BlockLinked, wl["blk_100"])
}

func TestPreservePass_AbsentWorklistIsNotAnError(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	require.NoError(t, store.SetMasterStatus(testJobID, types.StageCopyBlocks))

	w := newTestWorker(t, store, lease.New(lease.NewFakeConn(), "/leases"), &oracle.FakeOracle{}, "10.0.0.9", t.TempDir())
	assert.NoError(t, w.preserveBlocks())
}

func TestCompletionPass_DeletesDataAndAdvancesToShredding(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	seedJob(t, store, client)
	require.NoError(t, store.SetMasterStatus(testJobID, types.StageCopyBlocks))
	require.NoError(t, store.WriteWorklist(testJobID, "10.0.0.1", types.Worklist{"blk_100": types.BlockLinked}))

	w := newTestWorker(t, store, lease.New(lease.NewFakeConn(), "/leases"), &oracle.FakeOracle{}, "10.0.0.1", t.TempDir())
	w.PollInterval = time.Millisecond

	require.NoError(t, w.leadCompletion(context.Background()))

	master, err := store.GetMasterStatus(testJobID)
	require.NoError(t, err)
	assert.Equal(t, types.Stage3Shredding, master)

	_, err = store.ListDataFiles(testJobID)
	assert.Error(t, err) // data dir removed
}

func TestShredderPass_ShredsLinkedBlocksAndRollsUpStatus(t *testing.T) {
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	require.NoError(t, store.SetMasterStatus(testJobID, types.Stage3Shredding))
	require.NoError(t, store.WriteWorklist(testJobID, "10.0.0.1", types.Worklist{"blk_100": types.BlockLinked}))

	searchRoot := t.TempDir()
	shredDir := filepath.Join(searchRoot, ".shred")
	require.NoError(t, os.MkdirAll(shredDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(shredDir, "blk_100"), []byte("x"), 0644))

	fakeShredder := &shred.FakeShredder{}
	s := &Shredder{
		Store:           store,
		Shredder:        fakeShredder,
		Identity:        "10.0.0.1",
		BlockSearchRoot: searchRoot,
		ShredSubdir:     ".shred",
		Log:             zerolog.Nop(),
	}

	require.NoError(t, s.RunOnce(context.Background()))

	wl, err := store.ReadWorklist(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.BlockShredded, wl["blk_100"])
	assert.Len(t, fakeShredder.Shredded, 1)

	workerStatus, err := store.GetWorkerStatus(testJobID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, types.Stage3Complete, workerStatus)

	master, err := store.GetMasterStatus(testJobID)
	require.NoError(t, err)
	assert.Equal(t, types.Stage3Complete, master)
}
