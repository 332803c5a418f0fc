package ingest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsshred/shredder/pkg/jobstore"
	"github.com/dfsshred/shredder/pkg/types"
)

func newPipeline(t *testing.T) (*Pipeline, *jobstore.FakeDFSClient) {
	t.Helper()
	client := jobstore.NewFakeDFSClient()
	store := jobstore.New(client, "/.shred")
	p := New(store, zerolog.Nop())
	p.newID = func() string { return "11111111-1111-1111-1111-111111111111" }
	return p, client
}

func writeFile(t *testing.T, client *jobstore.FakeDFSClient, p string, data []byte) {
	t.Helper()
	w, err := client.CreateFile(p, 3, 1, 0644)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestIngest_HappyPath(t *testing.T) {
	p, client := newPipeline(t)
	writeFile(t, client, "/u/alice/x", []byte("payload"))

	jobID, err := p.Ingest("/u/alice/x")
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", jobID)

	master, err := p.Store.GetMasterStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.Stage1Complete, master)

	files, err := p.Store.ListDataFiles(jobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/.shred/store/" + jobID + "/data/x"}, files)

	// The original path is gone; IngestRename moved it.
	_, err = client.Stat("/u/alice/x")
	assert.Error(t, err)
}

func TestIngest_RejectsRelativePath(t *testing.T) {
	p, _ := newPipeline(t)
	_, err := p.Ingest("relative/path")
	assert.Error(t, err)
}

func TestIngest_RejectsMissingTarget(t *testing.T) {
	p, _ := newPipeline(t)
	_, err := p.Ingest("/does/not/exist")
	assert.Error(t, err)
}

func TestIngest_RejectsDirectory(t *testing.T) {
	p, client := newPipeline(t)
	require.NoError(t, client.MkdirAll("/u/alice/adir", 0755))

	_, err := p.Ingest("/u/alice/adir")
	assert.Error(t, err)
}
