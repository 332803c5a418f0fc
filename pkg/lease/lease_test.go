package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_FirstWorkerWins(t *testing.T) {
	store := New(NewFakeConn(), "/shred/leases")

	err := store.Acquire("job-1", "10.0.0.1", time.Minute)
	require.NoError(t, err)
}

func TestAcquire_SecondWorkerContends(t *testing.T) {
	store := New(NewFakeConn(), "/shred/leases")

	require.NoError(t, store.Acquire("job-1", "10.0.0.1", time.Minute))
	err := store.Acquire("job-1", "10.0.0.2", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)
}

func TestAcquire_ExpiredLeaseIsReclaimed(t *testing.T) {
	store := New(NewFakeConn(), "/shred/leases")

	require.NoError(t, store.Acquire("job-1", "10.0.0.1", -time.Second))
	err := store.Acquire("job-1", "10.0.0.2", time.Minute)
	assert.NoError(t, err)
}

func TestRelease_AllowsImmediateReacquire(t *testing.T) {
	store := New(NewFakeConn(), "/shred/leases")

	require.NoError(t, store.Acquire("job-1", "10.0.0.1", time.Minute))
	require.NoError(t, store.Release("job-1"))

	err := store.Acquire("job-1", "10.0.0.2", time.Minute)
	assert.NoError(t, err)
}

func TestRelease_MissingLeaseIsNotAnError(t *testing.T) {
	store := New(NewFakeConn(), "/shred/leases")
	assert.NoError(t, store.Release("no-such-job"))
}
