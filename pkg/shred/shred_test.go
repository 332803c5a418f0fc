package shred

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeShredder_RecordsPath(t *testing.T) {
	f := &FakeShredder{}
	require.NoError(t, f.Shred(context.Background(), "/mnt/d0/.shred/blk_100"))
	assert.Equal(t, []string{"/mnt/d0/.shred/blk_100"}, f.Shredded)
}

func TestFakeShredder_PropagatesError(t *testing.T) {
	f := &FakeShredder{Err: assert.AnError}
	err := f.Shred(context.Background(), "/mnt/d0/.shred/blk_100")
	assert.ErrorIs(t, err, assert.AnError)
}
