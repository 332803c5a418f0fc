package oracle

import (
	"context"

	"github.com/dfsshred/shredder/pkg/types"
)

// FakeOracle returns a canned Blocklists for any target, used by
// tests across this repository in place of a live fsck invocation.
type FakeOracle struct {
	Blocklists types.Blocklists
	Err        error
}

func (f *FakeOracle) Locate(ctx context.Context, target string) (types.Blocklists, error) {
	return f.Blocklists, f.Err
}
