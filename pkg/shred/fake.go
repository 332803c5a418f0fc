package shred

import (
	"context"
	"sync"
)

// FakeShredder records which paths were shredded, used by tests across
// this repository in place of a real shred(1) invocation.
type FakeShredder struct {
	mu       sync.Mutex
	Shredded []string
	Err      error
}

func (f *FakeShredder) Shred(ctx context.Context, path string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Shredded = append(f.Shredded, path)
	return nil
}
