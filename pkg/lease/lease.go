package lease

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

// ErrHeld is returned by Acquire when another holder currently owns
// the lease and it has not yet expired.
var ErrHeld = errors.New("lease: held by another worker")

// Conn is the subset of the consensus-store client's surface the
// lease package depends on. The production binary satisfies it with
// *zk.Conn (github.com/go-zookeeper/zk); tests satisfy it with the
// in-memory fake in fake.go.
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Delete(path string, version int32) error
}

// payload is the JSON body stored in a lease znode.
type payload struct {
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store acquires and releases leases rooted under a configured path in
// the consensus store.
type Store struct {
	conn Conn
	root string
}

// New returns a Store that creates lease znodes under root.
func New(conn Conn, root string) *Store {
	return &Store{conn: conn, root: root}
}

func (s *Store) path(key string) string {
	if len(s.root) > 0 && s.root[len(s.root)-1] == '/' {
		return s.root + key
	}
	return s.root + "/" + key
}

// Acquire attempts to take the lease at key for duration, identifying
// the caller as holder. It never blocks: if the lease is currently
// held and unexpired, it returns ErrHeld immediately so the caller can
// skip this job for the current invocation (spec §4.3 step 1).
func (s *Store) Acquire(key, holder string, duration time.Duration) error {
	p := s.path(key)
	data, err := json.Marshal(payload{Holder: holder, ExpiresAt: time.Now().Add(duration)})
	if err != nil {
		return fmt.Errorf("lease: marshal: %w", err)
	}

	_, err = s.conn.Create(p, data, 0, zk.WorldACL(zk.PermAll))
	if err == nil {
		return nil
	}
	if !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("lease: create %s: %w", p, err)
	}

	existing, stat, getErr := s.conn.Get(p)
	if getErr != nil {
		// Node vanished between Create and Get (released concurrently);
		// treat as contended rather than racing a second Create.
		return ErrHeld
	}
	var pl payload
	if err := json.Unmarshal(existing, &pl); err != nil {
		return fmt.Errorf("lease: parse %s: %w", p, err)
	}
	if time.Now().Before(pl.ExpiresAt) {
		return ErrHeld
	}

	// Lease expired: reclaim it with a version-checked set, so a
	// concurrent reclaimer can't both believe they won.
	if _, err := s.conn.Set(p, data, stat.Version); err != nil {
		return ErrHeld
	}
	return nil
}

// Release deletes the lease at key unconditionally. Releasing is a
// best-effort optimization: per spec §4.3 step 5 and §4.5, a lease is
// also allowed to simply expire, so callers may ignore the error.
func (s *Store) Release(key string) error {
	p := s.path(key)
	_, stat, err := s.conn.Get(p)
	if err != nil {
		return nil
	}
	return s.conn.Delete(p, stat.Version)
}
