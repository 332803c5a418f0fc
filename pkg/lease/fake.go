package lease

import (
	"sync"

	"github.com/go-zookeeper/zk"
)

// FakeConn is an in-memory Conn used by tests across this repository
// to exercise lease acquisition without a live consensus store.
type FakeConn struct {
	mu    sync.Mutex
	nodes map[string]fakeNode
}

type fakeNode struct {
	data    []byte
	version int32
}

// NewFakeConn returns an empty in-memory consensus-store connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{nodes: make(map[string]fakeNode)}
}

func (c *FakeConn) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[path]; ok {
		return "", zk.ErrNodeExists
	}
	c.nodes[path] = fakeNode{data: append([]byte(nil), data...), version: 0}
	return path, nil
}

func (c *FakeConn) Get(path string) ([]byte, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return append([]byte(nil), n.data...), &zk.Stat{Version: n.version}, nil
}

func (c *FakeConn) Set(path string, data []byte, version int32) (*zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[path]
	if !ok {
		return nil, zk.ErrNoNode
	}
	if n.version != version {
		return nil, zk.ErrBadVersion
	}
	n.data = append([]byte(nil), data...)
	n.version++
	c.nodes[path] = n
	return &zk.Stat{Version: n.version}, nil
}

func (c *FakeConn) Delete(path string, version int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[path]
	if !ok {
		return zk.ErrNoNode
	}
	if version != -1 && n.version != version {
		return zk.ErrBadVersion
	}
	delete(c.nodes, path)
	return nil
}
