package lease

import (
	"time"

	"github.com/go-zookeeper/zk"
)

// NewZKConn dials the consensus store at hosts and returns a Conn
// backed by the real client library. The returned close func must be
// called once per agent invocation to release the session (spec §9:
// no ambient/global singleton for the lease client).
func NewZKConn(hosts []string, sessionTimeout time.Duration) (conn Conn, close func(), err error) {
	c, _, err := zk.Connect(hosts, sessionTimeout)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
