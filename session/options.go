package session

import (
	"time"

	zookeeper "github.com/Shopify/gozk"

	"github.com/techresidents/gozk-coordination/zklog"
)

// DefaultRecvTimeout is the session timeout used when no WithRecvTimeout
// option is supplied.
const DefaultRecvTimeout = 10 * time.Second

// defaultACL is world/anyone/all-permissions, applied to nodes created
// without an explicit ACL.
func defaultACL() []zookeeper.ACL {
	return zookeeper.WorldACL(zookeeper.PERM_ALL)
}

type config struct {
	servers         []string
	recvTimeout     time.Duration
	sessionID       int64
	sessionPassword string
	acl             []zookeeper.ACL
	logger          zklog.Logger
}

func newConfig() config {
	return config{
		recvTimeout: DefaultRecvTimeout,
		acl:         defaultACL(),
		logger:      zklog.Null{},
	}
}

// Opt configures a Manager at construction time. There is no file, flag,
// or environment-variable configuration surface — Opt is the only
// configuration seam.
type Opt func(config) config

// WithServers sets the ZooKeeper ensemble to connect to, e.g.
// []string{"zk1:2181", "zk2:2181"}.
func WithServers(servers []string) Opt {
	return func(c config) config {
		c.servers = servers
		return c
	}
}

// WithRecvTimeout overrides the negotiated session timeout.
func WithRecvTimeout(d time.Duration) Opt {
	return func(c config) config {
		c.recvTimeout = d
		return c
	}
}

// WithPriorSession resumes an existing session rather than establishing a
// new one, e.g. after a process restart that persisted its ZK session
// externally.
func WithPriorSession(sessionID int64, password string) Opt {
	return func(c config) config {
		c.sessionID = sessionID
		c.sessionPassword = password
		return c
	}
}

// WithACL overrides the default world/anyone/all ACL applied to nodes
// created without an explicit ACL.
func WithACL(acl []zookeeper.ACL) Opt {
	return func(c config) config {
		c.acl = acl
		return c
	}
}

// WithLogger sets the caller-facing logger. A *logrus.Logger or
// *logrus.Entry satisfies zklog.Logger directly.
func WithLogger(l zklog.Logger) Opt {
	return func(c config) config {
		if l != nil {
			c.logger = l
		}
		return c
	}
}
