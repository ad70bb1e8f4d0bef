// Package zktestutil provides a session expiration test helper and a
// toxiproxy-backed fault injection harness for integration tests that need
// to observe a session transition through Connecting, Expired, and back to
// Connected without waiting out a real session timeout.
package zktestutil

import (
	"fmt"

	"github.com/techresidents/gozk-coordination/session"
)

// ExpireSession forces target's current session into the Expired state by
// opening a second, throwaway session bound to the same (session id,
// password) and immediately closing it. ZooKeeper treats the second
// connection as taking over the session, which causes target's connection
// to receive STATE_EXPIRED_SESSION — the same trick the ensemble's own
// admin tooling uses to kill a session without restarting a server.
//
// target must currently be connected; ExpireSession does not wait for the
// expiration to be observed, only for the shadow session to be torn down.
func ExpireSession(target *session.Manager, servers []string) error {
	sessionID, password := target.Session()
	if sessionID == 0 {
		return fmt.Errorf("zktestutil: target has no active session to expire")
	}

	shadow, err := session.New(
		session.WithServers(servers),
		session.WithPriorSession(sessionID, password),
	)
	if err != nil {
		return fmt.Errorf("zktestutil: building shadow session: %w", err)
	}

	if err := shadow.Start(); err != nil {
		return fmt.Errorf("zktestutil: starting shadow session: %w", err)
	}
	shadow.Stop()
	<-shadow.Stopped()

	return nil
}
