//go:build integration

// These tests require a reachable ZooKeeper ensemble (ZK_UPSTREAM env var)
// and are excluded from the default test run; run with -tags=integration.
package zkclient

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkevent"
)

func requireUpstream(t *testing.T) []string {
	t.Helper()
	addr := os.Getenv("ZK_UPSTREAM")
	if addr == "" {
		t.Skip("ZK_UPSTREAM not set, skipping integration test")
	}
	return []string{addr}
}

func waitConnected(t *testing.T, mgr *session.Manager) {
	t.Helper()
	if mgr.State() == zkevent.Connected {
		return
	}

	ch := make(chan struct{}, 1)
	sub := mgr.AddSessionObserver(func(e zkevent.Event) {
		if e.State == zkevent.Connected {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})
	defer mgr.RemoveSessionObserver(sub)

	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("session did not connect")
	}
}

func connectedFacade(t *testing.T) *Facade {
	t.Helper()
	mgr, err := session.New(session.WithServers(requireUpstream(t)))
	require.NoError(t, err)
	require.NoError(t, mgr.Start())
	t.Cleanup(mgr.Stop)
	waitConnected(t, mgr)
	return New(mgr)
}

// TestCreateAndReadBack covers create, read-back, a leaf NodeExists on a
// second create, and delete, against a live ensemble.
func TestCreateAndReadBack(t *testing.T) {
	f := connectedFacade(t)

	path, err := f.Create("/unittest_create", CreateOpts{Data: []byte("unittest_data"), Ephemeral: true})
	require.NoError(t, err)
	require.Equal(t, "/unittest_create", path)
	t.Cleanup(func() { _ = f.Delete(path, -1) })

	data, _, err := f.GetData(path, nil)
	require.NoError(t, err)
	require.Equal(t, "unittest_data", string(data))

	_, err = f.Create(path, CreateOpts{Data: []byte("unittest_data"), Ephemeral: true})
	require.True(t, zkevent.IsNodeExists(err))

	require.NoError(t, f.Delete(path, -1))
	_, _, err = f.GetData(path, nil)
	require.True(t, zkevent.IsNoNode(err))
}

// TestCreatePathNested covers CreatePath creating empty-data ancestors and
// a leaf carrying the supplied data.
func TestCreatePathNested(t *testing.T) {
	f := connectedFacade(t)

	leaf, created, err := f.CreatePath("/unittest_create_path/path/path", CreateOpts{Data: []byte("unittest_data")})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "/unittest_create_path/path/path", leaf)
	t.Cleanup(func() {
		_ = f.Delete(leaf, -1)
		_ = f.Delete("/unittest_create_path/path", -1)
		_ = f.Delete("/unittest_create_path", -1)
	})

	data, _, err := f.GetData(leaf, nil)
	require.NoError(t, err)
	require.Equal(t, "unittest_data", string(data))

	ancestorData, _, err := f.GetData("/unittest_create_path/path", nil)
	require.NoError(t, err)
	require.Empty(t, ancestorData)

	_, _, err = f.CreatePath(leaf, CreateOpts{})
	require.True(t, zkevent.IsNodeExists(err))
}
