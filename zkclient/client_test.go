package zkclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zookeeper "github.com/Shopify/gozk"

	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkevent"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	mgr, err := session.New(session.WithServers([]string{"localhost:2181"}))
	require.NoError(t, err)
	return New(mgr)
}

func TestFlags(t *testing.T) {
	assert.Equal(t, 0, flags(false, false))
	assert.Equal(t, zookeeper.SEQUENCE, flags(true, false))
	assert.Equal(t, zookeeper.EPHEMERAL, flags(false, true))
	assert.Equal(t, zookeeper.SEQUENCE|zookeeper.EPHEMERAL, flags(true, true))
}

func TestAclOrDefaultFallsBackToManagerACL(t *testing.T) {
	f := newTestFacade(t)
	assert.Equal(t, f.mgr.ACL(), f.aclOrDefault(nil))

	custom := zookeeper.WorldACL(zookeeper.PERM_READ)
	assert.Equal(t, custom, f.aclOrDefault(custom))
}

func TestConvertKind(t *testing.T) {
	cases := map[int]zkevent.Kind{
		zookeeper.EVENT_CREATED:     zkevent.Created,
		zookeeper.EVENT_DELETED:     zkevent.Deleted,
		zookeeper.EVENT_CHANGED:     zkevent.Changed,
		zookeeper.EVENT_CHILD:       zkevent.Child,
		zookeeper.EVENT_NOTWATCHING: zkevent.NotWatching,
	}
	for raw, want := range cases {
		assert.Equal(t, want, convertKind(raw))
	}
	assert.Equal(t, zkevent.Session, convertKind(zookeeper.EVENT_SESSION))
}

func TestConvertRawState(t *testing.T) {
	cases := map[int]zkevent.SessionState{
		zookeeper.STATE_CONNECTED:       zkevent.Connected,
		zookeeper.STATE_CONNECTING:      zkevent.Connecting,
		zookeeper.STATE_ASSOCIATING:     zkevent.Associating,
		zookeeper.STATE_EXPIRED_SESSION: zkevent.Expired,
		zookeeper.STATE_AUTH_FAILED:     zkevent.AuthFailed,
	}
	for raw, want := range cases {
		assert.Equal(t, want, convertRawState(raw))
	}
}

func TestWrapErrNilIsNil(t *testing.T) {
	assert.NoError(t, wrapErr(nil, "anything"))
}

func TestWrapErrKnownCodeMapsToSentinel(t *testing.T) {
	err := wrapErr(zookeeper.ZNONODE, "get_data /a")
	assert.True(t, zkevent.IsNoNode(err))
}

func TestWrapErrUnknownWraps(t *testing.T) {
	original := errors.New("boom")
	err := wrapErr(original, "create /a")
	require.Error(t, err)
	assert.ErrorIs(t, err, original)
}

func TestCreatePathPropagatesConnErrorBeforeDialing(t *testing.T) {
	f := newTestFacade(t)

	_, created, err := f.CreatePath("/a/b/c", CreateOpts{})
	assert.False(t, created)
	assert.ErrorIs(t, err, zkevent.ErrClosing)
}

func TestCreatePathRejectsEmptyPath(t *testing.T) {
	f := newTestFacade(t)

	_, _, err := f.CreatePath("/", CreateOpts{})
	assert.Error(t, err)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))
	assert.Equal(t, "/b", JoinPath("/", "b"))
}

func TestAsyncMethodsPropagateConnErrorBeforeDialing(t *testing.T) {
	f := newTestFacade(t)

	_, err := f.AsyncCreate("/a", CreateOpts{}).Get(0)
	assert.ErrorIs(t, err, zkevent.ErrClosing)

	_, err = f.AsyncExists("/a", nil).Get(0)
	assert.ErrorIs(t, err, zkevent.ErrClosing)

	_, err = f.AsyncGetChildren("/a", nil).Get(0)
	assert.ErrorIs(t, err, zkevent.ErrClosing)

	_, err = f.AsyncGetData("/a", nil).Get(0)
	assert.ErrorIs(t, err, zkevent.ErrClosing)

	_, err = f.AsyncSetData("/a", nil, -1).Get(0)
	assert.ErrorIs(t, err, zkevent.ErrClosing)

	_, err = f.AsyncDelete("/a", -1).Get(0)
	assert.ErrorIs(t, err, zkevent.ErrClosing)
}
