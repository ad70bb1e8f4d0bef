package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkclient"
	"github.com/techresidents/gozk-coordination/zkevent"
)

func newTestChildrenWatch(t *testing.T) (*ChildrenWatch, *session.Manager) {
	t.Helper()
	mgr, err := session.New(session.WithServers([]string{"localhost:2181"}))
	require.NoError(t, err)
	facade := zkclient.New(mgr)
	return NewChildrenWatch(mgr, facade, "/a/b"), mgr
}

func TestChildrenWatchStartWithoutConnectionOnlySetsWatching(t *testing.T) {
	w, _ := newTestChildrenWatch(t)
	w.Start()
	assert.True(t, w.watching)
	assert.False(t, w.running)
}

func TestChildrenWatchStopClearsFlags(t *testing.T) {
	w, _ := newTestChildrenWatch(t)
	w.Start()
	w.Stop()
	assert.False(t, w.watching)
	assert.False(t, w.running)
}

func TestChildrenWatchInitiallyEmpty(t *testing.T) {
	w, _ := newTestChildrenWatch(t)
	assert.Empty(t, w.Children())
}

func TestChildrenWatchOnFireIgnoresWhenNotWatching(t *testing.T) {
	w, _ := newTestChildrenWatch(t)
	assert.NotPanics(t, func() {
		w.onFire(zkevent.Event{Kind: zkevent.Child, State: zkevent.Connected})
	})
}

func TestChildrenWatchRecordFailureGivesUpAfterMaxFailures(t *testing.T) {
	w, _ := newTestChildrenWatch(t)
	w.running = true
	w.failures = maxConsecutiveFailures - 1
	w.recordFailure(assert.AnError)
	assert.False(t, w.running)
	assert.ErrorIs(t, w.Err(), assert.AnError)
}

func TestChildrenWatchExpiredClearsCachedChildren(t *testing.T) {
	w, _ := newTestChildrenWatch(t)
	w.children = map[string][]byte{"x": []byte("stale")}
	w.running = true

	w.onSessionEvent(zkevent.Event{Kind: zkevent.Session, State: zkevent.Expired})

	assert.Empty(t, w.Children())
	assert.False(t, w.running)
}
