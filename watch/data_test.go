package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkclient"
	"github.com/techresidents/gozk-coordination/zkevent"
)

func newTestDataWatch(t *testing.T) (*DataWatch, *session.Manager) {
	t.Helper()
	mgr, err := session.New(session.WithServers([]string{"localhost:2181"}))
	require.NoError(t, err)
	facade := zkclient.New(mgr)
	return NewDataWatch(mgr, facade, "/a/b"), mgr
}

func TestDataWatchStartWithoutConnectionOnlySetsWatching(t *testing.T) {
	w, _ := newTestDataWatch(t)
	w.Start()
	assert.True(t, w.watching)
	assert.False(t, w.running)
}

func TestDataWatchStopClearsFlags(t *testing.T) {
	w, _ := newTestDataWatch(t)
	w.Start()
	w.Stop()
	assert.False(t, w.watching)
	assert.False(t, w.running)
}

func TestDataWatchOnFireIgnoresWhenNotWatching(t *testing.T) {
	w, _ := newTestDataWatch(t)
	assert.NotPanics(t, func() {
		w.onFire(zkevent.Event{Kind: zkevent.Changed, State: zkevent.Connected})
	})
}

func TestDataWatchOnFireIgnoresNonConnectedState(t *testing.T) {
	w, _ := newTestDataWatch(t)
	w.watching = true
	assert.NotPanics(t, func() {
		w.onFire(zkevent.Event{Kind: zkevent.Changed, State: zkevent.Connecting})
	})
	assert.Nil(t, w.Data())
}

func TestDataWatchRecordFailureGivesUpAfterMaxFailures(t *testing.T) {
	w, _ := newTestDataWatch(t)
	w.running = true
	w.failures = maxConsecutiveFailures - 1
	w.recordFailure(assert.AnError)
	assert.False(t, w.running)
	assert.ErrorIs(t, w.Err(), assert.AnError)
}

func TestDataWatchSessionObserverRestartsOnlyWhenWatching(t *testing.T) {
	w, _ := newTestDataWatch(t)
	assert.NotPanics(t, func() {
		w.onSessionEvent(zkevent.Event{Kind: zkevent.Session, State: zkevent.Connected})
	})
	assert.False(t, w.running)
}

func TestDataWatchExpiredClearsCachedData(t *testing.T) {
	w, _ := newTestDataWatch(t)
	w.data = []byte("stale")
	w.stat = zkevent.Stat{Version: 3}
	w.running = true

	w.onSessionEvent(zkevent.Event{Kind: zkevent.Session, State: zkevent.Expired})

	assert.Nil(t, w.Data())
	assert.Equal(t, zkevent.Stat{}, w.Stat())
	assert.False(t, w.running)
}
