package watch

import (
	"sync"
	"time"

	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkclient"
	"github.com/techresidents/gozk-coordination/zkevent"
	"github.com/techresidents/gozk-coordination/zklog"
)

// DataObserver is invoked with the DataWatch whenever the watched node's
// data changes. It runs on whichever goroutine performed the fetch: the
// caller of Start, the session dispatch goroutine, a watch-firing goroutine
// or a retry timer. The DataWatch does not serialize these calls.
type DataObserver func(*DataWatch)

// DataWatchOpt configures a DataWatch at construction time.
type DataWatchOpt func(*DataWatch)

// WithDataObserver registers fn to run whenever the watched data changes.
func WithDataObserver(fn DataObserver) DataWatchOpt {
	return func(w *DataWatch) { w.watchObserver = fn }
}

// WithDataSessionObserver registers fn to run on every session event while
// this watch is active.
func WithDataSessionObserver(fn func(zkevent.Event)) DataWatchOpt {
	return func(w *DataWatch) { w.sessionObserver = fn }
}

// DataWatch keeps a node's data and stat available locally, transparently
// re-arming the underlying one-shot watch on every fire and restarting
// itself across reconnects.
type DataWatch struct {
	mgr    *session.Manager
	facade *zkclient.Facade
	path   string

	watchObserver   DataObserver
	sessionObserver func(zkevent.Event)

	mu        sync.Mutex
	watching  bool
	running   bool
	data      []byte
	stat      zkevent.Stat
	lastErr   error
	failures  int
	sessionID session.Subscription
}

// NewDataWatch builds a DataWatch over path. Call Start to begin watching.
func NewDataWatch(mgr *session.Manager, facade *zkclient.Facade, path string, opts ...DataWatchOpt) *DataWatch {
	w := &DataWatch{mgr: mgr, facade: facade, path: path}
	for _, opt := range opts {
		opt(w)
	}

	w.sessionID = mgr.AddSessionObserver(w.onSessionEvent)
	return w
}

// onSessionEvent restarts the watch once the session reconnects after being
// started while disconnected, and clears the cached data/stat when the
// session expires: a stale value from the dead session is worse than none.
func (w *DataWatch) onSessionEvent(event zkevent.Event) {
	if event.State == zkevent.Expired {
		w.mu.Lock()
		w.data = nil
		w.stat = zkevent.Stat{}
		w.running = false
		w.mu.Unlock()
	}

	w.mu.Lock()
	watching := w.watching
	running := w.running
	w.mu.Unlock()

	if watching && !running && event.State == zkevent.Connected {
		w.Start()
	}

	if watching && w.sessionObserver != nil {
		w.sessionObserver(event)
	}
}

// Start begins watching the node. If the session is not currently connected,
// watching resumes automatically once it is. Start is idempotent.
func (w *DataWatch) Start() {
	w.mu.Lock()
	w.watching = true
	if w.mgr.State() != zkevent.Connected {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.failures = 0
	w.mu.Unlock()

	w.fetch()
}

// Stop disarms the watch. A watch that is already mid-fire when Stop is
// called may still deliver one more observer invocation.
func (w *DataWatch) Stop() {
	w.mu.Lock()
	w.watching = false
	w.running = false
	w.mu.Unlock()
}

// Data returns the last observed node data.
func (w *DataWatch) Data() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data
}

// Stat returns the last observed node stat.
func (w *DataWatch) Stat() zkevent.Stat {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stat
}

// Err returns the error from the most recent failed fetch, if any.
func (w *DataWatch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *DataWatch) fetch() {
	data, stat, err := w.facade.GetData(w.path, w.onFire)
	if err != nil {
		if zkevent.IsNoNode(err) {
			w.armExistsFallback()
			return
		}
		w.recordFailure(err)
		return
	}

	w.mu.Lock()
	w.data = data
	w.stat = stat
	w.lastErr = nil
	w.failures = 0
	watching := w.watching
	observer := w.watchObserver
	w.mu.Unlock()

	if watching && observer != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zklog.Internal().WithField("path", w.path).WithField("panic", r).Error("data watch observer panicked")
				}
			}()
			observer(w)
		}()
	}
}

// armExistsFallback waits for a missing node to be created: a NoNode result
// from fetch doesn't mean the watch is dead, just that it has nothing to
// watch yet. If the node was created in the gap between the failed fetch
// and this call, Exists already observes it and the exists-watch just
// armed will never fire for it, so fetch is reissued immediately instead
// of waiting on that watch.
func (w *DataWatch) armExistsFallback() {
	stat, err := w.facade.Exists(w.path, w.onFire)
	if err != nil {
		w.recordFailure(err)
		return
	}
	w.mu.Lock()
	w.lastErr = nil
	w.failures = 0
	w.mu.Unlock()

	if stat != nil {
		w.fetch()
	}
}

// onFire is the one-shot watcher passed to GetData/Exists. It re-arms by
// issuing a fresh fetch.
func (w *DataWatch) onFire(event zkevent.Event) {
	w.mu.Lock()
	watching := w.watching
	w.mu.Unlock()

	if !watching || event.State != zkevent.Connected {
		return
	}
	w.fetch()
}

func (w *DataWatch) recordFailure(err error) {
	if zkevent.IsClosing(err) {
		return
	}

	w.mu.Lock()
	w.lastErr = err
	w.failures++
	failures := w.failures
	path := w.path
	w.mu.Unlock()

	zklog.Internal().WithField("path", path).WithError(err).Warn("data watch fetch failed")

	if failures >= maxConsecutiveFailures {
		zklog.Internal().WithField("path", path).Error("data watch giving up after repeated failures")
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return
	}

	time.AfterFunc(retryBackoff, w.fetch)
}
