package watch

import (
	"sync"
	"time"

	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkclient"
	"github.com/techresidents/gozk-coordination/zkevent"
	"github.com/techresidents/gozk-coordination/zklog"
)

// ChildrenObserver is invoked with the ChildrenWatch whenever a child is
// added or removed.
type ChildrenObserver func(*ChildrenWatch)

// ChildrenWatchOpt configures a ChildrenWatch at construction time.
type ChildrenWatchOpt func(*ChildrenWatch)

// WithChildrenObserver registers fn to run whenever the child set changes.
func WithChildrenObserver(fn ChildrenObserver) ChildrenWatchOpt {
	return func(w *ChildrenWatch) { w.watchObserver = fn }
}

// WithChildrenSessionObserver registers fn to run on every session event
// while this watch is active.
func WithChildrenSessionObserver(fn func(zkevent.Event)) ChildrenWatchOpt {
	return func(w *ChildrenWatch) { w.sessionObserver = fn }
}

// ChildrenWatch monitors the existence of a node's children and their
// initial data — child data is fetched once, when the child first appears,
// and is never re-watched.
type ChildrenWatch struct {
	mgr    *session.Manager
	facade *zkclient.Facade
	path   string

	watchObserver   ChildrenObserver
	sessionObserver func(zkevent.Event)

	mu       sync.Mutex
	watching bool
	running  bool
	children map[string][]byte
	lastErr  error
	failures int
}

// NewChildrenWatch builds a ChildrenWatch over path. Call Start to begin
// watching.
func NewChildrenWatch(mgr *session.Manager, facade *zkclient.Facade, path string, opts ...ChildrenWatchOpt) *ChildrenWatch {
	w := &ChildrenWatch{mgr: mgr, facade: facade, path: path, children: map[string][]byte{}}
	for _, opt := range opts {
		opt(w)
	}

	mgr.AddSessionObserver(w.onSessionEvent)
	return w
}

// onSessionEvent restarts the watch once the session reconnects after being
// started while disconnected, and clears the cached child set when the
// session expires: a stale snapshot from the dead session is worse than
// none.
func (w *ChildrenWatch) onSessionEvent(event zkevent.Event) {
	if event.State == zkevent.Expired {
		w.mu.Lock()
		w.children = map[string][]byte{}
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

// Start begins watching. If the session is not currently connected, watching
// resumes automatically once it is. Start is idempotent.
func (w *ChildrenWatch) Start() {
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

// Stop disarms the watch.
func (w *ChildrenWatch) Stop() {
	w.mu.Lock()
	w.watching = false
	w.running = false
	w.mu.Unlock()
}

// Children returns a snapshot mapping each current child name to its data as
// observed when the child first appeared.
func (w *ChildrenWatch) Children() map[string][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.children
}

// Err returns the error from the most recent failed fetch, if any.
func (w *ChildrenWatch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *ChildrenWatch) fetch() {
	names, err := w.facade.GetChildren(w.path, w.onFire)
	if err != nil {
		if zkevent.IsNoNode(err) {
			w.armExistsFallback()
			return
		}
		w.recordFailure(err)
		return
	}

	w.mu.Lock()
	current := w.children
	w.mu.Unlock()

	present := make(map[string]struct{}, len(names))
	next := make(map[string][]byte, len(names))
	for _, name := range names {
		present[name] = struct{}{}
		if data, ok := current[name]; ok {
			next[name] = data
			continue
		}

		data, _, err := w.facade.GetData(zkclient.JoinPath(w.path, name), nil)
		if err != nil {
			zklog.Internal().WithField("path", w.path).WithField("child", name).WithError(err).Warn("children watch failed to fetch new child data")
			continue
		}
		next[name] = data
	}

	w.mu.Lock()
	w.children = next
	w.lastErr = nil
	w.failures = 0
	watching := w.watching
	observer := w.watchObserver
	w.mu.Unlock()

	if watching && observer != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zklog.Internal().WithField("path", w.path).WithField("panic", r).Error("children watch observer panicked")
				}
			}()
			observer(w)
		}()
	}
}

// armExistsFallback waits for a missing node to be created. If the node was
// created in the gap between the failed fetch and this call, Exists already
// observes it and the exists-watch just armed will never fire for it, so
// fetch is reissued immediately instead of waiting on that watch.
func (w *ChildrenWatch) armExistsFallback() {
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

func (w *ChildrenWatch) onFire(event zkevent.Event) {
	w.mu.Lock()
	watching := w.watching
	w.mu.Unlock()

	if !watching || event.State != zkevent.Connected {
		return
	}
	w.fetch()
}

func (w *ChildrenWatch) recordFailure(err error) {
	if zkevent.IsClosing(err) {
		return
	}

	w.mu.Lock()
	w.lastErr = err
	w.failures++
	failures := w.failures
	path := w.path
	w.mu.Unlock()

	zklog.Internal().WithField("path", path).WithError(err).Warn("children watch fetch failed")

	if failures >= maxConsecutiveFailures {
		zklog.Internal().WithField("path", path).Error("children watch giving up after repeated failures")
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return
	}

	time.AfterFunc(retryBackoff, w.fetch)
}
