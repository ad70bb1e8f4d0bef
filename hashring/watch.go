package hashring

import (
	"sync"
	"time"

	"github.com/techresidents/gozk-coordination/metrics"
	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkclient"
	"github.com/techresidents/gozk-coordination/zkevent"
	"github.com/techresidents/gozk-coordination/zklog"
)

const maxConsecutiveFailures = 10

// retryBackoff is the pause between a failed fetch and the next retry.
const retryBackoff = 250 * time.Millisecond

// Observer is invoked with the Watch whenever positions are added or
// removed from the ring.
type Observer func(*Watch)

// Opt configures a Watch at construction time.
type Opt func(*Watch)

// WithObserver registers fn to run whenever the ring's position set changes.
func WithObserver(fn Observer) Opt {
	return func(w *Watch) { w.watchObserver = fn }
}

// WithSessionObserver registers fn to run on every session event while this
// watch is active.
func WithSessionObserver(fn func(zkevent.Event)) Opt {
	return func(w *Watch) { w.sessionObserver = fn }
}

// WithPositionData sets the data stored at every position this process
// occupies. If unset, a position's own token hex string is stored instead.
func WithPositionData(data []byte) Opt {
	return func(w *Watch) { w.positionData = data }
}

// Watch maintains a consistent hash ring from a ZooKeeper node's children:
// num_positions ephemeral child nodes are created to occupy positions on the
// ring, and every child (ours and every other process's) is tracked to
// build the full ring used for PreferenceList/FindNode lookups.
type Watch struct {
	mgr          *session.Manager
	facade       *zkclient.Facade
	path         string
	numPositions int
	positionData []byte
	metrics      *metrics.Collector

	watchObserver   Observer
	sessionObserver func(zkevent.Event)

	mu        sync.Mutex
	watching  bool
	running   bool
	positions []Token
	ring      *Ring
	lastErr   error
	failures  int
}

// NewWatch builds a hashring Watch over path, occupying numPositions
// positions on the ring once started. Call Start to begin.
func NewWatch(mgr *session.Manager, facade *zkclient.Facade, path string, numPositions int, opts ...Opt) *Watch {
	w := &Watch{
		mgr:          mgr,
		facade:       facade,
		path:         path,
		numPositions: numPositions,
		ring:         NewRing(),
	}
	for _, opt := range opts {
		opt(w)
	}

	mgr.AddSessionObserver(w.onSessionEvent)
	return w
}

// WithMetrics attaches a metrics collector, returning w for chaining. It is
// not a functional Opt because metrics.Collector depends on a registry the
// caller constructs separately.
func (w *Watch) WithMetrics(c *metrics.Collector) *Watch {
	w.metrics = c
	return w
}

func (w *Watch) onSessionEvent(event zkevent.Event) {
	if event.State == zkevent.Expired {
		w.mu.Lock()
		w.positions = nil
		w.running = false
		w.ring.Reset()
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

// Start begins watching and, on first connection, occupies this process's
// positions on the ring. Start is idempotent.
func (w *Watch) Start() {
	w.mu.Lock()
	w.watching = true
	if w.mgr.State() != zkevent.Connected {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.failures = 0
	w.mu.Unlock()

	w.addPositions()
	w.fetch()
}

// Stop disarms the watch and removes every position this process occupies,
// best effort: a NoNode on delete (the node already gone, e.g. the session
// expired in between) is tolerated and logged, not returned.
func (w *Watch) Stop() {
	w.mu.Lock()
	w.watching = false
	w.running = false
	positions := w.positions
	w.positions = nil
	w.mu.Unlock()

	for _, token := range positions {
		p := zkclient.JoinPath(w.path, token.String())
		err := w.facade.Delete(p, -1)
		switch {
		case err == nil:
		case zkevent.IsNoNode(err):
			zklog.Internal().WithField("path", p).Info("hashring owned position already gone")
		default:
			zklog.Internal().WithField("path", p).WithError(err).Warn("hashring failed to remove owned position")
		}
	}
}

// Tokens returns every position currently on the ring, in ring order.
func (w *Watch) Tokens() []Token {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.Tokens()
}

// PreferenceList returns the ring-order rotation of positions to try for
// key, starting at the first position strictly greater than HashToken(key).
func (w *Watch) PreferenceList(key []byte) []Token {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.PreferenceList(key)
}

// FindHashringNode returns the data stored at the position selected for
// key. key is always threaded through to the underlying preference-list
// computation: there is no notion of "the last key looked up" to fall back
// on.
func (w *Watch) FindHashringNode(key []byte) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.FindNode(key)
}

// Err returns the error from the most recent failed fetch, if any.
func (w *Watch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// addPositions creates this process's ephemeral position nodes, retrying on
// token collision.
func (w *Watch) addPositions() {
	w.mu.Lock()
	alreadyOccupied := len(w.positions) > 0
	w.mu.Unlock()
	if alreadyOccupied {
		return
	}

	if _, _, err := w.facade.CreatePath(w.path, zkclient.CreateOpts{}); err != nil && !zkevent.IsNodeExists(err) {
		zklog.Internal().WithField("path", w.path).WithError(err).Error("hashring failed to ensure parent path")
		return
	}

	for i := 0; i < w.numPositions; i++ {
		for {
			token := randomToken()
			data := w.positionData
			if data == nil {
				data = []byte(token.String())
			}

			_, err := w.facade.Create(zkclient.JoinPath(w.path, token.String()), zkclient.CreateOpts{
				Data:      data,
				Ephemeral: true,
			})
			if err != nil {
				if zkevent.IsNodeExists(err) {
					continue
				}
				zklog.Internal().WithField("path", w.path).WithError(err).Error("hashring failed to occupy position")
				break
			}

			w.mu.Lock()
			w.positions = append(w.positions, token)
			w.mu.Unlock()
			break
		}
	}
}

func (w *Watch) fetch() {
	names, err := w.facade.GetChildren(w.path, w.onFire)
	if err != nil {
		w.recordFailure(err)
		return
	}

	w.mu.Lock()
	current := map[Token]struct{}{}
	for _, t := range w.ring.Tokens() {
		current[t] = struct{}{}
	}
	w.mu.Unlock()

	present := make(map[Token]struct{}, len(names))
	for _, name := range names {
		token, parseErr := ParseToken(name)
		if parseErr != nil {
			zklog.Internal().WithField("path", w.path).WithField("child", name).Warn("hashring ignoring non-token child")
			continue
		}
		present[token] = struct{}{}

		if _, ok := current[token]; ok {
			continue
		}

		data, _, getErr := w.facade.GetData(zkclient.JoinPath(w.path, name), nil)
		if getErr != nil {
			zklog.Internal().WithField("path", w.path).WithField("child", name).WithError(getErr).Warn("hashring failed to fetch new position data")
			continue
		}

		w.mu.Lock()
		w.ring.Insert(token, data)
		w.mu.Unlock()
	}

	w.mu.Lock()
	for t := range current {
		if _, ok := present[t]; !ok {
			w.ring.Remove(t)
		}
	}
	w.lastErr = nil
	w.failures = 0
	watching := w.watching
	observer := w.watchObserver
	size := w.ring.Len()
	w.mu.Unlock()

	w.metrics.SetHashringSize(w.path, size)

	if watching && observer != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zklog.Internal().WithField("path", w.path).WithField("panic", r).Error("hashring watch observer panicked")
				}
			}()
			observer(w)
		}()
	}
}

func (w *Watch) onFire(event zkevent.Event) {
	w.mu.Lock()
	watching := w.watching
	w.mu.Unlock()

	if !watching || event.State != zkevent.Connected {
		return
	}
	w.fetch()
}

func (w *Watch) recordFailure(err error) {
	if zkevent.IsClosing(err) {
		return
	}

	w.mu.Lock()
	w.lastErr = err
	w.failures++
	failures := w.failures
	path := w.path
	w.mu.Unlock()

	zklog.Internal().WithField("path", path).WithError(err).Warn("hashring watch fetch failed")

	if failures >= maxConsecutiveFailures {
		zklog.Internal().WithField("path", path).Error("hashring watch giving up after repeated failures")
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return
	}

	time.AfterFunc(retryBackoff, w.fetch)
}
