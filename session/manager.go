// Package session owns a single long-lived ZooKeeper session, dispatching
// session lifecycle events to registered observers in one serialized
// context and automatically re-establishing the session on expiration.
//
// The manager tracks five named states (Connecting, Connected, Expired,
// AuthFailed, Associating), notifies registered observers of every
// transition, and redials automatically when the underlying connection
// reports the session has expired.
package session

import (
	"fmt"
	"strings"
	"sync"

	zookeeper "github.com/Shopify/gozk"

	"github.com/techresidents/gozk-coordination/metrics"
	"github.com/techresidents/gozk-coordination/zkevent"
	"github.com/techresidents/gozk-coordination/zklog"
)

// allStates lists every SessionState, in declaration order, for metrics
// label enumeration.
var allStates = []string{
	zkevent.Associating.String(),
	zkevent.AuthFailed.String(),
	zkevent.Connecting.String(),
	zkevent.Connected.String(),
	zkevent.Expired.String(),
}

// Observer is invoked for every session event, in the Manager's own
// dispatch goroutine, in registration order, never re-entrantly.
type Observer func(zkevent.Event)

// Subscription identifies a registered Observer so it can later be removed.
// Go funcs are not comparable, so removal is by handle rather than by
// function identity.
type Subscription struct{ id uint64 }

// Manager owns one ZooKeeper session. The zero value is not usable; build
// one with New.
type Manager struct {
	cfg     config
	metrics *metrics.Collector

	mu              sync.Mutex
	conn            *zookeeper.Conn
	driverEvents    <-chan zookeeper.Event
	state           zkevent.SessionState
	sessionID       int64
	sessionPassword string
	running         bool
	nextObserverID  uint64
	observers       []observerEntry
	stopCh          chan struct{}
	stoppedCh       chan struct{}
}

type observerEntry struct {
	id uint64
	fn Observer
}

// New builds a Manager from opts. It does not connect; call Start for that.
func New(opts ...Opt) (*Manager, error) {
	cfg := newConfig()
	for _, opt := range opts {
		cfg = opt(cfg)
	}

	if len(cfg.servers) == 0 {
		return nil, fmt.Errorf("session: at least one server is required")
	}

	return &Manager{
		cfg:             cfg,
		sessionID:       cfg.sessionID,
		sessionPassword: cfg.sessionPassword,
		state:           zkevent.Connecting,
	}, nil
}

// WithMetrics attaches a metrics collector, returning m for chaining. It is
// not a functional Opt because metrics.Collector depends on a registry the
// caller constructs separately.
func (m *Manager) WithMetrics(c *metrics.Collector) *Manager {
	m.metrics = c
	return m
}

// Start establishes the session and begins dispatching events. It is
// idempotent: calling Start on an already-running Manager is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})
	m.mu.Unlock()

	if err := m.dial(m.sessionID, m.sessionPassword); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	go m.run()
	return nil
}

// Stop signals the dispatch goroutine to close the connection and returns
// without blocking. Callers wishing to wait for the underlying connection to
// close should receive from Stopped().
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
}

// Stopped returns a channel closed once the dispatch goroutine has closed
// the underlying connection and exited. The event stream is not drained
// first: session events not yet received when Stop is called may be dropped
// without reaching observers.
func (m *Manager) Stopped() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stoppedCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.stoppedCh
}

// AddSessionObserver registers fn to be invoked, in this Manager's dispatch
// goroutine, for every subsequent session event. Observers are invoked
// sequentially in registration order and never re-entrantly.
func (m *Manager) AddSessionObserver(fn Observer) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextObserverID++
	id := m.nextObserverID
	m.observers = append(m.observers, observerEntry{id: id, fn: fn})
	return Subscription{id: id}
}

// RemoveSessionObserver unregisters a previously registered observer.
func (m *Manager) RemoveSessionObserver(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.observers {
		if entry.id == sub.id {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// State returns the current session state.
func (m *Manager) State() zkevent.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the current (session id, session password). Both are
// cleared when the session expires.
func (m *Manager) Session() (int64, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.sessionPassword
}

// SessionTimeout returns the negotiated session timeout, in milliseconds.
func (m *Manager) SessionTimeout() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return int(m.cfg.recvTimeout.Milliseconds())
	}
	return m.conn.SessionTimeout()
}

// Conn returns the driver connection, or ErrClosing if the Manager holds no
// connection handle (not started, stopped, or between an expiry and the new
// dial). A handle is returned in every other state, including Connecting.
// Callers (the zkclient facade, watchers) must
// never retain the returned pointer past a single operation — a
// reconnection can swap it out from under them.
func (m *Manager) Conn() (*zookeeper.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil, zkevent.ErrClosing
	}
	return m.conn, nil
}

// ACL returns the default ACL this Manager applies to nodes created without
// an explicit ACL.
func (m *Manager) ACL() []zookeeper.ACL {
	return m.cfg.acl
}

func (m *Manager) dial(sessionID int64, password string) error {
	servers := strings.Join(m.cfg.servers, ",")

	var (
		conn   *zookeeper.Conn
		events <-chan zookeeper.Event
		err    error
	)

	if sessionID != 0 {
		conn, events, err = zookeeper.Redial(servers, m.cfg.recvTimeout.Nanoseconds(), zookeeper.NewClientId(sessionID, password))
	} else {
		conn, events, err = zookeeper.Dial(servers, m.cfg.recvTimeout.Nanoseconds())
	}
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", servers, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.driverEvents = events
	m.mu.Unlock()

	return nil
}

func (m *Manager) run() {
	defer close(m.stoppedCh)

	for {
		m.mu.Lock()
		events := m.driverEvents
		stopCh := m.stopCh
		m.mu.Unlock()

		select {
		case raw, ok := <-events:
			if !ok {
				m.closeConn()
				return
			}
			m.handleDriverEvent(raw)

		case <-stopCh:
			m.closeConn()
			return
		}
	}
}

func (m *Manager) handleDriverEvent(raw zookeeper.Event) {
	state := convertState(raw.State)
	event := zkevent.Event{Kind: zkevent.Session, State: state, Path: raw.Path}

	switch state {
	case zkevent.Connected:
		m.onConnected()
	case zkevent.Connecting:
		m.onConnecting()
	case zkevent.Expired:
		m.onExpired()
	case zkevent.AuthFailed:
		m.onAuthFailed()
	}

	m.dispatch(event)
}

// onConnected caches (session_id, session_password) only now, never on a
// merely transient Connecting transition.
func (m *Manager) onConnected() {
	m.mu.Lock()
	conn := m.conn
	m.state = zkevent.Connected
	m.mu.Unlock()

	if conn == nil {
		return
	}
	clientID := conn.ClientId()

	m.mu.Lock()
	m.sessionID = clientID.Id()
	m.sessionPassword = clientID.Password()
	m.mu.Unlock()

	m.cfg.logger.Printf("session: connected (session_id=%x)", clientID.Id())
}

// onConnecting is transient: do not clear cached session state.
func (m *Manager) onConnecting() {
	m.mu.Lock()
	wasConnected := m.state == zkevent.Connected
	m.state = zkevent.Connecting
	m.mu.Unlock()

	if wasConnected {
		m.cfg.logger.Printf("session: connection lost, attempting to reconnect")
	}
}

func (m *Manager) onAuthFailed() {
	m.mu.Lock()
	m.state = zkevent.AuthFailed
	m.mu.Unlock()
	m.cfg.logger.Printf("session: authentication failed, session terminated")
}

// onExpired clears cached session id/password and the connection handle,
// then re-initiates with no prior session credentials.
func (m *Manager) onExpired() {
	m.mu.Lock()
	oldID := m.sessionID
	m.state = zkevent.Expired
	m.sessionID = 0
	m.sessionPassword = ""
	m.conn = nil
	m.mu.Unlock()

	m.cfg.logger.Printf("session: session %x expired, establishing a new session", oldID)
	zklog.Internal().WithField("old_session_id", oldID).Warn("zookeeper session expired")

	if m.metrics != nil {
		m.metrics.IncReconnects()
	}

	if err := m.dial(0, ""); err != nil {
		m.cfg.logger.Printf("session: failed to establish new session after expiry: %v", err)
		zklog.Internal().WithError(err).Error("failed to re-establish zookeeper session")
	}
}

func (m *Manager) closeConn() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.sessionID = 0
	m.sessionPassword = ""
	m.state = zkevent.Connecting
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// dispatch invokes every registered observer sequentially, in registration
// order, copying the observer list first so registration changes made from
// within an observer never cause re-entrant iteration.
func (m *Manager) dispatch(event zkevent.Event) {
	m.mu.Lock()
	observers := make([]observerEntry, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetState(allStates, event.State.String())
	}

	for _, entry := range observers {
		m.invokeObserver(entry.fn, event)
	}
}

// invokeObserver runs fn under a recover guard so a panicking observer
// cannot take down the dispatch goroutine; the panic is logged and
// swallowed.
func (m *Manager) invokeObserver(fn Observer, event zkevent.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.logger.Printf("session: observer panic: %v", r)
			zklog.Internal().WithField("panic", r).Error("session observer panicked")
		}
	}()
	fn(event)
}

func convertState(raw int) zkevent.SessionState {
	switch raw {
	case zookeeper.STATE_CONNECTED:
		return zkevent.Connected
	case zookeeper.STATE_CONNECTING:
		return zkevent.Connecting
	case zookeeper.STATE_ASSOCIATING:
		return zkevent.Associating
	case zookeeper.STATE_EXPIRED_SESSION:
		return zkevent.Expired
	case zookeeper.STATE_AUTH_FAILED:
		return zkevent.AuthFailed
	default:
		return zkevent.Connecting
	}
}
