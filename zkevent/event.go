// Package zkevent defines the typed events and session states the
// coordination client exposes to callers, translated from the raw
// (handle, type, state, path) callback shape of the underlying ZooKeeper
// driver. Callers of this module never see driver-specific callback
// signatures; every watcher and session observer receives one of the
// types defined here.
package zkevent

import "fmt"

// Kind identifies the sort of node event that occurred.
type Kind int

const (
	// Created fires when a watched node is created.
	Created Kind = iota
	// Deleted fires when a watched node is deleted.
	Deleted
	// Changed fires when a watched node's data changes.
	Changed
	// Child fires when a watched node's child list changes.
	Child
	// NotWatching fires when the server can no longer maintain a watch
	// (e.g. because the watch limit was exceeded) and the watch must be
	// considered lost.
	NotWatching
	// Session fires for a session-level state transition unrelated to any
	// particular node.
	Session
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "Created"
	case Deleted:
		return "Deleted"
	case Changed:
		return "Changed"
	case Child:
		return "Child"
	case NotWatching:
		return "NotWatching"
	case Session:
		return "Session"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SessionState is the connection state of the session at the time an event
// was delivered.
type SessionState int

const (
	// Associating is a brief transitional state the driver reports while
	// negotiating with a server it has just connected to.
	Associating SessionState = iota
	// AuthFailed means the session could never be established due to
	// invalid credentials; it is terminal.
	AuthFailed
	// Connecting means the client lost its connection and is attempting
	// to re-establish one. The prior session may still be valid.
	Connecting
	// Connected means the session is established and usable.
	Connected
	// Expired means the session timed out before the client could
	// reconnect; all ephemeral nodes owned by the session are gone and a
	// brand new session must be established.
	Expired
)

func (s SessionState) String() string {
	switch s {
	case Associating:
		return "Associating"
	case AuthFailed:
		return "AuthFailed"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Expired:
		return "Expired"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Event is delivered to watch and session observers in place of the
// driver's raw callback arguments.
type Event struct {
	Kind  Kind
	State SessionState
	Path  string
}

func (e Event) String() string {
	if e.Path == "" {
		return fmt.Sprintf("%s[%s]", e.Kind, e.State)
	}
	return fmt.Sprintf("%s[%s] %s", e.Kind, e.State, e.Path)
}
