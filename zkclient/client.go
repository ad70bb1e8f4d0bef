// Package zkclient is the Operation Facade: blocking and asynchronous forms
// of Create/CreatePath/Exists/GetChildren/GetData/SetData/Delete, wrapping
// the driver's raw callback shape in typed zkevent.Event values so callers
// never see a ZooKeeper-specific callback signature.
//
// Each blocking operation except CreatePath has an asynchronous counterpart
// that returns immediately with an asyncresult.Result; CreatePath has no
// asynchronous form. Watch registration goes
// through github.com/Shopify/gozk's channel-based one-shot watches
// (ExistsW/ChildrenW/GetW each return a <-chan zookeeper.Event), converted
// into a typed zkevent.Event by a goroutine spawned per registration.
package zkclient

import (
	"fmt"
	"path"
	"strings"

	zookeeper "github.com/Shopify/gozk"

	"github.com/techresidents/gozk-coordination/asyncresult"
	"github.com/techresidents/gozk-coordination/session"
	"github.com/techresidents/gozk-coordination/zkevent"
	"github.com/techresidents/gozk-coordination/zklog"
)

// Watcher receives a typed Event when the server fires a one-shot watch
// previously armed on a node. It is invoked at most once per call that
// registered it; callers that want to keep watching must re-arm by issuing
// another call with a watcher (this is what package watch and package
// hashring do).
type Watcher func(zkevent.Event)

// Facade exposes node operations (create/exists/get/set/delete) without
// ever touching the driver handle directly; every call goes through a
// *session.Manager so it always runs against the current connection.
type Facade struct {
	mgr *session.Manager
}

// New wraps mgr in an Operation Facade.
func New(mgr *session.Manager) *Facade {
	return &Facade{mgr: mgr}
}

// CreateOpts are the optional parameters to Create and CreatePath.
type CreateOpts struct {
	Data      []byte
	ACL       []zookeeper.ACL
	Sequence  bool
	Ephemeral bool
}

func (f *Facade) aclOrDefault(acl []zookeeper.ACL) []zookeeper.ACL {
	if acl != nil {
		return acl
	}
	return f.mgr.ACL()
}

func flags(sequence, ephemeral bool) int {
	var fl int
	if sequence {
		fl |= zookeeper.SEQUENCE
	}
	if ephemeral {
		fl |= zookeeper.EPHEMERAL
	}
	return fl
}

// Create creates path with opts, returning the path actually created (which
// differs from the input when Sequence is set).
func (f *Facade) Create(nodePath string, opts CreateOpts) (string, error) {
	conn, err := f.mgr.Conn()
	if err != nil {
		return "", err
	}

	created, err := conn.Create(nodePath, string(opts.Data), flags(opts.Sequence, opts.Ephemeral), f.aclOrDefault(opts.ACL))
	if err != nil {
		return "", wrapErr(err, "create "+nodePath)
	}
	return created, nil
}

// CreatePath ensures every ancestor of path exists (created with empty data
// and acl, tolerating a concurrent creator racing us), then creates the
// leaf with opts. If the leaf already exists, CreatePath returns a
// NodeExists error and created is false.
func (f *Facade) CreatePath(nodePath string, opts CreateOpts) (leaf string, created bool, err error) {
	segments := strings.Split(strings.Trim(nodePath, "/"), "/")

	current := ""
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		current = current + "/" + seg
		isLeaf := i == len(segments)-1

		if isLeaf {
			result, createErr := f.Create(current, opts)
			if createErr != nil {
				return "", false, createErr
			}
			return result, true, nil
		}

		_, createErr := f.Create(current, CreateOpts{ACL: opts.ACL})
		if createErr != nil && !zkevent.IsNodeExists(createErr) {
			return "", false, createErr
		}
	}

	return "", false, fmt.Errorf("zkclient: empty path %q", nodePath)
}

// Exists checks whether path exists, optionally arming watcher to fire on
// the node's creation, deletion, or data change. A nil stat with a nil
// error means the node does not exist.
func (f *Facade) Exists(nodePath string, watcher Watcher) (*zkevent.Stat, error) {
	conn, err := f.mgr.Conn()
	if err != nil {
		return nil, err
	}

	if watcher == nil {
		stat, err := conn.Exists(nodePath)
		if err != nil {
			return nil, wrapErr(err, "exists "+nodePath)
		}
		if stat == nil {
			return nil, nil
		}
		s := zkevent.NewStat(stat)
		return &s, nil
	}

	stat, ch, err := conn.ExistsW(nodePath)
	if err != nil {
		return nil, wrapErr(err, "exists "+nodePath)
	}
	f.armWatch(nodePath, ch, watcher)
	if stat == nil {
		return nil, nil
	}
	s := zkevent.NewStat(stat)
	return &s, nil
}

// GetChildren returns the child names of path, in server order, optionally
// arming watcher to fire when the child set changes.
func (f *Facade) GetChildren(nodePath string, watcher Watcher) ([]string, error) {
	conn, err := f.mgr.Conn()
	if err != nil {
		return nil, err
	}

	if watcher == nil {
		children, _, err := conn.Children(nodePath)
		if err != nil {
			return nil, wrapErr(err, "get_children "+nodePath)
		}
		return children, nil
	}

	children, _, ch, err := conn.ChildrenW(nodePath)
	if err != nil {
		return nil, wrapErr(err, "get_children "+nodePath)
	}
	f.armWatch(nodePath, ch, watcher)
	return children, nil
}

// GetData returns path's data and stat, optionally arming watcher to fire
// when the data changes.
func (f *Facade) GetData(nodePath string, watcher Watcher) ([]byte, zkevent.Stat, error) {
	conn, err := f.mgr.Conn()
	if err != nil {
		return nil, zkevent.Stat{}, err
	}

	if watcher == nil {
		data, stat, err := conn.Get(nodePath)
		if err != nil {
			return nil, zkevent.Stat{}, wrapErr(err, "get_data "+nodePath)
		}
		return []byte(data), zkevent.NewStat(stat), nil
	}

	data, stat, ch, err := conn.GetW(nodePath)
	if err != nil {
		return nil, zkevent.Stat{}, wrapErr(err, "get_data "+nodePath)
	}
	f.armWatch(nodePath, ch, watcher)
	return []byte(data), zkevent.NewStat(stat), nil
}

// SetData sets path's data. version == -1 matches any version.
func (f *Facade) SetData(nodePath string, data []byte, version int) (zkevent.Stat, error) {
	conn, err := f.mgr.Conn()
	if err != nil {
		return zkevent.Stat{}, err
	}

	stat, err := conn.Set(nodePath, string(data), version)
	if err != nil {
		return zkevent.Stat{}, wrapErr(err, "set_data "+nodePath)
	}
	return zkevent.NewStat(stat), nil
}

// Delete removes path. version == -1 matches any version.
func (f *Facade) Delete(nodePath string, version int) error {
	conn, err := f.mgr.Conn()
	if err != nil {
		return err
	}

	if err := conn.Delete(nodePath, version); err != nil {
		return wrapErr(err, "delete "+nodePath)
	}
	return nil
}

// AsyncCreate is the async analogue of Create.
func (f *Facade) AsyncCreate(nodePath string, opts CreateOpts) *asyncresult.Result[string] {
	r := asyncresult.New[string]()
	go func() {
		created, err := f.Create(nodePath, opts)
		if err != nil {
			r.Fail(err)
			return
		}
		r.Set(created)
	}()
	return r
}

// AsyncExists is the async analogue of Exists.
func (f *Facade) AsyncExists(nodePath string, watcher Watcher) *asyncresult.Result[*zkevent.Stat] {
	r := asyncresult.New[*zkevent.Stat]()
	go func() {
		stat, err := f.Exists(nodePath, watcher)
		if err != nil {
			r.Fail(err)
			return
		}
		r.Set(stat)
	}()
	return r
}

// AsyncGetChildren is the async analogue of GetChildren.
func (f *Facade) AsyncGetChildren(nodePath string, watcher Watcher) *asyncresult.Result[[]string] {
	r := asyncresult.New[[]string]()
	go func() {
		children, err := f.GetChildren(nodePath, watcher)
		if err != nil {
			r.Fail(err)
			return
		}
		r.Set(children)
	}()
	return r
}

// GetDataResult is the value type AsyncGetData completes with.
type GetDataResult struct {
	Data []byte
	Stat zkevent.Stat
}

// AsyncGetData is the async analogue of GetData.
func (f *Facade) AsyncGetData(nodePath string, watcher Watcher) *asyncresult.Result[GetDataResult] {
	r := asyncresult.New[GetDataResult]()
	go func() {
		data, stat, err := f.GetData(nodePath, watcher)
		if err != nil {
			r.Fail(err)
			return
		}
		r.Set(GetDataResult{Data: data, Stat: stat})
	}()
	return r
}

// AsyncSetData is the async analogue of SetData.
func (f *Facade) AsyncSetData(nodePath string, data []byte, version int) *asyncresult.Result[zkevent.Stat] {
	r := asyncresult.New[zkevent.Stat]()
	go func() {
		stat, err := f.SetData(nodePath, data, version)
		if err != nil {
			r.Fail(err)
			return
		}
		r.Set(stat)
	}()
	return r
}

// AsyncDelete is the async analogue of Delete.
func (f *Facade) AsyncDelete(nodePath string, version int) *asyncresult.Result[struct{}] {
	r := asyncresult.New[struct{}]()
	go func() {
		if err := f.Delete(nodePath, version); err != nil {
			r.Fail(err)
			return
		}
		r.Set(struct{}{})
	}()
	return r
}

// armWatch adapts a one-shot driver watch channel into a single invocation
// of watcher with a typed Event, catching (and logging) any panic from the
// user-supplied callback so it cannot escape into driver-owned goroutines.
func (f *Facade) armWatch(nodePath string, ch <-chan zookeeper.Event, watcher Watcher) {
	go func() {
		raw, ok := <-ch
		if !ok {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				zklog.Internal().WithField("path", nodePath).WithField("panic", r).Error("zkclient watcher panicked")
			}
		}()

		watcher(convertEvent(raw))
	}()
}

func convertEvent(raw zookeeper.Event) zkevent.Event {
	return zkevent.Event{
		Kind:  convertKind(raw.Type),
		State: convertRawState(raw.State),
		Path:  raw.Path,
	}
}

func convertKind(t int) zkevent.Kind {
	switch t {
	case zookeeper.EVENT_CREATED:
		return zkevent.Created
	case zookeeper.EVENT_DELETED:
		return zkevent.Deleted
	case zookeeper.EVENT_CHANGED:
		return zkevent.Changed
	case zookeeper.EVENT_CHILD:
		return zkevent.Child
	case zookeeper.EVENT_NOTWATCHING:
		return zkevent.NotWatching
	default:
		return zkevent.Session
	}
}

func convertRawState(s int) zkevent.SessionState {
	switch s {
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

func wrapErr(err error, context string) error {
	if err == nil {
		return nil
	}
	if code, ok := err.(zookeeper.Error); ok {
		return zkevent.FromCode(code, context)
	}
	return fmt.Errorf("zkclient: %s: %w", context, err)
}

// JoinPath joins a parent path and a child name the way ZooKeeper expects:
// forward-slash separated, no trailing slash. It is path.Join, which always
// uses forward slashes whatever the host OS; package watch and package
// hashring build child paths with it.
func JoinPath(parent, child string) string {
	return path.Join(parent, child)
}
