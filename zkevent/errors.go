package zkevent

import (
	"errors"
	"fmt"

	zookeeper "github.com/Shopify/gozk"
)

// Sentinel errors the facade and watchers distinguish explicitly. Every
// other driver return code folds into CodeError below instead of gaining
// its own sentinel.
var (
	// ErrNoNode means the target node does not exist.
	ErrNoNode = errors.New("zkevent: no such node")
	// ErrNodeExists means the target node already exists.
	ErrNodeExists = errors.New("zkevent: node already exists")
	// ErrNotEmpty means a delete was attempted on a node with children.
	ErrNotEmpty = errors.New("zkevent: node has children")
	// ErrBadVersion means a conditional set/delete's version did not match.
	ErrBadVersion = errors.New("zkevent: version mismatch")
	// ErrConnectionLoss means the client lost its connection to the
	// ensemble; transient, the session may still be recoverable.
	ErrConnectionLoss = errors.New("zkevent: connection loss")
	// ErrSessionExpired means the session timed out; session-fatal.
	ErrSessionExpired = errors.New("zkevent: session expired")
	// ErrClosing means the client handle is being closed; transient,
	// swallowed by watchers.
	ErrClosing = errors.New("zkevent: client closing")
	// ErrOperationTimeout means the driver gave up waiting for a reply.
	ErrOperationTimeout = errors.New("zkevent: operation timeout")
	// ErrInvalidACL means the supplied ACL was rejected by the server.
	ErrInvalidACL = errors.New("zkevent: invalid ACL")
	// ErrBadArguments means a caller-supplied argument was rejected before
	// any request was sent; a programming error.
	ErrBadArguments = errors.New("zkevent: bad arguments")
	// ErrInvalidCallback means a callback was registered in a way the
	// driver could not accept; a programming error.
	ErrInvalidCallback = errors.New("zkevent: invalid callback")
)

// CodeError wraps a driver return code that does not map onto one of the
// sentinel errors above.
type CodeError struct {
	Code    int
	Message string
}

func (e *CodeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zkevent: %s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("zkevent: unrecognized error code %d", e.Code)
}

// codeErrors maps a driver error code to the sentinel this package exports,
// covering the codes callers need to distinguish with errors.Is rather than
// inspect by code number.
var codeErrors = map[zookeeper.Error]error{
	zookeeper.ZNONODE:           ErrNoNode,
	zookeeper.ZNODEEXISTS:       ErrNodeExists,
	zookeeper.ZNOTEMPTY:         ErrNotEmpty,
	zookeeper.ZBADVERSION:       ErrBadVersion,
	zookeeper.ZCONNECTIONLOSS:   ErrConnectionLoss,
	zookeeper.ZSESSIONEXPIRED:   ErrSessionExpired,
	zookeeper.ZCLOSING:          ErrClosing,
	zookeeper.ZOPERATIONTIMEOUT: ErrOperationTimeout,
	zookeeper.ZINVALIDACL:       ErrInvalidACL,
	zookeeper.ZBADARGUMENTS:     ErrBadArguments,
	zookeeper.ZINVALIDCALLBACK:  ErrInvalidCallback,
}

// FromCode converts a driver return code into the typed error a facade
// caller should see. A zookeeper.ZOK code returns nil.
func FromCode(code zookeeper.Error, message string) error {
	if code == zookeeper.ZOK {
		return nil
	}

	if sentinel, ok := codeErrors[code]; ok {
		if message == "" {
			return sentinel
		}
		return fmt.Errorf("%s: %w", message, sentinel)
	}

	return &CodeError{Code: int(code), Message: message}
}

// IsNoNode reports whether err is (or wraps) ErrNoNode.
func IsNoNode(err error) bool { return errors.Is(err, ErrNoNode) }

// IsNodeExists reports whether err is (or wraps) ErrNodeExists.
func IsNodeExists(err error) bool { return errors.Is(err, ErrNodeExists) }

// IsNotEmpty reports whether err is (or wraps) ErrNotEmpty.
func IsNotEmpty(err error) bool { return errors.Is(err, ErrNotEmpty) }

// IsBadVersion reports whether err is (or wraps) ErrBadVersion.
func IsBadVersion(err error) bool { return errors.Is(err, ErrBadVersion) }

// IsConnectionLoss reports whether err is (or wraps) ErrConnectionLoss.
func IsConnectionLoss(err error) bool { return errors.Is(err, ErrConnectionLoss) }

// IsSessionExpired reports whether err is (or wraps) ErrSessionExpired.
func IsSessionExpired(err error) bool { return errors.Is(err, ErrSessionExpired) }

// IsClosing reports whether err is (or wraps) ErrClosing.
func IsClosing(err error) bool { return errors.Is(err, ErrClosing) }
