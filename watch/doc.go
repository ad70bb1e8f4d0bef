// Package watch provides self-rearming watches over a single ZooKeeper node
// (DataWatch) and over a node's child set (ChildrenWatch). Both restart
// automatically when the owning session reconnects and fall back to an
// exists-watch when the watched node does not yet exist.
//
// Each watch tracks a watching/running flag pair: watching records whether
// the caller wants the watch active, running whether it currently has a
// live watch armed against the ensemble. A session-observer callback
// restarts a watch that was watching but not running once the session
// reconnects. Every fire re-arms by issuing a fresh fetch with itself as
// the new watcher. A NoNode result falls back to an exists-watch rather
// than treating the missing node as an error, since a channel-based
// one-shot watch has nothing else to convert a missing node into.
package watch

import "time"

// maxConsecutiveFailures bounds the self-rearm loop: after this many
// consecutive fetch failures a watch stops retrying and surfaces its last
// error via Err, rather than hammering the ensemble forever.
const maxConsecutiveFailures = 10

// retryBackoff is the pause between a failed fetch and the next retry once
// failures start accumulating, to avoid a tight loop against a struggling
// ensemble.
const retryBackoff = 250 * time.Millisecond
