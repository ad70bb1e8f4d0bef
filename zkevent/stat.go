package zkevent

import zookeeper "github.com/Shopify/gozk"

// Stat is a snapshot of a node's metadata, copied out of the driver's
// *zookeeper.Stat so callers never hold a pointer the driver may reuse or
// invalidate after the callback that produced it returns.
type Stat struct {
	Czxid          int64
	Mzxid          int64
	Ctime          int64
	Mtime          int64
	Version        int32
	CVersion       int32
	AVersion       int32
	EphemeralOwner int64
	DataLength     int32
	NumChildren    int32
	Pzxid          int64
}

// NewStat copies a driver stat into an immutable value. A nil input returns
// the zero Stat.
func NewStat(s *zookeeper.Stat) Stat {
	if s == nil {
		return Stat{}
	}
	return Stat{
		Czxid:          s.Czxid(),
		Mzxid:          s.Mzxid(),
		Ctime:          s.CTime(),
		Mtime:          s.MTime(),
		Version:        s.Version(),
		CVersion:       s.CVersion(),
		AVersion:       s.AVersion(),
		EphemeralOwner: s.EphemeralOwner(),
		DataLength:     s.DataLength(),
		NumChildren:    s.NumChildren(),
		Pzxid:          s.Pzxid(),
	}
}
