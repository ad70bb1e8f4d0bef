// Package hashring implements a consistent hash ring backed by a ZooKeeper
// node's children, each child representing one occupied position.
//
// Positions are 128-bit tokens compared numerically rather than as hex
// strings, and finding a node for a key always threads that key through the
// preference-list computation — there is no notion of a "last looked up
// key" to silently reuse.
package hashring

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Token is a position on the ring: the first 16 bytes of an MD5 digest,
// split into two big-endian halves so it orders the same way its hex string
// does and fits in two comparable machine words instead of math/big.
type Token struct {
	Hi uint64
	Lo uint64
}

// HashToken hashes data into a ring Token by taking the first 16 bytes of
// its MD5 digest, matching any implementation that hashes a position or
// lookup key with md5(data).hexdigest() and compares the result as a
// 128-bit number.
func HashToken(data []byte) Token {
	sum := md5.Sum(data)
	return Token{
		Hi: beUint64(sum[0:8]),
		Lo: beUint64(sum[8:16]),
	}
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// String renders the token as the 32 character lowercase hex digest a
// ZooKeeper child node name for this position would use.
func (t Token) String() string {
	return fmt.Sprintf("%016x%016x", t.Hi, t.Lo)
}

// Compare returns -1, 0, or 1 as t orders before, the same as, or after o.
func (t Token) Compare(o Token) int {
	switch {
	case t.Hi < o.Hi:
		return -1
	case t.Hi > o.Hi:
		return 1
	case t.Lo < o.Lo:
		return -1
	case t.Lo > o.Lo:
		return 1
	default:
		return 0
	}
}

// randomToken picks a new candidate position by hashing fresh random
// entropy.
func randomToken() Token {
	return HashToken([]byte(uuid.NewString()))
}

// ParseToken parses a 32 character hex digest produced by Token.String.
func ParseToken(s string) (Token, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Token{}, fmt.Errorf("hashring: invalid token %q: %w", s, err)
	}
	if len(raw) != 16 {
		return Token{}, fmt.Errorf("hashring: invalid token %q: want 16 bytes, got %d", s, len(raw))
	}
	return Token{Hi: beUint64(raw[0:8]), Lo: beUint64(raw[8:16])}, nil
}
