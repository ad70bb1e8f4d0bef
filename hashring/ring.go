package hashring

import "sort"

// Ring is a sorted set of Tokens, each carrying the data associated with its
// position. Ring itself holds no lock — it is meant to be owned and
// synchronized by a single caller (Watch plays that role for the hashring
// components built on it), relying on ZooKeeper's strictly-ordered callback
// dispatch to make that single writer safe.
//
// The strict-sorted-by-token invariant is maintained on every Insert and
// Remove via a binary search insertion point rather than append-then-sort.
type Ring struct {
	tokens []Token
	data   map[Token][]byte
}

// NewRing returns an empty Ring.
func NewRing() *Ring {
	return &Ring{data: map[Token][]byte{}}
}

func (r *Ring) search(t Token) (int, bool) {
	i := sort.Search(len(r.tokens), func(i int) bool { return r.tokens[i].Compare(t) >= 0 })
	if i < len(r.tokens) && r.tokens[i] == t {
		return i, true
	}
	return i, false
}

// Insert adds t to the ring (or replaces its data if already present).
func (r *Ring) Insert(t Token, data []byte) {
	idx, found := r.search(t)
	if found {
		r.data[t] = data
		return
	}

	r.tokens = append(r.tokens, Token{})
	copy(r.tokens[idx+1:], r.tokens[idx:])
	r.tokens[idx] = t
	r.data[t] = data
}

// Remove deletes t from the ring, if present.
func (r *Ring) Remove(t Token) {
	idx, found := r.search(t)
	if !found {
		return
	}
	r.tokens = append(r.tokens[:idx], r.tokens[idx+1:]...)
	delete(r.data, t)
}

// Reset empties the ring, used when the owning session expires and every
// ephemeral position node is gone.
func (r *Ring) Reset() {
	r.tokens = nil
	r.data = map[Token][]byte{}
}

// Len returns the number of positions on the ring.
func (r *Ring) Len() int {
	return len(r.tokens)
}

// Tokens returns a snapshot of the ring's tokens in ascending order.
func (r *Ring) Tokens() []Token {
	out := make([]Token, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// PreferenceList returns every position on the ring, in the order a lookup
// for key should try them: starting at the first token strictly greater
// than HashToken(key), wrapping to the start of the ring if key hashes past
// the last position.
func (r *Ring) PreferenceList(key []byte) []Token {
	if len(r.tokens) == 0 {
		return nil
	}

	target := HashToken(key)
	start := sort.Search(len(r.tokens), func(i int) bool { return r.tokens[i].Compare(target) > 0 })
	if start == len(r.tokens) {
		start = 0
	}

	out := make([]Token, len(r.tokens))
	for i := range out {
		out[i] = r.tokens[(start+i)%len(r.tokens)]
	}
	return out
}

// FindNode returns the data associated with the position selected for key:
// the head of PreferenceList(key). ok is false if the ring is empty.
func (r *Ring) FindNode(key []byte) (data []byte, ok bool) {
	pref := r.PreferenceList(key)
	if len(pref) == 0 {
		return nil, false
	}
	return r.data[pref[0]], true
}
