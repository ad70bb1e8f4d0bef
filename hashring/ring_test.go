package hashring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tok(hi, lo uint64) Token { return Token{Hi: hi, Lo: lo} }

func TestRingInsertMaintainsSortedOrder(t *testing.T) {
	r := NewRing()
	r.Insert(tok(3, 0), []byte("c"))
	r.Insert(tok(1, 0), []byte("a"))
	r.Insert(tok(2, 0), []byte("b"))

	assert.Equal(t, []Token{tok(1, 0), tok(2, 0), tok(3, 0)}, r.Tokens())
	assert.Equal(t, 3, r.Len())
}

func TestRingInsertExistingTokenReplacesData(t *testing.T) {
	r := NewRing()
	r.Insert(tok(1, 0), []byte("first"))
	r.Insert(tok(1, 0), []byte("second"))

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []byte("second"), r.data[tok(1, 0)])
}

func TestRingRemove(t *testing.T) {
	r := NewRing()
	r.Insert(tok(1, 0), []byte("a"))
	r.Insert(tok(2, 0), []byte("b"))

	r.Remove(tok(1, 0))
	assert.Equal(t, []Token{tok(2, 0)}, r.Tokens())

	r.Remove(tok(99, 0))
	assert.Equal(t, 1, r.Len())
}

func TestRingResetEmptiesRing(t *testing.T) {
	r := NewRing()
	r.Insert(tok(1, 0), []byte("a"))
	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Tokens())
}

func TestRingPreferenceListEmptyRing(t *testing.T) {
	r := NewRing()
	assert.Nil(t, r.PreferenceList([]byte("key")))
	_, ok := r.FindNode([]byte("key"))
	assert.False(t, ok)
}

func TestRingPreferenceListWrapsToStart(t *testing.T) {
	r := NewRing()
	// One position sits at the maximum token value, which no digest can
	// exceed. A digest below it selects that last position and the list
	// wraps around to the low position; only a digest equal to the maximum
	// makes the search itself wrap to index 0. Both branches are checked.
	max := Token{Hi: ^uint64(0), Lo: ^uint64(0)}
	r.Insert(max, []byte("wrap-owner"))
	r.Insert(tok(0, 1), []byte("low-owner"))

	pref := r.PreferenceList([]byte("arbitrary-key"))
	require := assert.New(t)
	require.Len(pref, 2)

	target := HashToken([]byte("arbitrary-key"))
	if target.Compare(max) < 0 {
		require.Equal(max, pref[0])
	} else {
		require.Equal(tok(0, 1), pref[0])
	}
}

func TestRingPreferenceListIsFullRotation(t *testing.T) {
	r := NewRing()
	r.Insert(tok(1, 0), []byte("a"))
	r.Insert(tok(2, 0), []byte("b"))
	r.Insert(tok(3, 0), []byte("c"))

	pref := r.PreferenceList([]byte("some-key"))
	assert.Len(t, pref, 3)

	seen := map[Token]bool{}
	for _, p := range pref {
		seen[p] = true
	}
	assert.Len(t, seen, 3)

	tokens := r.Tokens()
	start := 0
	for i, tk := range tokens {
		if tk == pref[0] {
			start = i
		}
	}
	for i, p := range pref {
		assert.Equal(t, tokens[(start+i)%len(tokens)], p)
	}
}

func TestRingFindNodeReturnsHeadOfPreferenceList(t *testing.T) {
	r := NewRing()
	r.Insert(tok(1, 0), []byte("a"))
	r.Insert(tok(2, 0), []byte("b"))

	pref := r.PreferenceList([]byte("key"))
	data, ok := r.FindNode([]byte("key"))
	assert.True(t, ok)

	var want []byte
	if pref[0] == tok(1, 0) {
		want = []byte("a")
	} else {
		want = []byte("b")
	}
	assert.Equal(t, want, data)
}
