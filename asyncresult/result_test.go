package asyncresult_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techresidents/gozk-coordination/asyncresult"
)

func TestResultSetThenGet(t *testing.T) {
	r := asyncresult.New[string]()
	assert.False(t, r.Ready())

	r.Set("hello")

	assert.True(t, r.Ready())
	value, err := r.Get(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestResultFailThenGet(t *testing.T) {
	boom := errors.New("boom")
	r := asyncresult.New[int]()
	r.Fail(boom)

	_, err := r.Get(time.Second)
	assert.Equal(t, boom, err)
}

func TestResultSecondSetIsIgnored(t *testing.T) {
	r := asyncresult.New[int]()
	r.Set(1)
	r.Set(2)
	r.Fail(errors.New("ignored"))

	value, err := r.Get(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, value)
}

func TestResultGetTimesOut(t *testing.T) {
	r := asyncresult.New[int]()

	_, err := r.Get(10 * time.Millisecond)
	assert.ErrorIs(t, err, asyncresult.ErrTimeout)
}

func TestResultGetBlocksUntilSet(t *testing.T) {
	r := asyncresult.New[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Set(42)
	}()

	value, err := r.Get(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestResultDoneChannelClosesOnCompletion(t *testing.T) {
	r := asyncresult.New[int]()

	select {
	case <-r.Done():
		t.Fatal("Done should not be closed yet")
	default:
	}

	r.Set(7)

	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed after Set")
	}
}
