package refcount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	closed bool
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return nil
}

func TestReleaseWithoutRetireDoesNotClose(t *testing.T) {
	fc := &fakeCloser{}
	h := New(fc)
	require.NoError(t, h.Release())
	assert.False(t, fc.closed)
}

func TestRetireClosesOnlyAfterAllReleased(t *testing.T) {
	fc := &fakeCloser{}
	h := New(fc)
	h.AddRef()
	assert.Equal(t, 2, h.Count())

	require.NoError(t, h.Retire())
	assert.False(t, fc.closed, "reader still holding a ref")

	require.NoError(t, h.Release())
	assert.False(t, fc.closed, "owner's own hold still outstanding")

	require.NoError(t, h.Release())
	assert.True(t, fc.closed)
}

func TestRetireClosesImmediatelyWhenUnreferenced(t *testing.T) {
	fc := &fakeCloser{}
	h := New(fc)
	require.NoError(t, h.Release())
	require.NoError(t, h.Retire())
	assert.True(t, fc.closed)
}

func TestDoubleRetireErrors(t *testing.T) {
	fc := &fakeCloser{}
	h := New(fc)
	require.NoError(t, h.Retire())
	assert.Error(t, h.Retire())
}

func TestReleaseWithoutAddRefPanics(t *testing.T) {
	fc := &fakeCloser{}
	h := New(fc)
	require.NoError(t, h.Release())
	assert.Panics(t, func() { h.Release() })
}
