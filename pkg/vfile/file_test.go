package vfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesFileWithMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.spatial")

	vf, err := Open(path)
	require.NoError(t, err)
	defer vf.Close()

	assert.FileExists(t, path)
	assert.Equal(t, int64(magicLen), vf.Size())
	assert.False(t, vf.Legacy())
}

func TestAppendReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vf, err := Open(filepath.Join(dir, "a.spatial"))
	require.NoError(t, err)
	defer vf.Close()

	off, err := vf.Append([]byte("hello node"))
	require.NoError(t, err)

	got, err := vf.ReadAt(off)
	require.NoError(t, err)
	assert.Equal(t, "hello node", string(got))
}

func TestHeaderRoundTripAndNoHeaderBeforeFirstCommit(t *testing.T) {
	dir := t.TempDir()
	vf, err := Open(filepath.Join(dir, "h.spatial"))
	require.NoError(t, err)
	defer vf.Close()

	_, err = vf.ReadHeader()
	assert.ErrorIs(t, err, ErrNoHeader)

	require.NoError(t, vf.WriteHeader([]byte("header-v1")))
	got, err := vf.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "header-v1", string(got))

	require.NoError(t, vf.WriteHeader([]byte("header-v2")))
	got, err = vf.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "header-v2", string(got))
}

func TestReopenRecoversLastHeaderAndNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.spatial")

	vf, err := Open(path)
	require.NoError(t, err)

	off1, err := vf.Append([]byte("node-1"))
	require.NoError(t, err)
	require.NoError(t, vf.WriteHeader([]byte("header-1")))
	off2, err := vf.Append([]byte("node-2"))
	require.NoError(t, err)
	require.NoError(t, vf.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	hdr, err := reopened.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "header-1", string(hdr))

	n1, err := reopened.ReadAt(off1)
	require.NoError(t, err)
	assert.Equal(t, "node-1", string(n1))

	n2, err := reopened.ReadAt(off2)
	require.NoError(t, err)
	assert.Equal(t, "node-2", string(n2))
}

func TestCorruptTermDetected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.spatial")

	vf, err := Open(path)
	require.NoError(t, err)
	off, err := vf.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, vf.Close())

	// Flip a byte inside the payload region directly on disk.
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{'X'}, off+recordHeaderLen)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.ReadAt(off)
	assert.ErrorIs(t, err, ErrCorruptTerm)
}

func TestTruncateDropsTrailingTermsAndHeader(t *testing.T) {
	dir := t.TempDir()
	vf, err := Open(filepath.Join(dir, "t.spatial"))
	require.NoError(t, err)
	defer vf.Close()

	require.NoError(t, vf.WriteHeader([]byte("h1")))
	cut := vf.Size()
	_, err = vf.Append([]byte("throwaway"))
	require.NoError(t, err)

	require.NoError(t, vf.Truncate(cut))
	assert.Equal(t, cut, vf.Size())

	hdr, err := vf.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "h1", string(hdr))
}

func TestResetDropsEverythingButMagic(t *testing.T) {
	dir := t.TempDir()
	vf, err := Open(filepath.Join(dir, "reset.spatial"))
	require.NoError(t, err)
	defer vf.Close()

	_, err = vf.Append([]byte("node"))
	require.NoError(t, err)
	require.NoError(t, vf.WriteHeader([]byte("header")))
	require.Greater(t, vf.Size(), int64(magicLen))

	require.NoError(t, vf.Reset())
	assert.Equal(t, int64(magicLen), vf.Size())

	_, err = vf.ReadHeader()
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestLegacyMagicAccepted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.spatial")

	require.NoError(t, os.WriteFile(path, []byte(legacyMagic), 0600))

	vf, err := Open(path)
	require.NoError(t, err)
	defer vf.Close()

	assert.True(t, vf.Legacy())

	require.NoError(t, vf.WriteHeader([]byte("upgraded")))
	assert.False(t, vf.Legacy())
}

func TestUnrecognizedMagicRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.spatial")
	require.NoError(t, os.WriteFile(path, []byte("bad!"), 0600))

	_, err := Open(path)
	assert.Error(t, err)
}
