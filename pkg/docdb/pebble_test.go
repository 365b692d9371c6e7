package docdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *PebbleDB {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenPebble(filepath.Join(dir, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutAssignsAscendingSequences(t *testing.T) {
	db := openTestDB(t)

	seq1, err := db.Put([]byte("doc-1"), []byte(`{"a":1}`))
	require.NoError(t, err)
	seq2, err := db.Put([]byte("doc-2"), []byte(`{"b":2}`))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), seq1)
	assert.Equal(t, uint64(2), seq2)

	cur, err := db.CurrentSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur)
}

func TestCommitAdvancesCommittedSeq(t *testing.T) {
	db := openTestDB(t)

	committed, err := db.CommittedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), committed)

	_, err = db.Put([]byte("doc-1"), []byte("v1"))
	require.NoError(t, err)

	committed, err = db.CommittedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), committed, "uncommitted write must not move the watermark")

	require.NoError(t, db.Commit())
	committed, err = db.CommittedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), committed)
}

func TestChangesStreamsInAscendingOrder(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Put([]byte("a"), []byte("va"))
	require.NoError(t, err)
	_, err = db.Put([]byte("b"), []byte("vb"))
	require.NoError(t, err)
	_, err = db.Delete([]byte("a"))
	require.NoError(t, err)

	iter, err := db.Changes(0)
	require.NoError(t, err)
	defer iter.Close()

	var seen []Change
	for {
		c, ok, err := iter.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, c)
	}

	require.Len(t, seen, 3)
	assert.Equal(t, uint64(1), seen[0].Seq)
	assert.Equal(t, "a", string(seen[0].DocID))
	assert.False(t, seen[0].Deleted)
	assert.Equal(t, uint64(3), seen[2].Seq)
	assert.True(t, seen[2].Deleted)
}

func TestChangesSinceSkipsPriorSequences(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Put([]byte("a"), []byte("va"))
	require.NoError(t, err)
	seq2, err := db.Put([]byte("b"), []byte("vb"))
	require.NoError(t, err)

	iter, err := db.Changes(seq2 - 1)
	require.NoError(t, err)
	defer iter.Close()

	c, ok, err := iter.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", string(c.DocID))

	_, ok, err = iter.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}
