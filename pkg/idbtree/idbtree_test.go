package idbtree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	tree := New(4)

	tree.Put([]byte("doc-1"), []IndexEntry{
		{IndexID: 0, MBR: mbr.New(0, 0, 1, 1)},
		{IndexID: 1, MBR: mbr.New(2, 2, 3, 3)},
	})

	got, ok := tree.Get([]byte("doc-1"))
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, got[0].IndexID)

	_, ok = tree.Get([]byte("missing"))
	assert.False(t, ok)
}

func TestPutOverwritesExisting(t *testing.T) {
	tree := New(4)
	id := []byte("doc")

	tree.Put(id, []IndexEntry{{IndexID: 0, MBR: mbr.New(0, 0, 1, 1)}})
	tree.Put(id, []IndexEntry{{IndexID: 0, MBR: mbr.New(5, 5, 6, 6)}})

	got, ok := tree.Get(id)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, mbr.New(5, 5, 6, 6), got[0].MBR)
}

func TestDeleteRemovesEntry(t *testing.T) {
	tree := New(4)
	id := []byte("doc")
	tree.Put(id, []IndexEntry{{IndexID: 0, MBR: mbr.New(0, 0, 1, 1)}})

	assert.True(t, tree.Delete(id))
	_, ok := tree.Get(id)
	assert.False(t, ok)
	assert.False(t, tree.Delete(id))
}

func TestSplitsAcrossManyInsertions(t *testing.T) {
	tree := New(4)

	for i := 0; i < 500; i++ {
		id := []byte(fmt.Sprintf("doc-%04d", i))
		tree.Put(id, []IndexEntry{{IndexID: 0, MBR: mbr.New(float64(i), 0, float64(i)+1, 1)}})
	}

	assert.Greater(t, tree.Height(), 1)

	for i := 0; i < 500; i++ {
		id := []byte(fmt.Sprintf("doc-%04d", i))
		got, ok := tree.Get(id)
		require.True(t, ok, "doc-%d should be present", i)
		assert.Equal(t, float64(i), got[0].MBR.W)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idb.bin")

	tree := New(4)
	for i := 0; i < 50; i++ {
		id := []byte(fmt.Sprintf("doc-%02d", i))
		tree.Put(id, []IndexEntry{
			{IndexID: i % 3, MBR: mbr.New(float64(i), float64(i), float64(i)+1, float64(i)+1)},
		})
	}

	require.NoError(t, tree.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		id := []byte(fmt.Sprintf("doc-%02d", i))
		got, ok := loaded.Get(id)
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, i%3, got[0].IndexID)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	tree := New(4)
	for i := 0; i < 50; i++ {
		id := []byte(fmt.Sprintf("doc-%02d", i))
		tree.Put(id, []IndexEntry{
			{IndexID: i % 3, MBR: mbr.New(float64(i), float64(i), float64(i)+1, float64(i)+1)},
		})
	}

	blob, err := tree.Marshal()
	require.NoError(t, err)

	loaded, err := Unmarshal(blob)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		id := []byte(fmt.Sprintf("doc-%02d", i))
		got, ok := loaded.Get(id)
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, i%3, got[0].IndexID)
	}
}

func TestSaveLoadEmptyTree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")

	tree := New(4)
	tree.root = nil
	require.NoError(t, tree.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	_, ok := loaded.Get([]byte("anything"))
	assert.False(t, ok)
}
