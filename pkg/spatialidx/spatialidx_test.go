package spatialidx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/group"
	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/vtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxFn(docID, doc []byte) ([]docdb.Emission, error) {
	return []docdb.Emission{{MBR: mbr.New(0, 0, 1, 1), Value: docID}}, nil
}

func TestResolveDedupesSharedBodies(t *testing.T) {
	def := Definition{
		DesignDocID: "design-1",
		Language:    "go",
		Indices: []IndexDef{
			{Name: "by-bbox", Body: "shared", Fn: boxFn},
			{Name: "by-bbox-alias", Body: "shared", Fn: boxFn},
			{Name: "by-centroid", Body: "other", Fn: boxFn},
		},
	}

	resolved, _ := Resolve(def)
	require.Len(t, resolved, 2)

	byID := map[int]ResolvedIndex{}
	for _, r := range resolved {
		byID[r.ID] = r
	}
	for _, r := range resolved {
		if r.Body == "shared" {
			assert.ElementsMatch(t, []string{"by-bbox", "by-bbox-alias"}, r.Names)
		} else {
			assert.Equal(t, []string{"by-centroid"}, r.Names)
		}
	}
}

func TestResolveIsStableAcrossInputOrder(t *testing.T) {
	def1 := Definition{
		Indices: []IndexDef{
			{Name: "a", Body: "bbb", Fn: boxFn},
			{Name: "b", Body: "aaa", Fn: boxFn},
		},
	}
	def2 := Definition{
		Indices: []IndexDef{
			{Name: "b", Body: "aaa", Fn: boxFn},
			{Name: "a", Body: "bbb", Fn: boxFn},
		},
	}

	r1, c1 := Resolve(def1)
	r2, c2 := Resolve(def2)

	assert.Equal(t, c1, c2, "canonical bytes must not depend on declaration order")
	require.Len(t, r1, 2)
	require.Len(t, r2, 2)
	assert.Equal(t, r1[0].Body, r2[0].Body)
	assert.Equal(t, r1[1].Body, r2[1].Body)
}

func TestOpenCreatesFileUnderDesignDocDirectory(t *testing.T) {
	root := t.TempDir()
	dbDir := filepath.Join(root, "db")

	db, err := docdb.OpenPebble(dbDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	def := Definition{
		DesignDocID: "design-1",
		Language:    "go",
		Indices: []IndexDef{
			{Name: "by-bbox", Body: "shared", Fn: boxFn},
		},
	}

	// db's directory is already held open; a per-run handle has to share
	// it (wrapped non-closing) rather than re-open it, since Pebble holds
	// an exclusive lock on the directory for the process lifetime.
	coord, sig, err := Open(root, def, vtree.DefaultConfig(), db, func() (docdb.Database, error) {
		return docdb.NonClosing(db), nil
	})
	require.NoError(t, err)
	t.Cleanup(coord.Shutdown)

	expectedPath := FilePath(root, "design-1", sig)
	_, statErr := filepathStat(expectedPath)
	require.NoError(t, statErr)

	state, handle, err := coord.RequestGroup(0)
	require.NoError(t, err)
	defer handle.Release()
	assert.Equal(t, uint64(0), state.CurrentSeq)
	assert.Len(t, state.Roots, 1)
}

func filepathStat(path string) (bool, error) {
	_, err := osStat(path)
	if err != nil {
		return false, err
	}
	return true, nil
}

// osStat is a thin indirection purely so this file only imports "os" via
// a single named call site, kept close to group's own test style.
var osStat = func(path string) (interface{ Size() int64 }, error) {
	return os.Stat(path)
}

var _ = group.ErrShutdown
