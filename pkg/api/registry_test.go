package api

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/spatialidx"
	"github.com/spatialdb/spatialdb/pkg/vtree"
)

func parseBoxDocFn(docID, doc []byte) ([]docdb.Emission, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	parts := strings.Split(string(doc), ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bad doc %q", doc)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return []docdb.Emission{{MBR: mbr.New(vals[0], vals[1], vals[2], vals[3]), Value: docID}}, nil
}

func newRegistry(t *testing.T) (*Registry, *docdb.PebbleDB, string) {
	t.Helper()
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")

	db, err := docdb.OpenPebble(dbDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	def := spatialidx.Definition{
		DesignDocID: "places",
		Language:    "go",
		Indices: []spatialidx.IndexDef{
			{Name: "by_bbox", Body: "emit(doc.bbox)", Fn: parseBoxDocFn},
		},
	}

	// A Registry's openDB is called once per design document to open its
	// monitor handle; the test keeps its own handle on the very same
	// directory open throughout, so it hands the Registry a non-closing
	// wrapper around the already-open *db* rather than letting Pebble's
	// exclusive directory lock reject a second real open.
	reg := NewRegistry(dir, vtree.DefaultConfig(), func() (docdb.Database, error) {
		return docdb.NonClosing(db), nil
	}, map[string]spatialidx.Definition{"places": def})
	t.Cleanup(reg.Close)

	return reg, db, dir
}

func TestRegistryQueryUnknownDesignDoc(t *testing.T) {
	reg, _, _ := newRegistry(t)
	_, err := reg.Query("missing", "by_bbox", 0, [4]float64{0, 0, 1, 1})
	assert.Error(t, err)
}

func TestRegistryInfoOpensGroupLazily(t *testing.T) {
	reg, db, _ := newRegistry(t)

	_, err := db.Put([]byte("doc-a"), []byte("0,0,1,1"))
	require.NoError(t, err)

	info, err := reg.Info("places")
	require.NoError(t, err)
	assert.Equal(t, "places", info.DesignDocID)
	assert.Equal(t, 1, info.Indices)
}

func TestRegistryQueryAfterUpdate(t *testing.T) {
	reg, db, _ := newRegistry(t)

	seq, err := db.Put([]byte("doc-a"), []byte("0,0,1,1"))
	require.NoError(t, err)

	resp, err := reg.Query("places", "by_bbox", seq, [4]float64{-1, -1, 1, 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-a", resp.Results[0].DocID)
	assert.Equal(t, seq, resp.Seq)
}
