package spatialidx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/group"
	"github.com/spatialdb/spatialdb/pkg/sigheader"
	"github.com/spatialdb/spatialdb/pkg/updater"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtree"
)

// IndexDef is one named spatial index as declared in a design document:
// Body is the serialized source of its spatial function, used to group
// indices that share an implementation, and Fn is the compiled function
// itself.
type IndexDef struct {
	Name string
	Body string
	Fn   docdb.SpatialFunc
}

// Definition is everything a group's signature is computed over, plus
// the indices it declares.
type Definition struct {
	DesignDocID   string
	Language      string
	DesignOptions string
	Indices       []IndexDef
}

// ResolvedIndex is one deduplicated spatial function: every declared
// name whose body matched ends up sharing this entry's ID.
type ResolvedIndex struct {
	ID    int
	Names []string
	Body  string
	Fn    docdb.SpatialFunc
}

// Resolve groups def.Indices by Body (indices with identical bodies
// share storage), assigns each deduplicated body an ID by a stable sort
// over the bodies, and returns the canonical bytes the group signature
// is computed over.
func Resolve(def Definition) ([]ResolvedIndex, []byte) {
	byBody := make(map[string]*ResolvedIndex)
	var order []string
	for _, idx := range def.Indices {
		r, ok := byBody[idx.Body]
		if !ok {
			r = &ResolvedIndex{Body: idx.Body, Fn: idx.Fn}
			byBody[idx.Body] = r
			order = append(order, idx.Body)
		}
		r.Names = append(r.Names, idx.Name)
	}

	sort.Strings(order)

	resolved := make([]ResolvedIndex, len(order))
	for i, body := range order {
		r := byBody[body]
		r.ID = i
		resolved[i] = *r
	}

	return resolved, canonicalBytes(def, order)
}

func canonicalBytes(def Definition, sortedBodies []string) []byte {
	var buf bytes.Buffer
	writeString(&buf, def.Language)
	writeString(&buf, def.DesignOptions)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(sortedBodies)))
	buf.Write(count[:])
	for _, b := range sortedBodies {
		writeString(&buf, b)
	}
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

// IndexedFuncs projects resolved indices onto the argument updater.Run
// expects.
func IndexedFuncs(resolved []ResolvedIndex) []updater.IndexedFunc {
	out := make([]updater.IndexedFunc, len(resolved))
	for i, r := range resolved {
		out[i] = updater.IndexedFunc{ID: r.ID, Fn: r.Fn}
	}
	return out
}

// FilePath returns the on-disk location of a group's index file, given
// its root directory and signature: <rootDir>/<designDocID>/<hex(sig)>.spatial.
func FilePath(rootDir, designDocID string, sig sigheader.Signature) string {
	return filepath.Join(rootDir, designDocID, sig.String()+".spatial")
}

// Open resolves def, computes its signature, opens (creating parent
// directories and the file as needed) its on-disk location under
// rootDir, and starts the group coordinator against it. The returned
// vfile.File is owned by the coordinator; callers should not close it
// directly — Shutdown the coordinator instead.
func Open(
	rootDir string,
	def Definition,
	cfg vtree.Config,
	monitorDB docdb.Database,
	openDB group.OpenDB,
) (*group.Coordinator, sigheader.Signature, error) {
	resolved, canonical := Resolve(def)
	sig := sigheader.ComputeSignature(canonical)

	path := FilePath(rootDir, def.DesignDocID, sig)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, sig, fmt.Errorf("spatialidx: creating index directory: %w", err)
	}

	file, err := vfile.Open(path)
	if err != nil {
		return nil, sig, fmt.Errorf("spatialidx: opening index file: %w", err)
	}

	coord, err := group.Open(file, cfg, IndexedFuncs(resolved), sig, monitorDB, openDB)
	if err != nil {
		file.Close()
		return nil, sig, fmt.Errorf("spatialidx: opening group: %w", err)
	}

	return coord, sig, nil
}
