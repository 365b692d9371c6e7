package api

import (
	"fmt"
	"sync"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/group"
	"github.com/spatialdb/spatialdb/pkg/sigheader"
	"github.com/spatialdb/spatialdb/pkg/spatialidx"
	"github.com/spatialdb/spatialdb/pkg/vtree"
)

// openGroup is one design document's live coordinator plus the
// resolved index names a caller can address by, in resolved-index ID
// order (indices sorted by body) matching State.Roots.
type openGroup struct {
	coord   *group.Coordinator
	sig     sigheader.Signature
	indices []spatialidx.ResolvedIndex
	names   map[string]int // index name -> ResolvedIndex.ID
}

// Registry lazily opens one group.Coordinator per design document and
// keeps it alive across requests, mirroring spec.md §3's group
// lifecycle ("created on first request ... destroyed when the database
// is closed") the way the teacher's pkg/index manager holds a
// mutex-protected map of per-field indices.
type Registry struct {
	rootDir string
	cfg     vtree.Config
	openDB  func() (docdb.Database, error)

	mu     sync.Mutex
	defs   map[string]spatialidx.Definition
	groups map[string]*openGroup
}

// NewRegistry builds a Registry over a fixed set of design document
// definitions. Spatial functions are Go closures (spec.md §1 treats the
// runtime executing user code as a separate external collaborator), so
// definitions are registered in code rather than loaded from a document
// store.
func NewRegistry(rootDir string, cfg vtree.Config, openDB func() (docdb.Database, error), defs map[string]spatialidx.Definition) *Registry {
	return &Registry{
		rootDir: rootDir,
		cfg:     cfg,
		openDB:  openDB,
		defs:    defs,
		groups:  make(map[string]*openGroup),
	}
}

func (r *Registry) open(designDocID string) (*openGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[designDocID]; ok {
		return g, nil
	}

	def, ok := r.defs[designDocID]
	if !ok {
		return nil, fmt.Errorf("api: unknown design document %q", designDocID)
	}

	monitorDB, err := r.openDB()
	if err != nil {
		return nil, fmt.Errorf("api: opening monitor database for %q: %w", designDocID, err)
	}

	// monitorDB and the updater's per-run handle must be the same
	// underlying connection: Pebble, unlike the abstract Database
	// contract's "many independent handles" assumption, holds an
	// exclusive lock on its directory, so a second real open would fail.
	// docdb.NonClosing lets the coordinator "open and close" a handle
	// per run against the one instance actually opened here.
	sharedOpen := func() (docdb.Database, error) {
		return docdb.NonClosing(monitorDB), nil
	}

	resolved, _ := spatialidx.Resolve(def)
	coord, sig, err := spatialidx.Open(r.rootDir, def, r.cfg, monitorDB, sharedOpen)
	if err != nil {
		monitorDB.Close()
		return nil, fmt.Errorf("api: opening group for %q: %w", designDocID, err)
	}

	names := make(map[string]int, len(def.Indices))
	for _, idx := range def.Indices {
		for _, res := range resolved {
			if res.Body == idx.Body {
				names[idx.Name] = res.ID
				break
			}
		}
	}

	g := &openGroup{coord: coord, sig: sig, indices: resolved, names: names}
	r.groups[designDocID] = g
	return g, nil
}

// Query runs a bbox lookup against designDocID/indexName, blocking (via
// RequestGroup) until the group reaches requestedSeq.
func (r *Registry) Query(designDocID, indexName string, requestedSeq uint64, box [4]float64) (QueryResponse, error) {
	g, err := r.open(designDocID)
	if err != nil {
		return QueryResponse{}, err
	}
	indexID, ok := g.names[indexName]
	if !ok {
		return QueryResponse{}, fmt.Errorf("api: unknown index %q in design document %q", indexName, designDocID)
	}

	state, handle, err := g.coord.RequestGroup(requestedSeq)
	if err != nil {
		return QueryResponse{}, err
	}
	defer handle.Release()

	entries, err := vtree.Lookup(g.coord.File(), state.Roots[indexID], toBox(box))
	if err != nil {
		return QueryResponse{}, fmt.Errorf("api: looking up index %q: %w", indexName, err)
	}

	out := make([]QueryResult, len(entries))
	for i, e := range entries {
		out[i] = QueryResult{
			MBR:   [4]float64{e.MBR.W, e.MBR.S, e.MBR.E, e.MBR.N},
			DocID: string(e.DocID),
			Value: string(e.Value),
		}
	}
	return QueryResponse{Seq: state.CurrentSeq, Results: out}, nil
}

// Info reports a design document group's current in-memory state, which
// may be ahead of the last committed header.
func (r *Registry) Info(designDocID string) (DesignInfo, error) {
	g, err := r.open(designDocID)
	if err != nil {
		return DesignInfo{}, err
	}
	state, handle, err := g.coord.RequestGroup(0)
	if err != nil {
		return DesignInfo{}, err
	}
	defer handle.Release()

	return DesignInfo{
		DesignDocID: designDocID,
		Signature:   g.sig.String(),
		CurrentSeq:  state.CurrentSeq,
		PurgeSeq:    state.PurgeSeq,
		Indices:     len(g.indices),
	}, nil
}

// Close shuts down every open coordinator. Safe to call once, typically
// at process exit.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		g.coord.Shutdown()
	}
	r.groups = make(map[string]*openGroup)
}
