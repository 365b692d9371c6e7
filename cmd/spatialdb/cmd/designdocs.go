package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/spatialidx"
)

// pointDoc is the shape a document is expected to have for the "places"
// design document's "by_bbox" index: a bounding box plus a free-form
// label carried through as the emission's value.
type pointDoc struct {
	BBox  [4]float64 `json:"bbox"`
	Label string     `json:"label"`
}

// byBBox is the spatial function for the "places" design document: it
// emits the document's declared bounding box, with the label as the
// emission's value. A document without a bbox field contributes
// nothing, matching spec.md's "zero or more (mbr, value) pairs" model.
func byBBox(docID, doc []byte) ([]docdb.Emission, error) {
	var d pointDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", docID, err)
	}
	if d.BBox == ([4]float64{}) {
		return nil, nil
	}
	box := mbr.New(d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
	return []docdb.Emission{{MBR: box, Value: []byte(d.Label)}}, nil
}

// demoDesignDocs returns the fixed set of design document definitions
// this CLI serves. Spatial functions are Go closures (spec.md §1 treats
// the runtime executing user-supplied code as a separate external
// collaborator), so they're registered here rather than loaded from the
// document database itself.
func demoDesignDocs() map[string]spatialidx.Definition {
	def := spatialidx.Definition{
		DesignDocID: "places",
		Language:    "go",
		Indices: []spatialidx.IndexDef{
			{Name: "by_bbox", Body: "emit(doc.bbox, doc.label)", Fn: byBBox},
		},
	}
	return map[string]spatialidx.Definition{def.DesignDocID: def}
}
