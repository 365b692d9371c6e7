package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spatialdb/spatialdb/pkg/group"
	"github.com/spatialdb/spatialdb/pkg/mbr"
)

// Server holds the API server's state: the registry it dispatches
// queries through and the metrics it records against.
type Server struct {
	registry *Registry
	metrics  *Metrics
}

// NewServer creates a new API server over registry.
func NewServer(registry *Registry, metrics *Metrics) *Server {
	return &Server{registry: registry, metrics: metrics}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleInfo godoc
//
//	@Summary		Design document group info
//	@Tags			design
//	@Produce		json
//	@Param			designDocID	path		string	true	"Design document ID"
//	@Success		200			{object}	APIResponse
//	@Failure		404			{object}	APIResponse
//	@Router			/design/{designDocID} [get]
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	designDocID := chi.URLParam(r, "designDocID")
	info, err := s.registry.Info(designDocID)
	if err != nil {
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.metrics.RecordCommitLag(designDocID, info.CurrentSeq, info.PurgeSeq)
	sendSuccess(w, info)
}

// handleQuery godoc
//
//	@Summary		Bounding-box query against a named spatial index
//	@Tags			query
//	@Produce		json
//	@Param			designDocID	path		string	true	"Design document ID"
//	@Param			indexName	path		string	true	"Index name"
//	@Param			w			query		number	true	"West"
//	@Param			s			query		number	true	"South"
//	@Param			e			query		number	true	"East"
//	@Param			n			query		number	true	"North"
//	@Param			seq			query		int		false	"Minimum sequence to be at-least-as-fresh-as"
//	@Param			stale		query		string	false	"Set to 'ok' to skip the freshness wait entirely"
//	@Success		200			{object}	APIResponse
//	@Failure		400			{object}	APIResponse
//	@Failure		503			{object}	APIResponse
//	@Router			/design/{designDocID}/index/{indexName} [get]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	designDocID := chi.URLParam(r, "designDocID")
	indexName := chi.URLParam(r, "indexName")

	box, err := parseBox(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	requestedSeq, err := parseRequestedSeq(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.registry.Query(designDocID, indexName, requestedSeq, box)
	if err != nil {
		switch {
		case errors.Is(err, group.ErrInvalidViewSeq):
			sendError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, group.ErrShutdown):
			sendError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			sendError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	s.metrics.RecordQuery(designDocID, indexName, len(resp.Results))
	sendSuccess(w, resp)
}

func parseBox(r *http.Request) ([4]float64, error) {
	q := r.URL.Query()
	var box [4]float64
	fields := [4]string{"w", "s", "e", "n"}
	for i, f := range fields {
		v, err := strconv.ParseFloat(q.Get(f), 64)
		if err != nil {
			return box, errInvalidQueryParam(f)
		}
		box[i] = v
	}
	return box, nil
}

// parseRequestedSeq reads ?seq=N: the query blocks (via RequestGroup)
// until the group's trees reflect at least that database sequence.
// Omitting it (or passing ?stale=ok) is this layer's analogue of
// CouchDB's stale=ok — the caller accepts whatever the group already
// reflects without forcing an updater run.
func parseRequestedSeq(r *http.Request) (uint64, error) {
	if r.URL.Query().Get("stale") == "ok" {
		return 0, nil
	}
	seq := r.URL.Query().Get("seq")
	if seq == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return 0, errInvalidQueryParam("seq")
	}
	return v, nil
}

func errInvalidQueryParam(name string) error {
	return &queryParamError{name: name}
}

type queryParamError struct{ name string }

func (e *queryParamError) Error() string {
	return "invalid or missing query parameter: " + e.name
}

func toBox(b [4]float64) mbr.Box {
	return mbr.New(b[0], b[1], b[2], b[3])
}
