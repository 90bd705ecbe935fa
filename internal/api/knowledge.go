package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tutordesk/internal/ingest"
	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/storage"
)

const maxIngestBodySize = 10 << 20 // 10MB

const (
	defaultListLimit   = 20
	maxListLimit       = 100
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

func handleSubmitKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingest.Request
		if !decodeBodyLimit(w, r, &req, maxIngestBodySize) {
			return
		}
		doc, err := ingest.Submit(r.Context(), deps.Knowledge, req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID, "status": doc.Status})
	}
}

func handleListKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", defaultListLimit, maxListLimit)
		offset := queryInt(r, "offset", 0, -1)
		docs, err := deps.Knowledge.ListKnowledgeDocs(r.Context(), limit, offset)
		if err != nil {
			writeErr(w, err)
			return
		}
		if docs == nil {
			docs = []storage.KnowledgeDoc{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleGetKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Knowledge.GetKnowledgeDoc(r.Context(), chi.URLParam(r, "docID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleDeleteKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Knowledge.DeleteKnowledgeDoc(r.Context(), chi.URLParam(r, "docID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSearchKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := queryInt(r, "limit", defaultSearchLimit, maxSearchLimit)
		sources, err := deps.Searcher.Search(r.Context(), q, limit)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "knowledge search failed: %v", err)
			return
		}
		if sources == nil {
			sources = []knowledge.Source{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

// queryInt reads a non-negative integer parameter, clamped to max when max > 0.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
