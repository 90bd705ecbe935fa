// Package api exposes chat sessions, the knowledge index, and MCP tools over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/conversation"
	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Sessions hands out chat sessions.
type Sessions interface {
	Create(ctx context.Context) (*conversation.Session, error)
	Get(ctx context.Context, id string) (*conversation.Session, error)
}

// Chat runs the state changes of a session.
type Chat interface {
	HandleUserText(ctx context.Context, s *conversation.Session, text string) error
	SubmitScheduleForm(ctx context.Context, s *conversation.Session, formID string, draft conversation.TriageSchedule) error
	SubmitTicketForm(ctx context.Context, s *conversation.Session, formID string, draft conversation.TriageTicket) error
	CancelForm(ctx context.Context, s *conversation.Session, formID string) error
	ConfirmAction(ctx context.Context, s *conversation.Session, confirmID string, action conversation.ActionName) error
	BookSlot(ctx context.Context, s *conversation.Session, slotsID, slotID string) error
	Balance(ctx context.Context) *float64
}

// KnowledgeStore persists knowledge index documents.
type KnowledgeStore interface {
	SaveKnowledgeDoc(ctx context.Context, doc storage.KnowledgeDoc, job storage.Job) error
	GetKnowledgeDoc(ctx context.Context, id string) (storage.KnowledgeDoc, error)
	ListKnowledgeDocs(ctx context.Context, limit, offset int) ([]storage.KnowledgeDoc, error)
	DeleteKnowledgeDoc(ctx context.Context, id string) error
}

// KnowledgeSearcher queries the knowledge index.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Source, error)
}

type Deps struct {
	Sessions  Sessions
	Chat      Chat
	Knowledge KnowledgeStore
	Searcher  KnowledgeSearcher
	Token     string
	// MCP, when set, is mounted at /mcp behind the same bearer auth.
	MCP http.Handler
}

// NewHandler builds the HTTP surface. Everything except /health requires the
// bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/sessions", handleCreateSession(deps))
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/messages", handleMessages(deps))
			r.Post("/turns", handleTurn(deps))
			r.Post("/forms/{msgID}/submit", handleSubmitForm(deps))
			r.Post("/forms/{msgID}/cancel", handleCancelForm(deps))
			r.Post("/confirms/{msgID}/actions/{action}", handleConfirmAction(deps))
			r.Post("/slots/{msgID}/book", handleBookSlot(deps))
			r.Get("/balance", handleBalance(deps))
		})

		r.Post("/knowledge", handleSubmitKnowledge(deps))
		r.Get("/knowledge", handleListKnowledge(deps))
		r.Get("/knowledge/search", handleSearchKnowledge(deps))
		r.Get("/knowledge/{docID}", handleGetKnowledge(deps))
		r.Delete("/knowledge/{docID}", handleDeleteKnowledge(deps))

		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
