package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tutordesk/internal/conversation"
)

type sessionView struct {
	SessionID   string                 `json:"session_id"`
	CreatedAt   time.Time              `json:"created_at"`
	PendingText string                 `json:"pending_text,omitempty"`
	Messages    []conversation.Message `json:"messages"`
}

func viewOf(s *conversation.Session) sessionView {
	msgs := s.Messages()
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	return sessionView{
		SessionID:   s.ID,
		CreatedAt:   s.CreatedAt,
		PendingText: s.PendingText(),
		Messages:    msgs,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBodyLimit(w, r, v, maxRequestBodySize)
}

func decodeBodyLimit(w http.ResponseWriter, r *http.Request, v any, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// errResponded tells withSession that op already wrote the response.
var errResponded = errors.New("response written")

type sessionOp func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error

// withSession resolves {sessionID}, runs op, and answers with the session's log.
func withSession(deps Deps, op sessionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		switch err := op(w, r, s); {
		case errors.Is(err, errResponded):
		case err != nil:
			writeErr(w, err)
		default:
			writeJSON(w, http.StatusOK, viewOf(s))
		}
	}
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Create(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(s))
	}
}

func handleMessages(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error {
		return nil
	})
}

type turnRequest struct {
	Text string `json:"text"`
}

func handleTurn(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error {
		var req turnRequest
		if !decodeBody(w, r, &req) {
			return errResponded
		}
		return deps.Chat.HandleUserText(r.Context(), s, req.Text)
	})
}

type formSubmission struct {
	Schedule *conversation.TriageSchedule `json:"schedule"`
	Ticket   *conversation.TriageTicket   `json:"ticket"`
}

func handleSubmitForm(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error {
		var req formSubmission
		if !decodeBody(w, r, &req) {
			return errResponded
		}
		formID := chi.URLParam(r, "msgID")
		switch {
		case req.Schedule != nil && req.Ticket == nil:
			return deps.Chat.SubmitScheduleForm(r.Context(), s, formID, *req.Schedule)
		case req.Ticket != nil && req.Schedule == nil:
			return deps.Chat.SubmitTicketForm(r.Context(), s, formID, *req.Ticket)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "exactly one of schedule or ticket is required")
			return errResponded
		}
	})
}

func handleCancelForm(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error {
		return deps.Chat.CancelForm(r.Context(), s, chi.URLParam(r, "msgID"))
	})
}

func handleConfirmAction(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error {
		action := conversation.ActionName(chi.URLParam(r, "action"))
		return deps.Chat.ConfirmAction(r.Context(), s, chi.URLParam(r, "msgID"), action)
	})
}

type bookRequest struct {
	SlotID string `json:"slot_id"`
}

func handleBookSlot(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, s *conversation.Session) error {
		var req bookRequest
		if !decodeBody(w, r, &req) {
			return errResponded
		}
		if req.SlotID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "slot_id is required")
			return errResponded
		}
		return deps.Chat.BookSlot(r.Context(), s, chi.URLParam(r, "msgID"), req.SlotID)
	})
}

func handleBalance(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]*float64{"balance": deps.Chat.Balance(r.Context())})
	}
}
