// Package pipeline runs chat turns: it classifies and answers user text,
// decides on escalation, and drives the triage forms, confirm cards, and
// slot bookings that follow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/tutordesk/internal/backoffice"
	"github.com/kalambet/tutordesk/internal/composer"
	"github.com/kalambet/tutordesk/internal/conversation"
	"github.com/kalambet/tutordesk/internal/escalation"
	"github.com/kalambet/tutordesk/internal/intent"
	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/proxy"
)

var (
	// ErrEmptyText is returned for blank user turns.
	ErrEmptyText = errors.New("empty message")
	// ErrSlotNotFound is returned when a slot id is not on the slots message.
	ErrSlotNotFound = errors.New("slot not found")
)

// KnowledgeRetriever finds sources for a question. It never fails.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string) []knowledge.Source
}

// AnswerGenerator produces an answer from a composed prompt.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, messages []proxy.Message) (string, error)
}

// BackOffice performs the side effects behind forms and confirm cards.
type BackOffice interface {
	FetchAvailableSlots(ctx context.Context, query string, triage conversation.TriageSchedule) (backoffice.Availability, error)
	BookSlot(ctx context.Context, slotID, reason string) (string, error)
	CreateTicket(ctx context.Context, ticket conversation.TriageTicket, originalText string) (backoffice.Ticket, error)
	GetAccountBalance(ctx context.Context) (float64, error)
}

// Orchestrator drives every state change of a session. Collaborator failures
// become messages in the log; returned errors mean the request itself was
// invalid for the session's current state.
type Orchestrator struct {
	catalog   *knowledge.Catalog
	retriever KnowledgeRetriever
	composer  *composer.Composer
	answers   AnswerGenerator
	office    BackOffice
	logger    *zap.Logger
}

// New creates an Orchestrator. catalog grounds the answer drafted while a
// ticket form is being resolved.
func New(catalog *knowledge.Catalog, retriever KnowledgeRetriever, comp *composer.Composer, answers AnswerGenerator, office BackOffice) *Orchestrator {
	return &Orchestrator{
		catalog:   catalog,
		retriever: retriever,
		composer:  comp,
		answers:   answers,
		office:    office,
		logger:    zap.L(),
	}
}

// WithLogger returns a copy of o that logs to l.
func (o *Orchestrator) WithLogger(l *zap.Logger) *Orchestrator {
	cp := *o
	cp.logger = l
	return &cp
}

// HandleUserText runs one user turn.
func (o *Orchestrator) HandleUserText(ctx context.Context, s *conversation.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if err := s.BeginTurn(); err != nil {
		return err
	}
	defer s.EndTurn()

	if stale, ok := s.DismissActive(); ok {
		o.logger.Debug("new turn replaced open interaction", zap.String("session_id", s.ID), zap.String("message_id", stale.ID))
	}
	s.Append(conversation.NewText(conversation.User, text, nil))

	if requested, ok := intent.RequestedEscalation(text); ok {
		o.openForm(s, formFor(requested), text)
		return nil
	}

	in := intent.Classify(text)
	sources := o.retriever.Retrieve(ctx, text)
	answer, err := o.answer(ctx, text, sources)
	if err != nil {
		o.logger.Error("answer generation failed", zap.String("session_id", s.ID), zap.Error(err))
		s.Append(conversation.NewText(conversation.Assistant, textAnswerFailed, nil))
		return nil
	}

	s.Append(conversation.NewText(conversation.Assistant, answer, sources))
	if in == intent.Payments {
		s.Append(conversation.NewPayments())
	}

	switch target := escalation.Decide(text, answer, in); target {
	case escalation.Ticket:
		o.openForm(s, conversation.FormTicket, text)
	case escalation.Schedule:
		o.openForm(s, conversation.FormSchedule, text)
	default:
		if in.IsWorkflow() {
			s.Append(offerFor(formFor(in), text))
		}
	}

	o.logger.Debug("turn complete", zap.String("session_id", s.ID), zap.String("intent", string(in)), zap.Int("sources", len(sources)))
	return nil
}

// SubmitScheduleForm resolves a scheduling form: the draft is echoed back and
// matching slots are looked up. With no slots a direct answer is attempted.
func (o *Orchestrator) SubmitScheduleForm(ctx context.Context, s *conversation.Session, formID string, draft conversation.TriageSchedule) error {
	if err := s.BeginTurn(); err != nil {
		return err
	}
	defer s.EndTurn()

	if _, err := takeForm(s, formID, conversation.FormSchedule); err != nil {
		return err
	}
	draft = draft.Normalize()
	s.Append(conversation.NewText(conversation.User, draft.Summary(), nil))

	query := draft.Query()
	if query == "" {
		query = s.PendingText()
	}

	av, err := o.office.FetchAvailableSlots(ctx, query, draft)
	if err != nil {
		o.logger.Error("availability lookup failed", zap.String("session_id", s.ID), zap.Error(err))
		s.Append(conversation.NewText(conversation.Assistant, textAvailabilityFailed, nil))
		return nil
	}
	if len(av.Slots) > 0 {
		s.Append(conversation.NewSlots(textSlotsTitle, av.Slots, av.Reason))
		return nil
	}

	question := query
	if question == "" {
		question = draft.Summary()
	}
	sources := o.retriever.Retrieve(ctx, question)
	answer, err := o.answer(ctx, question, sources)
	if err != nil {
		o.logger.Error("answer generation failed", zap.String("session_id", s.ID), zap.Error(err))
		s.Append(conversation.NewText(conversation.Assistant, textAnswerFailed, nil))
		return nil
	}
	s.Append(conversation.NewText(conversation.Assistant, textNoSlotsPrefix+"\n\n"+answer, sources))
	return nil
}

// SubmitTicketForm resolves a ticket form. Before offering to file the
// ticket it makes one last attempt at answering, retrieving sources and
// drafting an answer concurrently; either may fail without affecting the other.
func (o *Orchestrator) SubmitTicketForm(ctx context.Context, s *conversation.Session, formID string, draft conversation.TriageTicket) error {
	if err := s.BeginTurn(); err != nil {
		return err
	}
	defer s.EndTurn()

	if _, err := takeForm(s, formID, conversation.FormTicket); err != nil {
		return err
	}
	s.Append(conversation.NewText(conversation.User, draft.Summary(), nil))

	pending := s.PendingText()
	query := draft.Query()
	if query == "" {
		query = pending
	}

	var (
		sources   []knowledge.Source
		answer    string
		answerErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		sources = o.retriever.Retrieve(ctx, query)
		return nil
	})
	g.Go(func() error {
		answer, answerErr = o.answer(ctx, query, o.localMatches(query))
		return nil
	})
	_ = g.Wait()

	switch {
	case answerErr == nil && answer != "":
		s.Append(conversation.NewText(conversation.Assistant, answer, sources))
	case len(sources) > 0:
		o.logger.Warn("ticket resolution answer failed", zap.String("session_id", s.ID), zap.Error(answerErr))
		s.Append(conversation.NewText(conversation.Assistant, textSourcesOnly, sources))
	default:
		o.logger.Warn("ticket resolution found nothing", zap.String("session_id", s.ID), zap.Error(answerErr))
	}

	s.Append(conversation.NewConfirm(textFileTicketTitle, textFileTicketDesc,
		[]conversation.Action{
			{Name: conversation.ActionOpenTicket, Label: labelOpenTicket},
			{Name: conversation.ActionCancel, Label: labelNo},
		},
		conversation.ConfirmMeta{PendingText: pending, Ticket: &draft},
	))
	return nil
}

// CancelForm removes an open form. Nothing is appended.
func (o *Orchestrator) CancelForm(ctx context.Context, s *conversation.Session, formID string) error {
	if err := s.BeginTurn(); err != nil {
		return err
	}
	defer s.EndTurn()

	if _, err := s.Lookup(formID, conversation.KindForm); err != nil {
		return err
	}
	_, err := s.Remove(formID)
	return err
}

// ConfirmAction applies action to the confirm card confirmID.
func (o *Orchestrator) ConfirmAction(ctx context.Context, s *conversation.Session, confirmID string, action conversation.ActionName) error {
	if err := s.BeginTurn(); err != nil {
		return err
	}
	defer s.EndTurn()

	msg, err := s.Lookup(confirmID, conversation.KindConfirm)
	if err != nil {
		return err
	}
	card := msg.Confirm
	if !card.Offers(action) {
		return fmt.Errorf("%w: %q", conversation.ErrUnknownAction, action)
	}

	switch action {
	case conversation.ActionCancel:
		if _, err := s.Remove(confirmID); err != nil {
			return err
		}
		s.Append(conversation.NewText(conversation.Assistant, textCancelled, nil))
	case conversation.ActionDismiss:
		if _, err := s.Remove(confirmID); err != nil {
			return err
		}
	case conversation.ActionOpenScheduleForm:
		if _, err := s.Remove(confirmID); err != nil {
			return err
		}
		o.openForm(s, conversation.FormSchedule, card.Meta.PendingText)
	case conversation.ActionOpenTicketForm:
		if _, err := s.Remove(confirmID); err != nil {
			return err
		}
		o.openForm(s, conversation.FormTicket, card.Meta.PendingText)
	case conversation.ActionOpenTicket:
		o.fileTicket(ctx, s, confirmID, card.Meta)
	default:
		return fmt.Errorf("%w: %q", conversation.ErrUnknownAction, action)
	}
	return nil
}

func (o *Orchestrator) fileTicket(ctx context.Context, s *conversation.Session, confirmID string, meta conversation.ConfirmMeta) {
	draft := conversation.DefaultTicket(meta.PendingText)
	if meta.Ticket != nil {
		draft = *meta.Ticket
	}
	if err := draft.Validate(); err != nil {
		o.logger.Info("ticket not filed", zap.String("session_id", s.ID), zap.Error(err))
		s.Append(conversation.NewText(conversation.Assistant, textTicketInvalid, nil))
		return
	}

	ticket, err := o.office.CreateTicket(ctx, draft, meta.PendingText)
	if err != nil {
		o.logger.Error("ticket creation failed", zap.String("session_id", s.ID), zap.Error(err))
		s.Append(conversation.NewText(conversation.Assistant, textTicketFailed, nil))
		return
	}

	if _, err := s.Remove(confirmID); err != nil {
		o.logger.Warn("confirm card vanished before removal", zap.String("session_id", s.ID), zap.Error(err))
	}
	s.Append(conversation.NewTicket(ticket.ID, strings.TrimSpace(draft.Subject), ticket.Link))
}

// BookSlot reserves slotID from the slots message slotsID.
func (o *Orchestrator) BookSlot(ctx context.Context, s *conversation.Session, slotsID, slotID string) error {
	if err := s.BeginTurn(); err != nil {
		return err
	}
	defer s.EndTurn()

	msg, err := s.Lookup(slotsID, conversation.KindSlots)
	if err != nil {
		return err
	}
	slot, ok := msg.Slots.Find(slotID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}

	transient := s.Append(conversation.NewText(conversation.Assistant, textConfirming, nil))
	bookingID, err := o.office.BookSlot(ctx, slot.ID, s.PendingText())
	if _, rmErr := s.Remove(transient.ID); rmErr != nil {
		o.logger.Warn("transient message already gone", zap.String("session_id", s.ID), zap.Error(rmErr))
	}
	if err != nil {
		o.logger.Error("booking failed", zap.String("session_id", s.ID), zap.String("slot_id", slot.ID), zap.Error(err))
		s.Append(conversation.NewText(conversation.Assistant, textBookingFailed, nil))
		return nil
	}

	s.Append(conversation.NewConfirm(textBookedTitle, bookedDescription(slot, bookingID),
		[]conversation.Action{{Name: conversation.ActionDismiss, Label: labelOK}},
		conversation.ConfirmMeta{BookingID: bookingID},
	))
	return nil
}

// Balance returns the account balance, or nil when it cannot be determined.
func (o *Orchestrator) Balance(ctx context.Context) *float64 {
	b, err := o.office.GetAccountBalance(ctx)
	if err != nil {
		o.logger.Warn("balance lookup failed", zap.Error(err))
		return nil
	}
	return &b
}

// Ask answers a standalone question without touching any session.
func (o *Orchestrator) Ask(ctx context.Context, question string) (string, []knowledge.Source, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, ErrEmptyText
	}
	sources := o.retriever.Retrieve(ctx, question)
	answer, err := o.answer(ctx, question, sources)
	return answer, sources, err
}

func (o *Orchestrator) answer(ctx context.Context, question string, sources []knowledge.Source) (string, error) {
	prompt := o.composer.Compose(question, sources)
	return o.answers.GenerateAnswer(ctx, prompt.Messages())
}

func (o *Orchestrator) localMatches(query string) []knowledge.Source {
	if o.catalog == nil {
		return nil
	}
	return o.catalog.Search(query)
}

func (o *Orchestrator) openForm(s *conversation.Session, kind conversation.FormKind, pending string) {
	s.SetPendingText(pending)
	if kind == conversation.FormSchedule {
		s.Append(conversation.NewScheduleForm(conversation.DefaultSchedule(pending)))
		return
	}
	s.Append(conversation.NewTicketForm(conversation.DefaultTicket(pending)))
}

// takeForm removes form formID after checking it is a form of kind.
func takeForm(s *conversation.Session, formID string, kind conversation.FormKind) (conversation.Message, error) {
	msg, err := s.Lookup(formID, conversation.KindForm)
	if err != nil {
		return conversation.Message{}, err
	}
	if msg.Form.Form != kind {
		return conversation.Message{}, fmt.Errorf("%w: form is %s, not %s", conversation.ErrWrongKind, msg.Form.Form, kind)
	}
	return s.Remove(formID)
}

func formFor(in intent.Intent) conversation.FormKind {
	if in == intent.Schedule {
		return conversation.FormSchedule
	}
	return conversation.FormTicket
}

func offerFor(kind conversation.FormKind, pending string) conversation.Message {
	title, desc, action := textOfferTicketTitle, textOfferTicketDesc, conversation.ActionOpenTicketForm
	if kind == conversation.FormSchedule {
		title, desc, action = textOfferScheduleTitle, textOfferScheduleDesc, conversation.ActionOpenScheduleForm
	}
	return conversation.NewConfirm(title, desc,
		[]conversation.Action{
			{Name: action, Label: labelOpenForm},
			{Name: conversation.ActionCancel, Label: labelNo},
		},
		conversation.ConfirmMeta{PendingText: pending},
	)
}

func bookedDescription(slot conversation.Slot, bookingID string) string {
	when := slot.StartsAt.Format("02/01/2006 15:04")
	desc := fmt.Sprintf("A explicação de %s ficou marcada", when)
	if slot.TeacherName != "" {
		desc += " com " + slot.TeacherName
	}
	return desc + ". Referência: " + bookingID + "."
}
