package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/backoffice"
	"github.com/kalambet/tutordesk/internal/composer"
	"github.com/kalambet/tutordesk/internal/conversation"
	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/proxy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const groundedAnswer = "Segundo o Doc 1, a secretaria fica no rés-do-chão do edifício principal e atende de segunda a sexta, das 9h às 19h. Pode também tratar de tudo por telefone."

// --- fakes ---

type fakeRetriever struct {
	retrieveFn func(ctx context.Context, query string) []knowledge.Source
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) []knowledge.Source {
	if f.retrieveFn == nil {
		return nil
	}
	return f.retrieveFn(ctx, query)
}

type fakeAnswers struct {
	calls      atomic.Int32
	generateFn func(ctx context.Context, messages []proxy.Message) (string, error)
}

func (f *fakeAnswers) GenerateAnswer(ctx context.Context, messages []proxy.Message) (string, error) {
	f.calls.Add(1)
	if f.generateFn == nil {
		return groundedAnswer, nil
	}
	return f.generateFn(ctx, messages)
}

type fakeOffice struct {
	slotsFn   func(ctx context.Context, query string, triage conversation.TriageSchedule) (backoffice.Availability, error)
	bookFn    func(ctx context.Context, slotID, reason string) (string, error)
	ticketFn  func(ctx context.Context, ticket conversation.TriageTicket, originalText string) (backoffice.Ticket, error)
	balanceFn func(ctx context.Context) (float64, error)

	ticketCalls int
}

func (f *fakeOffice) FetchAvailableSlots(ctx context.Context, query string, triage conversation.TriageSchedule) (backoffice.Availability, error) {
	return f.slotsFn(ctx, query, triage)
}

func (f *fakeOffice) BookSlot(ctx context.Context, slotID, reason string) (string, error) {
	return f.bookFn(ctx, slotID, reason)
}

func (f *fakeOffice) CreateTicket(ctx context.Context, ticket conversation.TriageTicket, originalText string) (backoffice.Ticket, error) {
	f.ticketCalls++
	return f.ticketFn(ctx, ticket, originalText)
}

func (f *fakeOffice) GetAccountBalance(ctx context.Context) (float64, error) {
	return f.balanceFn(ctx)
}

type harness struct {
	orch      *Orchestrator
	retriever *fakeRetriever
	answers   *fakeAnswers
	office    *fakeOffice
	session   *conversation.Session
}

func newHarness() *harness {
	h := &harness{
		retriever: &fakeRetriever{},
		answers:   &fakeAnswers{},
		office:    &fakeOffice{},
		session:   conversation.NewSession("s1"),
	}
	catalog := knowledge.NewCatalog([]knowledge.Document{{Title: "Horário da secretaria", Body: "Das 9h às 19h."}})
	h.orch = New(catalog, h.retriever, composer.New(""), h.answers, h.office).WithLogger(zap.NewNop())
	return h
}

func kinds(msgs []conversation.Message) []conversation.Kind {
	out := make([]conversation.Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func assertKinds(t *testing.T, s *conversation.Session, want ...conversation.Kind) []conversation.Message {
	t.Helper()
	msgs := s.Messages()
	if diff := cmp.Diff(want, kinds(msgs)); diff != "" {
		t.Fatalf("log kinds mismatch (-want +got):\n%s", diff)
	}
	return msgs
}

func last(s *conversation.Session) conversation.Message {
	msgs := s.Messages()
	return msgs[len(msgs)-1]
}

const (
	kText     = conversation.KindText
	kSlots    = conversation.KindSlots
	kTicket   = conversation.KindTicket
	kPayments = conversation.KindPayments
	kForm     = conversation.KindForm
	kConfirm  = conversation.KindConfirm
)

// --- user turns ---

func TestHandleUserText_AnswersDirectly(t *testing.T) {
	h := newHarness()
	src := []knowledge.Source{{ID: "local-1", Title: "Horário da secretaria", Snippet: "Das 9h às 19h."}}
	h.retriever.retrieveFn = func(_ context.Context, q string) []knowledge.Source {
		assert.Equal(t, "Onde fica a secretaria?", q)
		return src
	}
	var prompt []proxy.Message
	h.answers.generateFn = func(_ context.Context, msgs []proxy.Message) (string, error) {
		prompt = msgs
		return groundedAnswer, nil
	}

	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "  Onde fica a secretaria?  "))

	msgs := assertKinds(t, h.session, kText, kText)
	assert.Equal(t, conversation.User, msgs[0].Role)
	assert.Equal(t, "Onde fica a secretaria?", msgs[0].Text.Body)
	assert.Equal(t, conversation.Assistant, msgs[1].Role)
	assert.Equal(t, groundedAnswer, msgs[1].Text.Body)
	assert.Equal(t, src, msgs[1].Text.Sources)
	require.Len(t, prompt, 2)
	assert.Contains(t, prompt[1].Content, "Doc 1: Horário da secretaria")
	assert.False(t, h.session.InFlight())
}

func TestHandleUserText_PaymentsPanel(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Como posso pagar com MB WAY?"))
	assertKinds(t, h.session, kText, kText, kPayments)
}

func TestHandleUserText_BrokenSignalOpensTicketForm(t *testing.T) {
	h := newHarness()
	question := "não consigo aceder, dá erro"
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, question))

	msgs := assertKinds(t, h.session, kText, kText, kForm)
	form := msgs[2].Form
	assert.Equal(t, conversation.FormTicket, form.Form)
	require.NotNil(t, form.Ticket)
	assert.Equal(t, conversation.Technical, form.Ticket.Category)
	assert.Equal(t, conversation.Low, form.Ticket.Urgency)
	assert.Equal(t, question, h.session.PendingText())
}

func TestHandleUserText_WeakScheduleAnswerOpensScheduleForm(t *testing.T) {
	h := newHarness()
	h.answers.generateFn = func(context.Context, []proxy.Message) (string, error) {
		return "Veja a agenda.", nil
	}
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Há vagas para explicações de física?"))

	msgs := assertKinds(t, h.session, kText, kText, kForm)
	assert.Equal(t, conversation.FormSchedule, msgs[2].Form.Form)
	assert.Equal(t, 60, msgs[2].Form.Schedule.DurationMinutes)
	assert.Equal(t, conversation.Indifferent, msgs[2].Form.Schedule.Modality)
}

func TestHandleUserText_SoftOfferWhenAnswerIsGood(t *testing.T) {
	h := newHarness()
	question := "Há vagas para explicações de física?"
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, question))

	msgs := assertKinds(t, h.session, kText, kText, kConfirm)
	card := msgs[2].Confirm
	assert.True(t, card.Offers(conversation.ActionOpenScheduleForm))
	assert.True(t, card.Offers(conversation.ActionCancel))
	assert.Equal(t, question, card.Meta.PendingText)
}

func TestHandleUserText_ExplicitRequestSkipsAnswer(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Quero falar com um humano"))

	msgs := assertKinds(t, h.session, kText, kForm)
	assert.Equal(t, conversation.FormTicket, msgs[1].Form.Form)
	assert.Equal(t, int32(0), h.answers.calls.Load())
	assert.Equal(t, "Quero falar com um humano", h.session.PendingText())
}

func TestHandleUserText_AnswerFailureAppendsApology(t *testing.T) {
	h := newHarness()
	h.answers.generateFn = func(context.Context, []proxy.Message) (string, error) {
		return "", errors.New("upstream 500")
	}
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "não consigo aceder, dá erro"))

	msgs := assertKinds(t, h.session, kText, kText)
	assert.Equal(t, textAnswerFailed, msgs[1].Text.Body)
}

func TestHandleUserText_NewTurnClosesOpenForm(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.orch.HandleUserText(ctx, h.session, "Quero falar com um humano"))
	form, ok := h.session.Active()
	require.True(t, ok)

	require.NoError(t, h.orch.HandleUserText(ctx, h.session, "Onde fica a secretaria?"))

	assertKinds(t, h.session, kText, kText, kText)
	_, err := h.session.Lookup(form.ID, kForm)
	assert.ErrorIs(t, err, conversation.ErrMessageNotFound)
}

func TestHandleUserText_Guards(t *testing.T) {
	h := newHarness()
	assert.ErrorIs(t, h.orch.HandleUserText(context.Background(), h.session, "   "), ErrEmptyText)

	require.NoError(t, h.session.BeginTurn())
	err := h.orch.HandleUserText(context.Background(), h.session, "olá")
	assert.ErrorIs(t, err, conversation.ErrTurnInFlight)
	assert.Empty(t, h.session.Messages())
	h.session.EndTurn()
}

// --- forms ---

func openTicketForm(t *testing.T, h *harness) conversation.Message {
	t.Helper()
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Quero falar com um humano"))
	form, ok := h.session.Active()
	require.True(t, ok)
	require.Equal(t, conversation.FormTicket, form.Form.Form)
	return form
}

func openScheduleForm(t *testing.T, h *harness) conversation.Message {
	t.Helper()
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Quero marcar uma explicação de química"))
	form, ok := h.session.Active()
	require.True(t, ok)
	require.Equal(t, conversation.FormSchedule, form.Form.Form)
	return form
}

func TestCancelForm_RemovesOnlyTheForm(t *testing.T) {
	h := newHarness()
	form := openTicketForm(t, h)
	before := h.session.Messages()

	require.NoError(t, h.orch.CancelForm(context.Background(), h.session, form.ID))

	after := h.session.Messages()
	assert.Len(t, after, len(before)-1)
	assert.Equal(t, before[:len(before)-1], after)
	_, active := h.session.Active()
	assert.False(t, active)
}

func TestCancelForm_Errors(t *testing.T) {
	h := newHarness()
	assert.ErrorIs(t, h.orch.CancelForm(context.Background(), h.session, "missing"), conversation.ErrMessageNotFound)

	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Onde fica a secretaria?"))
	textID := h.session.Messages()[0].ID
	assert.ErrorIs(t, h.orch.CancelForm(context.Background(), h.session, textID), conversation.ErrWrongKind)
}

func TestSubmitScheduleForm_Slots(t *testing.T) {
	h := newHarness()
	form := openScheduleForm(t, h)
	slots := []conversation.Slot{{ID: "slot-1", TeacherName: "Ana", StartsAt: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}}
	var gotTriage conversation.TriageSchedule
	h.office.slotsFn = func(_ context.Context, _ string, triage conversation.TriageSchedule) (backoffice.Availability, error) {
		gotTriage = triage
		return backoffice.Availability{Slots: slots, Reason: "à tarde"}, nil
	}

	draft := conversation.TriageSchedule{Subject: "Química", DurationMinutes: 45, Modality: conversation.Online}
	require.NoError(t, h.orch.SubmitScheduleForm(context.Background(), h.session, form.ID, draft))

	msgs := assertKinds(t, h.session, kText, kText, kSlots)
	assert.Equal(t, conversation.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Text.Body, "Química")
	assert.Equal(t, slots, msgs[2].Slots.Slots)
	assert.Equal(t, "à tarde", msgs[2].Slots.Reason)
	assert.Equal(t, 60, gotTriage.DurationMinutes, "invalid duration normalized")
}

func TestSubmitScheduleForm_NoSlotsFallsBackToAnswer(t *testing.T) {
	h := newHarness()
	form := openScheduleForm(t, h)
	h.office.slotsFn = func(context.Context, string, conversation.TriageSchedule) (backoffice.Availability, error) {
		return backoffice.Availability{}, nil
	}

	require.NoError(t, h.orch.SubmitScheduleForm(context.Background(), h.session, form.ID, form.Form.Schedule.Normalize()))

	msgs := assertKinds(t, h.session, kText, kText, kText)
	assert.True(t, strings.HasPrefix(msgs[2].Text.Body, textNoSlotsPrefix))
	assert.Contains(t, msgs[2].Text.Body, groundedAnswer)
}

func TestSubmitScheduleForm_AvailabilityError(t *testing.T) {
	h := newHarness()
	form := openScheduleForm(t, h)
	h.office.slotsFn = func(context.Context, string, conversation.TriageSchedule) (backoffice.Availability, error) {
		return backoffice.Availability{}, errors.New("timeout")
	}

	require.NoError(t, h.orch.SubmitScheduleForm(context.Background(), h.session, form.ID, *form.Form.Schedule))

	msgs := assertKinds(t, h.session, kText, kText, kText)
	assert.Equal(t, textAvailabilityFailed, msgs[2].Text.Body)
}

func TestSubmitScheduleForm_WrongForm(t *testing.T) {
	h := newHarness()
	form := openTicketForm(t, h)
	err := h.orch.SubmitScheduleForm(context.Background(), h.session, form.ID, conversation.TriageSchedule{})
	assert.ErrorIs(t, err, conversation.ErrWrongKind)
	_, active := h.session.Active()
	assert.True(t, active, "form must stay open")
}

func TestSubmitTicketForm_ConcurrentResolutionThenConfirm(t *testing.T) {
	h := newHarness()
	form := openTicketForm(t, h)

	answerStarted := make(chan struct{})
	var concurrent atomic.Bool
	src := []knowledge.Source{{ID: "d9", Title: "Acesso à plataforma"}}
	h.retriever.retrieveFn = func(context.Context, string) []knowledge.Source {
		select {
		case <-answerStarted:
			concurrent.Store(true)
		case <-time.After(2 * time.Second):
		}
		return src
	}
	h.answers.generateFn = func(context.Context, []proxy.Message) (string, error) {
		close(answerStarted)
		return "Experimente recuperar a palavra-passe.", nil
	}

	draft := conversation.TriageTicket{Category: conversation.Access, Urgency: conversation.High, Subject: "Sem acesso", Description: "erro 403"}
	require.NoError(t, h.orch.SubmitTicketForm(context.Background(), h.session, form.ID, draft))

	assert.True(t, concurrent.Load(), "retrieval and answer must run concurrently")
	msgs := assertKinds(t, h.session, kText, kText, kText, kConfirm)
	assert.Contains(t, msgs[1].Text.Body, "Sem acesso")
	assert.Equal(t, "Experimente recuperar a palavra-passe.", msgs[2].Text.Body)
	assert.Equal(t, src, msgs[2].Text.Sources)

	card := msgs[3].Confirm
	assert.True(t, card.Offers(conversation.ActionOpenTicket))
	require.NotNil(t, card.Meta.Ticket)
	assert.Equal(t, draft, *card.Meta.Ticket)
	assert.Equal(t, "Quero falar com um humano", card.Meta.PendingText)
}

func TestSubmitTicketForm_AnswerFailureKeepsSources(t *testing.T) {
	h := newHarness()
	form := openTicketForm(t, h)
	h.retriever.retrieveFn = func(context.Context, string) []knowledge.Source {
		return []knowledge.Source{{ID: "d1", Title: "Acesso"}}
	}
	h.answers.generateFn = func(context.Context, []proxy.Message) (string, error) {
		return "", errors.New("down")
	}

	require.NoError(t, h.orch.SubmitTicketForm(context.Background(), h.session, form.ID, *form.Form.Ticket))

	msgs := assertKinds(t, h.session, kText, kText, kText, kConfirm)
	assert.Equal(t, textSourcesOnly, msgs[2].Text.Body)
	assert.Len(t, msgs[2].Text.Sources, 1)
}

func TestSubmitTicketForm_NothingFoundStillOffersTicket(t *testing.T) {
	h := newHarness()
	form := openTicketForm(t, h)
	h.answers.generateFn = func(context.Context, []proxy.Message) (string, error) {
		return "", errors.New("down")
	}

	require.NoError(t, h.orch.SubmitTicketForm(context.Background(), h.session, form.ID, *form.Form.Ticket))
	assertKinds(t, h.session, kText, kText, kConfirm)
}

// --- confirm cards ---

func offerSchedule(t *testing.T, h *harness) conversation.Message {
	t.Helper()
	require.NoError(t, h.orch.HandleUserText(context.Background(), h.session, "Há vagas para explicações de física?"))
	card, ok := h.session.Active()
	require.True(t, ok)
	require.Equal(t, kConfirm, card.Kind)
	return card
}

func ticketConfirm(t *testing.T, h *harness, draft conversation.TriageTicket) conversation.Message {
	t.Helper()
	form := openTicketForm(t, h)
	require.NoError(t, h.orch.SubmitTicketForm(context.Background(), h.session, form.ID, draft))
	card, ok := h.session.Active()
	require.True(t, ok)
	require.Equal(t, kConfirm, card.Kind)
	return card
}

func TestConfirmAction_Cancel(t *testing.T) {
	h := newHarness()
	card := offerSchedule(t, h)

	require.NoError(t, h.orch.ConfirmAction(context.Background(), h.session, card.ID, conversation.ActionCancel))

	msgs := assertKinds(t, h.session, kText, kText, kText)
	assert.Equal(t, textCancelled, msgs[2].Text.Body)
}

func TestConfirmAction_OpenForm(t *testing.T) {
	h := newHarness()
	card := offerSchedule(t, h)
	h.session.SetPendingText("outra coisa")

	require.NoError(t, h.orch.ConfirmAction(context.Background(), h.session, card.ID, conversation.ActionOpenScheduleForm))

	msgs := assertKinds(t, h.session, kText, kText, kForm)
	assert.Equal(t, conversation.FormSchedule, msgs[2].Form.Form)
	assert.Equal(t, "Há vagas para explicações de física?", h.session.PendingText())
}

func TestConfirmAction_UnknownAction(t *testing.T) {
	h := newHarness()
	card := offerSchedule(t, h)

	err := h.orch.ConfirmAction(context.Background(), h.session, card.ID, conversation.ActionOpenTicket)
	assert.ErrorIs(t, err, conversation.ErrUnknownAction)
	err = h.orch.ConfirmAction(context.Background(), h.session, card.ID, "explode")
	assert.ErrorIs(t, err, conversation.ErrUnknownAction)
	_, active := h.session.Active()
	assert.True(t, active)
}

func TestConfirmAction_OpenTicketSuccess(t *testing.T) {
	h := newHarness()
	draft := conversation.TriageTicket{Category: conversation.Payment, Urgency: conversation.Medium, Subject: "Fatura errada"}
	card := ticketConfirm(t, h, draft)
	h.office.ticketFn = func(_ context.Context, got conversation.TriageTicket, original string) (backoffice.Ticket, error) {
		assert.Equal(t, draft, got)
		assert.Equal(t, "Quero falar com um humano", original)
		return backoffice.Ticket{ID: "T-7", Link: "https://suporte.example/T-7"}, nil
	}

	require.NoError(t, h.orch.ConfirmAction(context.Background(), h.session, card.ID, conversation.ActionOpenTicket))

	msg := last(h.session)
	require.Equal(t, kTicket, msg.Kind)
	assert.Equal(t, "T-7", msg.Ticket.TicketID)
	assert.Equal(t, "Fatura errada", msg.Ticket.Subject)
	assert.Equal(t, "https://suporte.example/T-7", msg.Ticket.Link)
	_, err := h.session.Lookup(card.ID, kConfirm)
	assert.ErrorIs(t, err, conversation.ErrMessageNotFound)
}

func TestConfirmAction_OpenTicketFailureKeepsCard(t *testing.T) {
	h := newHarness()
	card := ticketConfirm(t, h, conversation.DefaultTicket("sem acesso"))
	h.office.ticketFn = func(context.Context, conversation.TriageTicket, string) (backoffice.Ticket, error) {
		return backoffice.Ticket{}, errors.New("503")
	}

	require.NoError(t, h.orch.ConfirmAction(context.Background(), h.session, card.ID, conversation.ActionOpenTicket))

	assert.Equal(t, textTicketFailed, last(h.session).Text.Body)
	active, ok := h.session.Active()
	require.True(t, ok)
	assert.Equal(t, card.ID, active.ID)
}

func TestConfirmAction_InvalidTicketNotFiled(t *testing.T) {
	h := newHarness()
	card := ticketConfirm(t, h, conversation.TriageTicket{Category: conversation.Other, Urgency: conversation.Low, Subject: "  "})

	require.NoError(t, h.orch.ConfirmAction(context.Background(), h.session, card.ID, conversation.ActionOpenTicket))

	assert.Equal(t, 0, h.office.ticketCalls)
	assert.Equal(t, textTicketInvalid, last(h.session).Text.Body)
	active, ok := h.session.Active()
	require.True(t, ok)
	assert.Equal(t, card.ID, active.ID)
}

// --- booking ---

func slotsMessage(h *harness) conversation.Message {
	slots := []conversation.Slot{{
		ID:          "slot-1",
		TeacherName: "Ana",
		StartsAt:    time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		EndsAt:      time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC),
	}}
	return h.session.Append(conversation.NewSlots(textSlotsTitle, slots, ""))
}

func TestBookSlot_Success(t *testing.T) {
	h := newHarness()
	msg := slotsMessage(h)
	var sawTransient bool
	h.office.bookFn = func(_ context.Context, slotID, _ string) (string, error) {
		assert.Equal(t, "slot-1", slotID)
		sawTransient = last(h.session).Kind == kText && last(h.session).Text.Body == textConfirming
		return "abc", nil
	}

	require.NoError(t, h.orch.BookSlot(context.Background(), h.session, msg.ID, "slot-1"))

	assert.True(t, sawTransient, "confirming text shown while booking")
	msgs := assertKinds(t, h.session, kSlots, kConfirm)
	card := msgs[1].Confirm
	assert.Contains(t, card.Description, "abc")
	assert.Contains(t, card.Description, "Ana")
	assert.Equal(t, "abc", card.Meta.BookingID)
	assert.True(t, card.Offers(conversation.ActionDismiss))

	require.NoError(t, h.orch.ConfirmAction(context.Background(), h.session, msgs[1].ID, conversation.ActionDismiss))
	assertKinds(t, h.session, kSlots)
}

func TestBookSlot_Failure(t *testing.T) {
	h := newHarness()
	msg := slotsMessage(h)
	h.office.bookFn = func(context.Context, string, string) (string, error) {
		return "", backoffice.ErrBookingRejected
	}

	require.NoError(t, h.orch.BookSlot(context.Background(), h.session, msg.ID, "slot-1"))

	msgs := assertKinds(t, h.session, kSlots, kText)
	assert.Equal(t, textBookingFailed, msgs[1].Text.Body)
}

func TestBookSlot_UnknownSlot(t *testing.T) {
	h := newHarness()
	msg := slotsMessage(h)
	err := h.orch.BookSlot(context.Background(), h.session, msg.ID, "nope")
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assertKinds(t, h.session, kSlots)
}

// --- misc ---

func TestBalance(t *testing.T) {
	h := newHarness()
	h.office.balanceFn = func(context.Context) (float64, error) { return 12.5, nil }
	b := h.orch.Balance(context.Background())
	require.NotNil(t, b)
	assert.InDelta(t, 12.5, *b, 1e-9)

	h.office.balanceFn = func(context.Context) (float64, error) { return 0, errors.New("down") }
	assert.Nil(t, h.orch.Balance(context.Background()))
}

func TestAsk(t *testing.T) {
	h := newHarness()
	answer, _, err := h.orch.Ask(context.Background(), "Onde fica a secretaria?")
	require.NoError(t, err)
	assert.Equal(t, groundedAnswer, answer)
	assert.Empty(t, h.session.Messages())

	_, _, err = h.orch.Ask(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	h.answers.generateFn = func(context.Context, []proxy.Message) (string, error) {
		<-release
		return groundedAnswer, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.orch.HandleUserText(context.Background(), h.session, "Onde fica a secretaria?")
		}()
	}

	// One turn is parked in the answer call; the other must be rejected.
	rejected := <-errs
	assert.ErrorIs(t, rejected, conversation.ErrTurnInFlight)
	close(release)
	wg.Wait()
	assert.NoError(t, <-errs)
	assertKinds(t, h.session, kText, kText)
}
