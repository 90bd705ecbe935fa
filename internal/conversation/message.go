// Package conversation models the chat log: a tagged union of message kinds,
// the ordered log that holds them, and the per-session state around it.
package conversation

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tutordesk/internal/knowledge"
)

// Role is the author of a message.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Kind discriminates the Message union.
type Kind string

const (
	KindText     Kind = "text"
	KindSlots    Kind = "slots"
	KindTicket   Kind = "ticket"
	KindPayments Kind = "payments"
	KindForm     Kind = "form"
	KindConfirm  Kind = "confirm"
)

// Message is one log entry. Exactly the body matching Kind is set; payments
// messages carry no body.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	Text    *TextBody    `json:"text,omitempty"`
	Slots   *SlotsBody   `json:"slots,omitempty"`
	Ticket  *TicketBody  `json:"ticket,omitempty"`
	Form    *FormBody    `json:"form,omitempty"`
	Confirm *ConfirmBody `json:"confirm,omitempty"`
}

type TextBody struct {
	Body    string             `json:"body"`
	Sources []knowledge.Source `json:"sources,omitempty"`
}

// Slot is a bookable window offered by the availability service.
type Slot struct {
	ID          string    `json:"id"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	TeacherName string    `json:"teacher_name"`
	Modality    Modality  `json:"modality,omitempty"`
}

type SlotsBody struct {
	Title  string `json:"title"`
	Slots  []Slot `json:"slots"`
	Reason string `json:"reason,omitempty"`
}

// Find returns the slot with id.
func (b *SlotsBody) Find(id string) (Slot, bool) {
	for _, s := range b.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

type TicketBody struct {
	TicketID string `json:"ticket_id"`
	Subject  string `json:"subject"`
	Link     string `json:"link,omitempty"`
}

// FormKind names a triage form.
type FormKind string

const (
	FormSchedule FormKind = "schedule"
	FormTicket   FormKind = "ticket"
)

type FormBody struct {
	Form     FormKind        `json:"form"`
	Schedule *TriageSchedule `json:"schedule,omitempty"`
	Ticket   *TriageTicket   `json:"ticket,omitempty"`
}

// ActionName identifies a confirm card action.
type ActionName string

const (
	ActionCancel           ActionName = "cancel"
	ActionOpenScheduleForm ActionName = "open-schedule-form"
	ActionOpenTicketForm   ActionName = "open-ticket-form"
	ActionOpenTicket       ActionName = "open-ticket"
	ActionDismiss          ActionName = "dismiss"
)

type Action struct {
	Name  ActionName `json:"name"`
	Label string     `json:"label"`
}

// ConfirmMeta is the state a confirm card carries for its actions.
type ConfirmMeta struct {
	PendingText string        `json:"pending_text,omitempty"`
	Ticket      *TriageTicket `json:"ticket,omitempty"`
	BookingID   string        `json:"booking_id,omitempty"`
}

type ConfirmBody struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Actions     []Action    `json:"actions"`
	Meta        ConfirmMeta `json:"meta"`
}

// Offers reports whether the card lists action.
func (b *ConfirmBody) Offers(action ActionName) bool {
	return slices.ContainsFunc(b.Actions, func(a Action) bool { return a.Name == action })
}

func newMessage(role Role, kind Kind) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// NewText builds a text message.
func NewText(role Role, body string, sources []knowledge.Source) Message {
	m := newMessage(role, KindText)
	m.Text = &TextBody{Body: body, Sources: sources}
	return m
}

// NewSlots builds an assistant slot list.
func NewSlots(title string, slots []Slot, reason string) Message {
	m := newMessage(Assistant, KindSlots)
	m.Slots = &SlotsBody{Title: title, Slots: slots, Reason: reason}
	return m
}

// NewTicket builds an assistant ticket receipt.
func NewTicket(id, subject, link string) Message {
	m := newMessage(Assistant, KindTicket)
	m.Ticket = &TicketBody{TicketID: id, Subject: subject, Link: link}
	return m
}

// NewPayments builds the payments quick panel marker.
func NewPayments() Message {
	return newMessage(Assistant, KindPayments)
}

// NewScheduleForm builds a scheduling form with draft.
func NewScheduleForm(draft TriageSchedule) Message {
	m := newMessage(Assistant, KindForm)
	m.Form = &FormBody{Form: FormSchedule, Schedule: &draft}
	return m
}

// NewTicketForm builds a ticket form with draft.
func NewTicketForm(draft TriageTicket) Message {
	m := newMessage(Assistant, KindForm)
	m.Form = &FormBody{Form: FormTicket, Ticket: &draft}
	return m
}

// NewConfirm builds a confirm card.
func NewConfirm(title, description string, actions []Action, meta ConfirmMeta) Message {
	m := newMessage(Assistant, KindConfirm)
	m.Confirm = &ConfirmBody{Title: title, Description: description, Actions: actions, Meta: meta}
	return m
}

// Interactive reports whether the message awaits a user decision.
func (m Message) Interactive() bool {
	return m.Kind == KindForm || m.Kind == KindConfirm
}

// Validate checks that the body set matches Kind.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("message without id")
	}
	if m.Role != User && m.Role != Assistant {
		return fmt.Errorf("message %s: unknown role %q", m.ID, m.Role)
	}
	bodies := 0
	for _, set := range []bool{m.Text != nil, m.Slots != nil, m.Ticket != nil, m.Form != nil, m.Confirm != nil} {
		if set {
			bodies++
		}
	}

	var ok bool
	switch m.Kind {
	case KindText:
		ok = m.Text != nil
	case KindSlots:
		ok = m.Slots != nil
	case KindTicket:
		ok = m.Ticket != nil
	case KindPayments:
		ok = bodies == 0
		bodies = 1
	case KindForm:
		ok = m.Form != nil && validForm(m.Form)
	case KindConfirm:
		ok = m.Confirm != nil
	default:
		return fmt.Errorf("message %s: unknown kind %q", m.ID, m.Kind)
	}
	if !ok || bodies != 1 {
		return fmt.Errorf("message %s: body does not match kind %q", m.ID, m.Kind)
	}
	return nil
}

func validForm(f *FormBody) bool {
	switch f.Form {
	case FormSchedule:
		return f.Schedule != nil && f.Ticket == nil
	case FormTicket:
		return f.Ticket != nil && f.Schedule == nil
	default:
		return false
	}
}

// Preview returns a one-line description of the message.
func (m Message) Preview() string {
	switch m.Kind {
	case KindText:
		return m.Text.Body
	case KindSlots:
		return fmt.Sprintf("%s (%d horários)", m.Slots.Title, len(m.Slots.Slots))
	case KindTicket:
		return fmt.Sprintf("Pedido %s: %s", m.Ticket.TicketID, m.Ticket.Subject)
	case KindPayments:
		return "Pagamentos"
	case KindForm:
		if m.Form.Form == FormSchedule {
			return "Formulário de marcação"
		}
		return "Formulário de pedido de suporte"
	case KindConfirm:
		return m.Confirm.Title
	default:
		return string(m.Kind)
	}
}
