package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsValidate(t *testing.T) {
	msgs := []Message{
		NewText(User, "olá", nil),
		NewSlots("Horários", []Slot{{ID: "s1", TeacherName: "Ana"}}, ""),
		NewTicket("T-1", "Sem acesso", ""),
		NewPayments(),
		NewScheduleForm(DefaultSchedule("")),
		NewTicketForm(DefaultTicket("")),
		NewConfirm("Confirmar?", "", []Action{{Name: ActionCancel, Label: "Não"}}, ConfirmMeta{}),
	}
	seen := map[string]bool{}
	for _, m := range msgs {
		assert.NoError(t, m.Validate(), "kind %s", m.Kind)
		assert.NotEmpty(t, m.ID)
		assert.False(t, seen[m.ID], "duplicate id")
		seen[m.ID] = true
		assert.NotEmpty(t, m.Preview())
	}
}

func TestValidate_Rejects(t *testing.T) {
	text := NewText(User, "x", nil)

	wrongBody := text
	wrongBody.Kind = KindSlots
	assert.Error(t, wrongBody.Validate())

	extraBody := text
	extraBody.Ticket = &TicketBody{TicketID: "1"}
	assert.Error(t, extraBody.Validate())

	unknown := text
	unknown.Kind = "banner"
	assert.Error(t, unknown.Validate())

	noRole := text
	noRole.Role = ""
	assert.Error(t, noRole.Validate())

	payments := NewPayments()
	payments.Text = &TextBody{Body: "x"}
	assert.Error(t, payments.Validate())

	form := NewScheduleForm(DefaultSchedule(""))
	form.Form.Ticket = &TriageTicket{}
	assert.Error(t, form.Validate())
}

func TestInteractive(t *testing.T) {
	assert.True(t, NewTicketForm(DefaultTicket("")).Interactive())
	assert.True(t, NewConfirm("c", "", nil, ConfirmMeta{}).Interactive())
	assert.False(t, NewText(Assistant, "x", nil).Interactive())
	assert.False(t, NewSlots("s", nil, "").Interactive())
}

func TestConfirmOffers(t *testing.T) {
	m := NewConfirm("c", "", []Action{{Name: ActionCancel}, {Name: ActionOpenTicket}}, ConfirmMeta{})
	assert.True(t, m.Confirm.Offers(ActionOpenTicket))
	assert.False(t, m.Confirm.Offers(ActionDismiss))
}

func TestSlotsFind(t *testing.T) {
	m := NewSlots("s", []Slot{{ID: "a"}, {ID: "b", TeacherName: "Rui"}}, "")
	s, ok := m.Slots.Find("b")
	assert.True(t, ok)
	assert.Equal(t, "Rui", s.TeacherName)
	_, ok = m.Slots.Find("zz")
	assert.False(t, ok)
}
