package conversation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(msgs []Message) []Kind {
	out := make([]Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func TestLog_AppendKeepsOrder(t *testing.T) {
	l := NewLog(nil)
	l.Append(NewText(User, "olá", nil))
	l.Append(NewText(Assistant, "olá!", nil))
	l.Append(NewPayments())

	want := []Kind{KindText, KindText, KindPayments}
	if diff := cmp.Diff(want, kinds(l.Messages())); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLog_InteractiveReplacesActive(t *testing.T) {
	l := NewLog(nil)
	form := NewTicketForm(DefaultTicket("x"))
	assert.Nil(t, l.Append(form))

	confirm := NewConfirm("Abrir pedido?", "", []Action{{Name: ActionCancel, Label: "Não"}}, ConfirmMeta{})
	removed := l.Append(confirm)
	require.NotNil(t, removed)
	assert.Equal(t, form.ID, removed.ID)

	_, err := l.Find(form.ID)
	assert.True(t, errors.Is(err, ErrMessageNotFound))

	active, ok := l.Active()
	require.True(t, ok)
	assert.Equal(t, confirm.ID, active.ID)
}

func TestLog_NonInteractiveKeepsActive(t *testing.T) {
	l := NewLog(nil)
	form := NewScheduleForm(DefaultSchedule(""))
	l.Append(form)
	assert.Nil(t, l.Append(NewText(Assistant, "a carregar", nil)))

	active, ok := l.Active()
	require.True(t, ok)
	assert.Equal(t, form.ID, active.ID)
}

func TestLog_Remove(t *testing.T) {
	l := NewLog(nil)
	a := NewText(User, "a", nil)
	b := NewTicketForm(DefaultTicket("b"))
	c := NewText(Assistant, "c", nil)
	l.Append(a)
	l.Append(b)
	l.Append(c)

	got, err := l.Remove(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []Kind{KindText, KindText}, kinds(l.Messages()))

	_, err = l.Remove(b.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, ok := l.Active()
	assert.False(t, ok)
}

func TestLog_MessagesIsCopy(t *testing.T) {
	l := NewLog(nil)
	l.Append(NewText(User, "a", nil))
	msgs := l.Messages()
	msgs[0].Kind = KindPayments
	assert.Equal(t, KindText, l.Messages()[0].Kind)
}
