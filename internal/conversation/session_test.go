package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	op string
	id string
}

type fakeRecorder struct {
	mu      sync.Mutex
	events  []recordedEvent
	pending []string
}

func (r *fakeRecorder) MessageAppended(_ string, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{"append", m.ID})
}

func (r *fakeRecorder) MessageRemoved(_ string, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{"remove", m.ID})
}

func (r *fakeRecorder) PendingTextChanged(_ string, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, text)
}

func TestSession_TurnGuard(t *testing.T) {
	s := NewSession("s1")
	require.NoError(t, s.BeginTurn())
	assert.True(t, s.InFlight())
	assert.ErrorIs(t, s.BeginTurn(), ErrTurnInFlight)
	s.EndTurn()
	assert.False(t, s.InFlight())
	assert.NoError(t, s.BeginTurn())
}

func TestSession_TurnGuardConcurrent(t *testing.T) {
	s := NewSession("s1")
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginTurn() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestSession_RecordsChanges(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSession("s1")
	s.SetRecorder(rec)

	form := s.Append(NewTicketForm(DefaultTicket("x")))
	confirm := s.Append(NewConfirm("c", "", nil, ConfirmMeta{}))
	s.SetPendingText("texto original")
	_, err := s.Remove(confirm.ID)
	require.NoError(t, err)

	want := []recordedEvent{
		{"append", form.ID},
		{"remove", form.ID},
		{"append", confirm.ID},
		{"remove", confirm.ID},
	}
	assert.Equal(t, want, rec.events)
	assert.Equal(t, []string{"texto original"}, rec.pending)
	assert.Equal(t, "texto original", s.PendingText())
}

func TestSession_Lookup(t *testing.T) {
	s := NewSession("s1")
	form := s.Append(NewScheduleForm(DefaultSchedule("")))

	got, err := s.Lookup(form.ID, KindForm)
	require.NoError(t, err)
	assert.Equal(t, form.ID, got.ID)

	_, err = s.Lookup(form.ID, KindConfirm)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, err = s.Lookup("missing", KindForm)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestSession_DismissActive(t *testing.T) {
	s := NewSession("s1")
	_, ok := s.DismissActive()
	assert.False(t, ok)

	form := s.Append(NewScheduleForm(DefaultSchedule("")))
	got, ok := s.DismissActive()
	require.True(t, ok)
	assert.Equal(t, form.ID, got.ID)
	assert.Empty(t, s.Messages())
}

func TestRestore(t *testing.T) {
	msgs := []Message{NewText(User, "a", nil), NewTicketForm(DefaultTicket("a"))}
	s := Restore("s9", msgs[0].CreatedAt, msgs, "a")
	assert.Equal(t, "s9", s.ID)
	assert.Equal(t, "a", s.PendingText())
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, msgs[1].ID, active.ID)
}
