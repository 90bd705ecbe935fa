package conversation

import (
	"sync"
	"time"
)

// Recorder observes every change to a session so it can be persisted.
// Implementations must not call back into the Session.
type Recorder interface {
	MessageAppended(sessionID string, m Message)
	MessageRemoved(sessionID string, m Message)
	PendingTextChanged(sessionID, text string)
}

// Session is one chat: its log, the utterance behind the open form, and a
// guard that admits one turn at a time. All methods are safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	log         *Log
	pendingText string
	inFlight    bool
	rec         Recorder
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{ID: id, CreatedAt: time.Now().UTC(), log: NewLog(nil)}
}

// Restore rebuilds a session from persisted state.
func Restore(id string, createdAt time.Time, msgs []Message, pendingText string) *Session {
	return &Session{ID: id, CreatedAt: createdAt, log: NewLog(msgs), pendingText: pendingText}
}

// SetRecorder installs rec; nil disables recording.
func (s *Session) SetRecorder(rec Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
}

// BeginTurn claims the session for one turn. It fails with ErrTurnInFlight
// while another turn holds it.
func (s *Session) BeginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrTurnInFlight
	}
	s.inFlight = true
	return nil
}

// EndTurn releases the claim taken by BeginTurn.
func (s *Session) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// InFlight reports whether a turn is running.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Append adds m to the log, first removing any active interactive message
// when m is itself interactive.
func (s *Session) Append(m Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if removed := s.log.Append(m); removed != nil && s.rec != nil {
		s.rec.MessageRemoved(s.ID, *removed)
	}
	if s.rec != nil {
		s.rec.MessageAppended(s.ID, m)
	}
	return m
}

// Remove deletes the message with id from the log.
func (s *Session) Remove(id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.log.Remove(id)
	if err != nil {
		return Message{}, err
	}
	if s.rec != nil {
		s.rec.MessageRemoved(s.ID, m)
	}
	return m, nil
}

// DismissActive removes the active interactive message, if any.
func (s *Session) DismissActive() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, ok := s.log.Active()
	if !ok {
		return Message{}, false
	}
	s.log.remove(active.ID)
	if s.rec != nil {
		s.rec.MessageRemoved(s.ID, active)
	}
	return active, true
}

// Lookup returns the message with id, which must be of kind.
func (s *Session) Lookup(id string, kind Kind) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.log.Find(id)
	if err != nil {
		return Message{}, err
	}
	if m.Kind != kind {
		return Message{}, ErrWrongKind
	}
	return m, nil
}

// Active returns the current interactive message.
func (s *Session) Active() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Active()
}

// Messages returns a copy of the visible log.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

func (s *Session) PendingText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingText
}

// SetPendingText records the utterance behind the form being opened.
func (s *Session) SetPendingText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingText = text
	if s.rec != nil {
		s.rec.PendingTextChanged(s.ID, text)
	}
}
