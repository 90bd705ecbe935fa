package conversation

// Log is the ordered list of visible messages. Interactive messages are
// removed once resolved; everything else is append-only. A Log is not safe for
// concurrent use; Session serializes access.
type Log struct {
	msgs []Message
}

// NewLog returns a log holding msgs in order.
func NewLog(msgs []Message) *Log {
	return &Log{msgs: append([]Message(nil), msgs...)}
}

// Append adds m at the end. If m is interactive, a still-active interactive
// message is removed first and returned.
func (l *Log) Append(m Message) (removed *Message) {
	if m.Interactive() {
		if active, ok := l.Active(); ok {
			l.remove(active.ID)
			removed = &active
		}
	}
	l.msgs = append(l.msgs, m)
	return removed
}

// Remove deletes the message with id and returns it.
func (l *Log) Remove(id string) (Message, error) {
	m, ok := l.remove(id)
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	return m, nil
}

func (l *Log) remove(id string) (Message, bool) {
	for i, m := range l.msgs {
		if m.ID == id {
			l.msgs = append(l.msgs[:i], l.msgs[i+1:]...)
			return m, true
		}
	}
	return Message{}, false
}

// Find returns the message with id.
func (l *Log) Find(id string) (Message, error) {
	for _, m := range l.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return Message{}, ErrMessageNotFound
}

// Active returns the latest unresolved form or confirm message.
func (l *Log) Active() (Message, bool) {
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Interactive() {
			return l.msgs[i], true
		}
	}
	return Message{}, false
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	return append([]Message(nil), l.msgs...)
}

func (l *Log) Len() int { return len(l.msgs) }
