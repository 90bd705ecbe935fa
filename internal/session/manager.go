// Package session keeps live chat sessions in memory and writes every change
// through to storage so a session survives eviction and restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/conversation"
	"github.com/kalambet/tutordesk/internal/storage"
)

const (
	defaultTTL   = 30 * time.Minute
	writeTimeout = 5 * time.Second
)

// Store is the persistence the Manager writes through to.
type Store interface {
	CreateSession(ctx context.Context, id string, createdAt time.Time) error
	GetSession(ctx context.Context, id string) (storage.SessionRecord, error)
	SetPendingText(ctx context.Context, sessionID, text string) error
	AppendMessage(ctx context.Context, m storage.MessageRecord) error
	ArchiveMessage(ctx context.Context, id string, removedAt time.Time) error
	ActiveMessages(ctx context.Context, sessionID string) ([]storage.MessageRecord, error)
}

// Manager hands out sessions by id. Idle sessions expire from memory after
// the TTL and are rebuilt from storage on next use. A session with a turn in
// flight is never dropped, so one id always maps to one *Session while the
// in-flight guard is held.
type Manager struct {
	cache  *cache.Cache
	store  Store
	logger *zap.Logger

	loadMu sync.Mutex

	liveMu sync.Mutex
	// live holds every session handed out and not yet evicted. It covers the
	// window where the cache reports an entry expired before the janitor has
	// removed it.
	live map[string]*conversation.Session
}

// NewManager creates a Manager. A zero ttl selects 30 minutes.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	m := &Manager{
		cache:  cache.New(ttl, ttl/2),
		store:  store,
		logger: zap.L(),
		live:   make(map[string]*conversation.Session),
	}
	m.cache.OnEvicted(m.evicted)
	return m
}

// Create starts and persists a new empty session.
func (m *Manager) Create(ctx context.Context) (*conversation.Session, error) {
	s := conversation.NewSession(uuid.NewString())
	if err := m.store.CreateSession(ctx, s.ID, s.CreatedAt); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.SetRecorder(&recorder{store: m.store, logger: m.logger})
	m.keep(s)
	return s, nil
}

// Get returns the session with id. Unknown ids yield storage.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*conversation.Session, error) {
	if s, ok := m.cached(id); ok {
		return s, nil
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if s, ok := m.cached(id); ok {
		return s, nil
	}
	if s, ok := m.lookupLive(id); ok {
		m.keep(s)
		return s, nil
	}

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.keep(s)
	return s, nil
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	return m.cache.ItemCount()
}

// Evict drops the in-memory copy of a session unless a turn is running on it.
func (m *Manager) Evict(id string) {
	m.cache.Delete(id)
}

func (m *Manager) keep(s *conversation.Session) {
	m.liveMu.Lock()
	m.live[s.ID] = s
	m.liveMu.Unlock()
	m.cache.Set(s.ID, s, cache.DefaultExpiration)
}

func (m *Manager) lookupLive(id string) (*conversation.Session, bool) {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	s, ok := m.live[id]
	return s, ok
}

// evicted runs after the cache drops an entry, on expiry or Evict.
func (m *Manager) evicted(id string, v any) {
	s := v.(*conversation.Session)
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	if s.InFlight() {
		m.cache.Set(id, s, cache.DefaultExpiration)
		return
	}
	if m.live[id] == s {
		delete(m.live, id)
	}
}

func (m *Manager) cached(id string) (*conversation.Session, bool) {
	x, found := m.cache.Get(id)
	if !found {
		return nil, false
	}
	s := x.(*conversation.Session)
	// Reset the expiry on every use.
	m.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

func (m *Manager) load(ctx context.Context, id string) (*conversation.Session, error) {
	rec, err := m.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	rows, err := m.store.ActiveMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages for session %s: %w", id, err)
	}
	msgs := make([]conversation.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := decodeMessage(row)
		if err != nil {
			m.logger.Error("skipping unreadable message", zap.String("session_id", id), zap.String("message_id", row.ID), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}

	s := conversation.Restore(rec.ID, rec.CreatedAt, msgs, rec.PendingText)
	s.SetRecorder(&recorder{store: m.store, logger: m.logger})
	m.logger.Debug("session restored", zap.String("session_id", id), zap.Int("messages", len(msgs)))
	return s, nil
}

func encodeMessage(sessionID string, msg conversation.Message) (storage.MessageRecord, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return storage.MessageRecord{}, err
	}
	return storage.MessageRecord{
		ID:          msg.ID,
		SessionID:   sessionID,
		Role:        string(msg.Role),
		Kind:        string(msg.Kind),
		PayloadJSON: string(payload),
		CreatedAt:   msg.CreatedAt,
	}, nil
}

func decodeMessage(row storage.MessageRecord) (conversation.Message, error) {
	var msg conversation.Message
	if err := json.Unmarshal([]byte(row.PayloadJSON), &msg); err != nil {
		return conversation.Message{}, fmt.Errorf("decoding payload: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return conversation.Message{}, err
	}
	return msg, nil
}

// recorder persists session changes. Failures are logged; the in-memory
// session stays authoritative for the rest of its life.
type recorder struct {
	store  Store
	logger *zap.Logger
}

func (r *recorder) MessageAppended(sessionID string, msg conversation.Message) {
	row, err := encodeMessage(sessionID, msg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		err = r.store.AppendMessage(ctx, row)
	}
	if err != nil {
		r.logger.Error("persisting message failed", zap.String("session_id", sessionID), zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (r *recorder) MessageRemoved(sessionID string, msg conversation.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.ArchiveMessage(ctx, msg.ID, time.Now()); err != nil {
		r.logger.Error("archiving message failed", zap.String("session_id", sessionID), zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (r *recorder) PendingTextChanged(sessionID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.SetPendingText(ctx, sessionID, text); err != nil {
		r.logger.Error("persisting pending text failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
