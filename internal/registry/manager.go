package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/studiogamma/centralino/internal/domain"
)

var ErrNotFound = errors.New("call session not found")

// Record maps an external call identifier to its accumulated turn count and
// the orchestrator's context blob. It holds no durable state: losing the
// registry loses only in-flight calls, never committed appointments.
type Record struct {
	SessionID      string         `json:"session_id"`
	TurnCount      int            `json:"turn_count"`
	StartedAt      time.Time      `json:"started_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Context        domain.Context `json:"context"`
}

type Manager struct {
	mu                sync.RWMutex
	records           map[string]*Record
	inactivityTimeout time.Duration
	onExpire          func(*Record)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 5 * time.Minute
	}
	return &Manager{
		records:           make(map[string]*Record),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// GetOrCreate returns the record for a session, initializing it on first touch.
func (m *Manager) GetOrCreate(sessionID string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[sessionID]; ok {
		return clone(rec)
	}
	now := time.Now().UTC()
	rec := &Record{
		SessionID:      sessionID,
		TurnCount:      0,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.records[sessionID] = rec
	return clone(rec)
}

// Update replaces the stored context wholesale and counts the turn. Merging
// context happens inside the orchestrator, never at this layer.
func (m *Manager) Update(sessionID string, ctx domain.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return ErrNotFound
	}
	rec.TurnCount++
	rec.Context = ctx.Clone()
	rec.LastActivityAt = time.Now().UTC()
	return nil
}

// End removes the record and returns its final state.
func (m *Manager) End(sessionID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.records, sessionID)
	return clone(rec), nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evictInactive()
			}
		}
	}()
}

func (m *Manager) evictInactive() {
	now := time.Now().UTC()
	var evicted []*Record

	m.mu.Lock()
	for id, rec := range m.records {
		if now.Sub(rec.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		evicted = append(evicted, clone(rec))
		delete(m.records, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, rec := range evicted {
			hook(rec)
		}
	}
}

func clone(rec *Record) *Record {
	c := *rec
	c.Context = rec.Context.Clone()
	return &c
}
