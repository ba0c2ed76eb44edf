// Package session implements §4.I's per-connection state and the
// world's tick loop: one Session binds a live connection to an Avatar
// entity and has its pending client updates flushed once per tick rather than immediately per update.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehrlich-b/mudcore/internal/lang/vm"
	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/world/clientupdate"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
)

// Conn is the narrow transport surface a Session needs; satisfied by
// *wstransport.Conn. Kept as an interface here so session doesn't import
// the transport package (which would otherwise need to import session
// back for the dispatch callback).
type Conn interface {
	WriteUpdates(ctx context.Context, updates []clientupdate.Update) error
	Close(reason string)
}

// Dispatcher runs one parsed command line against a session's avatar. The
// concrete implementation lives in internal/game, kept as an interface
// here to avoid session -> game -> session import cycles.
type Dispatcher interface {
	Dispatch(s *Session, line string)
}

// Session is one connected player's live state.
type Session struct {
	// ID uniquely identifies this connection for log correlation; it is
	// not persisted and has no meaning across
	// a disconnect.
	ID     uuid.UUID
	Avatar *entity.Entity
	conn   Conn

	mu sync.Mutex
}

// New binds conn to avatar, wiring avatar.Session so script code and
// dispatch handlers can send text/updates back without importing this
// package.
func New(conn Conn, avatar *entity.Entity) *Session {
	s := &Session{ID: uuid.New(), Avatar: avatar, conn: conn}
	avatar.Session = s
	return s
}

// SendText implements entity.Session.
func (s *Session) SendText(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Avatar.EnqueueUpdate(clientupdate.ShowText{Text: msg})
}

// SendError delivers a player-facing command failure (§7.3): distinct
// from SendText so the client can style it as an error, never the raw
// internal error string a handler or the VM produced.
func (s *Session) SendError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Avatar.EnqueueUpdate(clientupdate.ShowError{Text: msg})
}

// SendUpdates implements entity.Session.
func (s *Session) SendUpdates(updates []clientupdate.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Avatar.ClientUpdates = append(s.Avatar.ClientUpdates, updates...)
}

// Disconnect cancels any in-flight activity and clears a pending quest
// offer, per §5: neither should survive past the connection that started
// them.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Avatar.Activity != nil {
		if s.Avatar.Activity.Cancel != nil {
			s.Avatar.Activity.Cancel()
		}
		s.Avatar.Activity = nil
	}
	s.Avatar.Offer = nil
	s.Avatar.Session = nil
}

// flush drains and sends this avatar's pending updates, if any.
func (s *Session) flush(ctx context.Context) {
	s.mu.Lock()
	updates := s.Avatar.ClientUpdates
	s.Avatar.ClientUpdates = nil
	s.mu.Unlock()
	if len(updates) == 0 {
		return
	}
	if err := s.conn.WriteUpdates(ctx, updates); err != nil {
		logx.Warn("session: flush failed", "session", s.ID, "err", err)
	}
}

// Manager owns the live session set and the world tick loop: the single
// place per §5 that schedules when queued updates actually reach a
// client.
type Manager struct {
	mu       sync.Mutex
	sessions map[*Session]bool
	vm       *vm.VM
	interval time.Duration
}

func NewManager(v *vm.VM, tickInterval time.Duration) *Manager {
	return &Manager{sessions: map[*Session]bool{}, vm: v, interval: tickInterval}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s] = true
}

func (m *Manager) Remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s)
}

// Run drives the tick loop until ctx is canceled, flushing every
// connected session's pending updates once per tick.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.flushAll(ctx)
		}
	}
}

func (m *Manager) flushAll(ctx context.Context) {
	m.mu.Lock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.Unlock()
	for _, s := range snapshot {
		s.flush(ctx)
	}
}
