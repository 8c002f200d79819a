// Package sessions tracks connected participants and fans broadcast events
// out to them. It owns the connection-to-identity mapping; the poll engine
// never sees individual sessions.
package sessions

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"marcel.works/classpoll-go/app/broadcast"
	"marcel.works/classpoll-go/app/metrics"
)

const sendBuffer = 32

// Session is one connected participant. The transport layer drains Messages
// into the actual connection.
type Session struct {
	ID     string
	Name   string
	Role   string
	PollID string
	send   chan []byte
}

// Messages returns the outbound frame channel. It is closed on Unregister.
func (s *Session) Messages() <-chan []byte {
	return s.send
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.Logger
	met      *metrics.Metrics
}

func NewRegistry(log *zap.Logger, met *metrics.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
		met:      met,
	}
}

// Register creates a session for a new connection.
func (r *Registry) Register(name, role string) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		Name: name,
		Role: role,
		send: make(chan []byte, sendBuffer),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.met.ConnectedSessions.Inc()
	r.log.Info("session registered", zap.String("sessionId", s.ID), zap.String("name", name), zap.String("role", role))
	return s
}

// Identify updates the declared identity of an existing session.
func (r *Registry) Identify(sessionID, name, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.Name = name
		s.Role = role
	}
}

// Join moves the session into a poll room.
func (r *Registry) Join(sessionID, pollID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.PollID = pollID
	}
}

// Leave clears the session's room without disconnecting it.
func (r *Registry) Leave(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.PollID = ""
	}
}

// Unregister drops the session and closes its outbound channel. Poll state is
// untouched: a disconnected student's response stays recorded.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	close(s.send)
	r.met.ConnectedSessions.Dec()
	r.log.Info("session unregistered", zap.String("sessionId", sessionID))
}

// Count reports the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// InRoom counts sessions currently joined to pollID.
func (r *Registry) InRoom(pollID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.PollID == pollID {
			n++
		}
	}
	return n
}

// Publish implements broadcast.Publisher. Frames are delivered best-effort:
// a session whose buffer is full misses the event and must re-sync from
// GetCurrentPoll after reconnecting.
func (r *Registry) Publish(ctx context.Context, ev broadcast.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var kicked []byte
	var kickedName string
	if data, ok := ev.Data.(broadcast.StudentKickedPayload); ok && ev.Type == broadcast.TypeStudentKicked {
		kickedName = data.StudentName
		notice := broadcast.Event{
			Type:      broadcast.TypeKicked,
			PollID:    ev.PollID,
			Data:      data,
			Timestamp: ev.Timestamp,
		}
		kicked, _ = json.Marshal(notice)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if ev.Audience == broadcast.AudienceRoom && s.PollID != ev.PollID {
			continue
		}
		r.trySend(s, payload, ev.Type)
		if kicked != nil && s.Name == kickedName {
			r.trySend(s, kicked, broadcast.TypeKicked)
		}
	}
	return nil
}

func (r *Registry) trySend(s *Session, payload []byte, evType string) {
	select {
	case s.send <- payload:
	default:
		r.log.Warn("dropping event for slow session",
			zap.String("sessionId", s.ID),
			zap.String("type", evType))
	}
}
