// Package broadcast defines the event contract between the poll engine and
// whatever transports fan events out to clients.
package broadcast

import (
	"context"
	"errors"
	"time"
)

// Event types published by the core.
const (
	TypePollCreated     = "poll-created"
	TypeResultsUpdated  = "results-updated"
	TypePollClosed      = "poll-closed"
	TypeAnswerSubmitted = "answer-submitted"
	TypeStudentKicked   = "student-kicked"

	// TypeKicked is the targeted frame the session registry delivers only to
	// the removed participant's own connections.
	TypeKicked = "kicked"
)

type Audience int

const (
	// AudienceAll delivers to every connected session.
	AudienceAll Audience = iota
	// AudienceRoom delivers only to sessions joined to the event's poll.
	AudienceRoom
)

type Event struct {
	Type      string      `json:"type"`
	PollID    string      `json:"pollId,omitempty"`
	Audience  Audience    `json:"-"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type AnswerSubmittedPayload struct {
	PollID         string `json:"pollId"`
	StudentName    string `json:"studentName"`
	SelectedOption int    `json:"selectedOption"`
}

type StudentKickedPayload struct {
	PollID      string `json:"pollId"`
	StudentName string `json:"studentName"`
}

type PollClosedPayload struct {
	PollID string `json:"pollId"`
}

// NewEvent stamps the event with the publication time.
func NewEvent(typ, pollID string, audience Audience, data interface{}) Event {
	return Event{
		Type:      typ,
		PollID:    pollID,
		Audience:  audience,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Publisher delivers an event to an audience. Delivery is best-effort: a
// failing subscriber must not fail the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to each member in order. Per-poll ordering holds because
// the engine publishes synchronously inside its per-poll critical section.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, pub := range f {
		if err := pub.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
