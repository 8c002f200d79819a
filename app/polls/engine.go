// Package polls holds the authoritative state machine for the single live
// classroom poll: creation, answer submission, kick-out, and timed or manual
// closure.
package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marcel.works/classpoll-go/app/broadcast"
	"marcel.works/classpoll-go/app/metrics"
	"marcel.works/classpoll-go/app/model"
	"marcel.works/classpoll-go/app/store"
	"marcel.works/classpoll-go/app/timers"
)

const (
	// DefaultTimerSeconds is the answer window applied when a create request
	// does not specify one.
	DefaultTimerSeconds = 60

	MinOptions = 2
	MaxOptions = 6
)

// Engine serializes all mutations per poll id: every read-modify-persist-
// publish sequence for one poll runs under that poll's mutex, so vote
// counters and response lists never race. Creation runs under a dedicated
// mutex to keep the at-most-one-active-poll invariant.
type Engine struct {
	store  store.Store
	timers *timers.Registry
	pub    broadcast.Publisher
	met    *metrics.Metrics
	log    *zap.Logger

	creating sync.Mutex

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(st store.Store, tm *timers.Registry, pub broadcast.Publisher, met *metrics.Metrics, log *zap.Logger) *Engine {
	return &Engine{
		store:  st,
		timers: tm,
		pub:    pub,
		met:    met,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing writers on one poll id. Entries are
// never evicted: ids are unique per process lifetime and tiny.
func (e *Engine) lockFor(pollID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[pollID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[pollID] = l
	}
	return l
}

// CreatePoll closes any currently active poll, persists a fresh active one,
// schedules its auto-close timer, and announces it to everyone.
func (e *Engine) CreatePoll(ctx context.Context, question string, options []string, timerSeconds int) (*model.Poll, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	if len(options) < MinOptions || len(options) > MaxOptions {
		return nil, fmt.Errorf("%w: polls need between %d and %d options", ErrValidation, MinOptions, MaxOptions)
	}
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return nil, fmt.Errorf("%w: option text must not be empty", ErrValidation)
		}
	}
	if timerSeconds < 0 {
		return nil, fmt.Errorf("%w: timer must not be negative", ErrValidation)
	}
	if timerSeconds == 0 {
		timerSeconds = DefaultTimerSeconds
	}

	e.creating.Lock()
	defer e.creating.Unlock()

	// The superseded poll flips to closed before the new poll becomes
	// observable. No poll-closed event: the poll-created event carries the
	// transition.
	prev, err := e.store.FindActive(ctx)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if prev != nil {
		lock := e.lockFor(prev.ID)
		lock.Lock()
		e.timers.Cancel(prev.ID)
		_, err = e.store.SetActive(ctx, prev.ID, false)
		lock.Unlock()
		if err != nil {
			return nil, e.storeErr(err)
		}
		e.log.Info("superseded active poll", zap.String("pollId", prev.ID))
	}

	now := time.Now()
	formatted := make([]model.Option, len(options))
	for i, opt := range options {
		formatted[i] = model.Option{Text: opt, Votes: 0}
	}
	poll := &model.Poll{
		ID:        uuid.NewString(),
		Question:  question,
		Options:   formatted,
		IsActive:  true,
		CreatedAt: now,
		StartTime: now,
		Timer:     timerSeconds,
		Responses: []model.Response{},
	}
	if err := e.store.Insert(ctx, poll); err != nil {
		return nil, e.storeErr(err)
	}

	pollID := poll.ID
	e.timers.Schedule(pollID, time.Duration(timerSeconds)*time.Second, func() {
		if _, err := e.ClosePoll(context.Background(), pollID); err != nil {
			e.log.Error("auto-close failed", zap.String("pollId", pollID), zap.Error(err))
		}
	})

	e.met.PollsCreated.Inc()
	e.publish(ctx, broadcast.NewEvent(broadcast.TypePollCreated, poll.ID, broadcast.AudienceAll, poll))
	e.log.Info("poll created",
		zap.String("pollId", poll.ID),
		zap.Int("options", len(poll.Options)),
		zap.Int("timerSeconds", timerSeconds))
	return poll, nil
}

// GetCurrentPoll returns the active poll, or nil when there is none.
func (e *Engine) GetCurrentPoll(ctx context.Context) (*model.Poll, error) {
	poll, err := e.store.FindActive(ctx)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return poll, nil
}

// GetPoll returns a poll by id regardless of its activity flag.
func (e *Engine) GetPoll(ctx context.Context, pollID string) (*model.Poll, error) {
	poll, err := e.store.FindByID(ctx, pollID)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return poll, nil
}

// SubmitAnswer records one student's answer on the active poll. The append
// and vote increment are applied as one atomic store call under the poll's
// write lock.
func (e *Engine) SubmitAnswer(ctx context.Context, pollID string, optionIndex int, studentName string) (*model.Poll, error) {
	if strings.TrimSpace(studentName) == "" {
		e.met.AnswersRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: student name must not be empty", ErrValidation)
	}

	lock := e.lockFor(pollID)
	lock.Lock()
	defer lock.Unlock()

	poll, err := e.store.FindByID(ctx, pollID)
	if err != nil {
		e.met.AnswersRejected.WithLabelValues("not_found").Inc()
		return nil, e.storeErr(err)
	}
	if !poll.IsActive {
		e.met.AnswersRejected.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: poll is not active", ErrNotFound)
	}
	if poll.ResponseFor(studentName) != nil {
		e.met.AnswersRejected.WithLabelValues("already_answered").Inc()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAnswered, studentName)
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		e.met.AnswersRejected.WithLabelValues("invalid_option").Inc()
		return nil, fmt.Errorf("%w: index %d on %d options", ErrInvalidOption, optionIndex, len(poll.Options))
	}

	updated, err := e.store.AddResponse(ctx, pollID, model.Response{
		StudentName:    studentName,
		SelectedOption: optionIndex,
		Timestamp:      time.Now(),
	})
	if err != nil {
		e.met.AnswersRejected.WithLabelValues("store").Inc()
		return nil, e.storeErr(err)
	}

	e.met.AnswersAccepted.WithLabelValues(pollID).Inc()
	e.publish(ctx, broadcast.NewEvent(broadcast.TypeAnswerSubmitted, pollID, broadcast.AudienceRoom,
		broadcast.AnswerSubmittedPayload{
			PollID:         pollID,
			StudentName:    studentName,
			SelectedOption: optionIndex,
		}))
	e.log.Info("answer submitted",
		zap.String("pollId", pollID),
		zap.String("student", studentName),
		zap.Int("option", optionIndex))
	return updated, nil
}

// ClosePoll flips the poll to closed. Idempotent: closing an already closed
// poll returns its current state and publishes nothing, which also absorbs an
// auto-close timer firing after a manual close (and the other way around).
func (e *Engine) ClosePoll(ctx context.Context, pollID string) (*model.Poll, error) {
	lock := e.lockFor(pollID)
	lock.Lock()
	defer lock.Unlock()

	poll, err := e.store.FindByID(ctx, pollID)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if !poll.IsActive {
		return poll, nil
	}

	e.timers.Cancel(pollID)
	updated, err := e.store.SetActive(ctx, pollID, false)
	if err != nil {
		return nil, e.storeErr(err)
	}

	e.publish(ctx, broadcast.NewEvent(broadcast.TypePollClosed, pollID, broadcast.AudienceAll,
		broadcast.PollClosedPayload{PollID: pollID}))
	e.log.Info("poll closed", zap.String("pollId", pollID))
	return updated, nil
}

// KickOutParticipant removes a student's response and frees their name for a
// fresh submission. A name with nothing to remove is a silent success.
func (e *Engine) KickOutParticipant(ctx context.Context, pollID, studentName string) (*model.Poll, error) {
	lock := e.lockFor(pollID)
	lock.Lock()
	defer lock.Unlock()

	poll, err := e.store.FindByID(ctx, pollID)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if poll.ResponseFor(studentName) == nil {
		return poll, nil
	}

	updated, err := e.store.RemoveResponse(ctx, pollID, studentName)
	if err != nil {
		return nil, e.storeErr(err)
	}

	e.publish(ctx, broadcast.NewEvent(broadcast.TypeStudentKicked, pollID, broadcast.AudienceAll,
		broadcast.StudentKickedPayload{PollID: pollID, StudentName: studentName}))
	e.log.Info("student kicked", zap.String("pollId", pollID), zap.String("student", studentName))
	return updated, nil
}

// ListHistory returns every poll, newest first.
func (e *Engine) ListHistory(ctx context.Context) ([]model.Poll, error) {
	polls, err := e.store.FindAll(ctx)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return polls, nil
}

func (e *Engine) publish(ctx context.Context, ev broadcast.Event) {
	e.met.EventsPublished.WithLabelValues(ev.Type).Inc()
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn("event publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (e *Engine) storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no such poll", ErrNotFound)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
