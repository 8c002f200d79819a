package store

import (
	"context"
	"errors"

	"marcel.works/classpoll-go/app/model"
)

var (
	// ErrNotFound is returned when a poll or user id does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Store is the durable repository for polls and user accounts. All poll
// mutations that touch responses and vote counters must be applied as a
// single atomic update per poll id.
type Store interface {
	Insert(ctx context.Context, poll *model.Poll) error
	FindByID(ctx context.Context, id string) (*model.Poll, error)
	// FindActive returns the poll whose isActive flag is set, or (nil, nil)
	// when there is none.
	FindActive(ctx context.Context) (*model.Poll, error)
	// FindAll returns every poll ordered by creation time, newest first.
	FindAll(ctx context.Context) ([]model.Poll, error)
	SetActive(ctx context.Context, id string, active bool) (*model.Poll, error)
	// AddResponse appends the response and increments the selected option's
	// vote counter in one atomic call.
	AddResponse(ctx context.Context, id string, resp model.Response) (*model.Poll, error)
	// RemoveResponse deletes the named student's response and decrements the
	// corresponding vote counter. Removing a name that never answered is a
	// no-op returning the unchanged poll.
	RemoveResponse(ctx context.Context, id string, studentName string) (*model.Poll, error)

	InsertUser(ctx context.Context, user model.User) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}
