package store

import (
	"context"
	"errors"
	"fmt"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"marcel.works/classpoll-go/app/model"
)

var (
	db         = "classpoll"
	tablePolls = "polls"
	tableUsers = "users"
)

// RethinkStore persists polls in RethinkDB. Response/vote mutations are
// expressed as single server-side update terms so each call is atomic per
// poll document.
type RethinkStore struct {
	session *r.Session
}

func NewRethinkStore(hosts []string) (*RethinkStore, error) {
	session, err := r.Connect(r.ConnectOpts{
		Addresses: hosts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rethinkdb: %w", err)
	}
	return &RethinkStore{session: session}, nil
}

func (s *RethinkStore) Insert(ctx context.Context, poll *model.Poll) error {
	_, err := r.DB(db).Table(tablePolls).Insert(poll).RunWrite(s.session, r.RunOpts{Context: ctx})
	return err
}

func (s *RethinkStore) FindByID(ctx context.Context, id string) (*model.Poll, error) {
	cursor, err := r.DB(db).Table(tablePolls).Get(id).Run(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var poll model.Poll
	if err := cursor.One(&poll); err != nil {
		if errors.Is(err, r.ErrEmptyResult) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &poll, nil
}

func (s *RethinkStore) FindActive(ctx context.Context) (*model.Poll, error) {
	cursor, err := r.DB(db).Table(tablePolls).
		Filter(r.Row.Field("isActive").Eq(true)).
		Run(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var poll model.Poll
	if err := cursor.One(&poll); err != nil {
		if errors.Is(err, r.ErrEmptyResult) {
			return nil, nil
		}
		return nil, err
	}
	return &poll, nil
}

func (s *RethinkStore) FindAll(ctx context.Context) ([]model.Poll, error) {
	cursor, err := r.DB(db).Table(tablePolls).
		OrderBy(r.Desc("createdAt")).
		Run(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var polls []model.Poll
	if err := cursor.All(&polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (s *RethinkStore) SetActive(ctx context.Context, id string, active bool) (*model.Poll, error) {
	wr, err := r.DB(db).Table(tablePolls).
		Get(id).
		Update(map[string]interface{}{"isActive": active}).
		RunWrite(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	if wr.Skipped > 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *RethinkStore) AddResponse(ctx context.Context, id string, resp model.Response) (*model.Poll, error) {
	options := r.Row.Field("options")
	wr, err := r.DB(db).Table(tablePolls).
		Get(id).
		Update(map[string]interface{}{
			"responses": r.Row.Field("responses").Append(resp),
			"options": options.ChangeAt(resp.SelectedOption,
				options.Nth(resp.SelectedOption).Merge(map[string]interface{}{
					"votes": options.Nth(resp.SelectedOption).Field("votes").Add(1),
				})),
		}).
		RunWrite(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	if wr.Skipped > 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *RethinkStore) RemoveResponse(ctx context.Context, id string, studentName string) (*model.Poll, error) {
	match := r.Row.Field("responses").Filter(map[string]interface{}{"studentName": studentName})
	index := match.Nth(0).Field("selectedOption")
	options := r.Row.Field("options")
	wr, err := r.DB(db).Table(tablePolls).
		Get(id).
		Update(r.Branch(
			match.Count().Gt(0),
			map[string]interface{}{
				"responses": r.Row.Field("responses").Filter(func(resp r.Term) r.Term {
					return resp.Field("studentName").Ne(studentName)
				}),
				"options": options.ChangeAt(index,
					options.Nth(index).Merge(map[string]interface{}{
						"votes": options.Nth(index).Field("votes").Sub(1),
					})),
			},
			map[string]interface{}{},
		)).
		RunWrite(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	if wr.Skipped > 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *RethinkStore) InsertUser(ctx context.Context, user model.User) error {
	_, err := r.DB(db).Table(tableUsers).Insert(user).RunWrite(s.session, r.RunOpts{Context: ctx})
	return err
}

func (s *RethinkStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	cursor, err := r.DB(db).Table(tableUsers).
		Filter(map[string]interface{}{"email": email}).
		Run(s.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var user model.User
	if err := cursor.One(&user); err != nil {
		if errors.Is(err, r.ErrEmptyResult) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
