package store

import (
	"context"
	"sort"
	"sync"

	"marcel.works/classpoll-go/app/model"
)

// MemoryStore is an in-process Store used by tests and single-node dev runs.
// It hands out deep copies so callers never share slices with stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	polls map[string]*model.Poll
	seq   map[string]int
	users map[string]model.User
	next  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		polls: make(map[string]*model.Poll),
		seq:   make(map[string]int),
		users: make(map[string]model.User),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, poll *model.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[poll.ID] = poll.Clone()
	s.next++
	s.seq[poll.ID] = s.next
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return poll.Clone(), nil
}

func (s *MemoryStore) FindActive(ctx context.Context) (*model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, poll := range s.polls {
		if poll.IsActive {
			return poll.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	polls := make([]model.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		polls = append(polls, *poll.Clone())
	}
	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].CreatedAt.After(polls[j].CreatedAt)
		}
		return s.seq[polls[i].ID] > s.seq[polls[j].ID]
	})
	return polls, nil
}

func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) (*model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	poll.IsActive = active
	return poll.Clone(), nil
}

func (s *MemoryStore) AddResponse(ctx context.Context, id string, resp model.Response) (*model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	poll.Responses = append(poll.Responses, resp)
	poll.Options[resp.SelectedOption].Votes++
	return poll.Clone(), nil
}

func (s *MemoryStore) RemoveResponse(ctx context.Context, id string, studentName string) (*model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	kept := poll.Responses[:0]
	for _, r := range poll.Responses {
		if r.StudentName == studentName {
			poll.Options[r.SelectedOption].Votes--
			continue
		}
		kept = append(kept, r)
	}
	poll.Responses = kept
	return poll.Clone(), nil
}

func (s *MemoryStore) InsertUser(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Email] = user
	return nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}
