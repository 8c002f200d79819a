package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"marcel.works/classpoll-go/app/model"
)

func seedPoll(t *testing.T, s *MemoryStore, id string, createdAt time.Time, active bool) *model.Poll {
	t.Helper()
	poll := &model.Poll{
		ID:        id,
		Question:  "Q?",
		Options:   []model.Option{{Text: "A"}, {Text: "B"}},
		IsActive:  active,
		CreatedAt: createdAt,
		StartTime: createdAt,
		Timer:     60,
	}
	if err := s.Insert(context.Background(), poll); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return poll
}

func TestMemoryStoreFindByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", time.Now(), true)

	poll, err := s.FindByID(ctx, "p1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if poll.ID != "p1" {
		t.Errorf("got %s", poll.ID)
	}
	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", time.Now(), true)

	snapshot, _ := s.FindByID(ctx, "p1")
	snapshot.Options[0].Votes = 99
	snapshot.Responses = append(snapshot.Responses, model.Response{StudentName: "x"})

	fresh, _ := s.FindByID(ctx, "p1")
	if fresh.Options[0].Votes != 0 || len(fresh.Responses) != 0 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestMemoryStoreAddAndRemoveResponse(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", time.Now(), true)

	updated, err := s.AddResponse(ctx, "p1", model.Response{StudentName: "dana", SelectedOption: 1, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("AddResponse failed: %v", err)
	}
	if updated.Options[1].Votes != 1 || len(updated.Responses) != 1 {
		t.Errorf("unexpected state: %+v", updated)
	}

	removed, err := s.RemoveResponse(ctx, "p1", "dana")
	if err != nil {
		t.Fatalf("RemoveResponse failed: %v", err)
	}
	if removed.Options[1].Votes != 0 || len(removed.Responses) != 0 {
		t.Errorf("unexpected state after remove: %+v", removed)
	}

	// Removing an absent name leaves the poll untouched.
	same, err := s.RemoveResponse(ctx, "p1", "ghost")
	if err != nil {
		t.Fatalf("RemoveResponse of absent name failed: %v", err)
	}
	if len(same.Responses) != 0 || same.Options[0].Votes != 0 {
		t.Errorf("no-op remove mutated poll: %+v", same)
	}
}

func TestMemoryStoreFindActive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	poll, err := s.FindActive(ctx)
	if err != nil || poll != nil {
		t.Errorf("expected (nil, nil) on empty store, got (%v, %v)", poll, err)
	}

	seedPoll(t, s, "p1", time.Now(), false)
	seedPoll(t, s, "p2", time.Now(), true)

	active, err := s.FindActive(ctx)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active == nil || active.ID != "p2" {
		t.Errorf("expected p2, got %+v", active)
	}

	if _, err := s.SetActive(ctx, "p2", false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if active, _ := s.FindActive(ctx); active != nil {
		t.Errorf("expected no active poll, got %s", active.ID)
	}
}

func TestMemoryStoreFindAllOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	seedPoll(t, s, "oldest", base.Add(-2*time.Hour), false)
	seedPoll(t, s, "newest", base, false)
	seedPoll(t, s, "middle", base.Add(-time.Hour), false)

	polls, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	for i, id := range want {
		if polls[i].ID != id {
			t.Errorf("polls[%d] = %s, want %s", i, polls[i].ID, id)
		}
	}
}

func TestMemoryStoreUsers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.FindUserByEmail(ctx, "a@x.example"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.InsertUser(ctx, model.User{ID: "u1", Name: "A", Email: "a@x.example", Password: "hash"}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	user, err := s.FindUserByEmail(ctx, "a@x.example")
	if err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("got %s", user.ID)
	}
}
