package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/encoding/json"

	"marcel.works/classpoll-go/app/model"
)

const (
	keyActivePoll  = "classpoll:active"
	keyPollsByTime = "classpoll:polls"
	maxTxRetries   = 5
)

func pollKey(id string) string    { return "classpoll:poll:" + id }
func userKey(email string) string { return "classpoll:user:" + email }

// RedisStore keeps each poll as a JSON blob. Read-modify-write mutations run
// inside WATCH transactions so concurrent writers on the same poll retry
// instead of clobbering each other.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, auth string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: auth,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Insert(ctx context.Context, poll *model.Poll) error {
	payload, err := json.Marshal(poll)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, pollKey(poll.ID), payload, 0)
	pipe.ZAdd(ctx, keyPollsByTime, &redis.Z{
		Score:  float64(poll.CreatedAt.UnixNano()),
		Member: poll.ID,
	})
	if poll.IsActive {
		pipe.Set(ctx, keyActivePoll, poll.ID, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*model.Poll, error) {
	payload, err := s.client.Get(ctx, pollKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var poll model.Poll
	if err := json.Unmarshal([]byte(payload), &poll); err != nil {
		return nil, err
	}
	return &poll, nil
}

func (s *RedisStore) FindActive(ctx context.Context) (*model.Poll, error) {
	id, err := s.client.Get(ctx, keyActivePoll).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	poll, err := s.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return poll, err
}

func (s *RedisStore) FindAll(ctx context.Context) ([]model.Poll, error) {
	ids, err := s.client.ZRevRange(ctx, keyPollsByTime, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	polls := make([]model.Poll, 0, len(ids))
	for _, id := range ids {
		poll, err := s.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		polls = append(polls, *poll)
	}
	return polls, nil
}

func (s *RedisStore) SetActive(ctx context.Context, id string, active bool) (*model.Poll, error) {
	return s.update(ctx, id, func(poll *model.Poll) {
		poll.IsActive = active
	}, func(pipe redis.Pipeliner) {
		if active {
			pipe.Set(ctx, keyActivePoll, id, 0)
		} else {
			pipe.Del(ctx, keyActivePoll)
		}
	})
}

func (s *RedisStore) AddResponse(ctx context.Context, id string, resp model.Response) (*model.Poll, error) {
	return s.update(ctx, id, func(poll *model.Poll) {
		poll.Responses = append(poll.Responses, resp)
		poll.Options[resp.SelectedOption].Votes++
	}, nil)
}

func (s *RedisStore) RemoveResponse(ctx context.Context, id string, studentName string) (*model.Poll, error) {
	return s.update(ctx, id, func(poll *model.Poll) {
		kept := poll.Responses[:0]
		for _, r := range poll.Responses {
			if r.StudentName == studentName {
				poll.Options[r.SelectedOption].Votes--
				continue
			}
			kept = append(kept, r)
		}
		poll.Responses = kept
	}, nil)
}

// update applies mutate to the stored poll inside a WATCH transaction,
// retrying on contention. extra, when set, adds commands to the same
// transaction pipeline.
func (s *RedisStore) update(ctx context.Context, id string, mutate func(*model.Poll), extra func(redis.Pipeliner)) (*model.Poll, error) {
	key := pollKey(id)
	var updated *model.Poll

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var poll model.Poll
		if err := json.Unmarshal([]byte(payload), &poll); err != nil {
			return err
		}
		mutate(&poll)
		outbound, err := json.Marshal(&poll)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, outbound, 0)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		if err == nil {
			updated = &poll
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("redis: poll %s update contention", id)
}

func (s *RedisStore) InsertUser(ctx context.Context, user model.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKey(user.Email), payload, 0).Err()
}

func (s *RedisStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	payload, err := s.client.Get(ctx, userKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
