package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

const redisKeyspace = "raidwatch"

// RedisStore - store backend for a shared Redis. Mutations run as
// WATCH-guarded optimistic transactions; a lost race is retried once
// and then reported as unavailable.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore - constructor over a connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) participantKey(chatID, userID int64) string {
	return fmt.Sprintf("%s:prt:%d:%d", redisKeyspace, chatID, userID)
}

func (s *RedisStore) indexKey(chatID int64) string {
	return fmt.Sprintf("%s:idx:%d", redisKeyspace, chatID)
}

func (s *RedisStore) serialKey(chatID int64) string {
	return fmt.Sprintf("%s:cnt:%d", redisKeyspace, chatID)
}

func (s *RedisStore) sessionKey(chatID int64) string {
	return fmt.Sprintf("%s:ses:%d", redisKeyspace, chatID)
}

// watch - run an optimistic transaction, retrying a lost race once.
func (s *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	err := retryConflict(func() error { return s.rdb.Watch(ctx, fn, keys...) }, redis.TxFailedErr)
	if err != nil {
		if errors.Is(err, tracking.ErrStoreUnavailable) {
			return err
		}

		return fmt.Errorf("watch: %w", err)
	}

	return nil
}

// Get - fetch one row.
func (s *RedisStore) Get(ctx context.Context, chatID, userID int64) (tracking.Participant, error) {
	data, err := s.rdb.Get(ctx, s.participantKey(chatID, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tracking.Participant{}, tracking.ErrNoParticipant
		}

		return tracking.Participant{}, fmt.Errorf("get: %w", err)
	}

	p := tracking.Participant{}
	if err := json.Unmarshal(data, &p); err != nil {
		return tracking.Participant{}, fmt.Errorf("unmarshal: %w", err)
	}

	return p, nil
}

// Upsert - atomic create-or-modify, serial drawn from a per-chat
// counter. The counter INCR lands before the MULTI block, so a lost
// WATCH race that gets retried consumes a value: gapless serials hold
// only while a single process serializes writers of a chat, which the
// engine's per-chat lock provides.
func (s *RedisStore) Upsert(ctx context.Context, chatID, userID int64, up tracking.Upsert) (tracking.Participant, error) {
	var p tracking.Participant

	key := s.participantKey(chatID, userID)

	fn := func(tx *redis.Tx) error {
		p = tracking.Participant{}

		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}

			applyUpsert(&p, up)
		case errors.Is(err, redis.Nil):
			serial, err := tx.Incr(ctx, s.serialKey(chatID)).Result()
			if err != nil {
				return fmt.Errorf("serial: %w", err)
			}

			p = newParticipant(chatID, userID, int(serial), up)
		default:
			return fmt.Errorf("get: %w", err)
		}

		out, err := json.Marshal(&p)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			pipe.SAdd(ctx, s.indexKey(chatID), strconv.FormatInt(userID, 10))

			return nil
		})

		return err
	}

	if err := s.watch(ctx, fn, key, s.serialKey(chatID)); err != nil {
		return tracking.Participant{}, fmt.Errorf("upsert: %w", err)
	}

	return p, nil
}

// List - serial-ordered rows of one chat.
func (s *RedisStore) List(ctx context.Context, chatID int64) ([]tracking.Participant, error) {
	members, err := s.rdb.SMembers(ctx, s.indexKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	list := make([]tracking.Participant, 0, len(members))

	for _, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}

		p, err := s.Get(ctx, chatID, userID)
		if err != nil {
			if errors.Is(err, tracking.ErrNoParticipant) {
				continue
			}

			return nil, err
		}

		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Serial < list[j].Serial })

	return list, nil
}

// Delete - remove one row. The serial counter does not go back.
func (s *RedisStore) Delete(ctx context.Context, chatID, userID int64) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.participantKey(chatID, userID))
		pipe.SRem(ctx, s.indexKey(chatID), strconv.FormatInt(userID, 10))

		return nil
	})
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}

	return nil
}

// DeleteChat - wipe a chat's rows, index and serial counter.
func (s *RedisStore) DeleteChat(ctx context.Context, chatID int64) error {
	fn := func(tx *redis.Tx) error {
		members, err := tx.SMembers(ctx, s.indexKey(chatID)).Result()
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}

		keys := make([]string, 0, len(members)+2)

		for _, member := range members {
			userID, err := strconv.ParseInt(member, 10, 64)
			if err != nil {
				continue
			}

			keys = append(keys, s.participantKey(chatID, userID))
		}

		keys = append(keys, s.indexKey(chatID), s.serialKey(chatID))

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)

			return nil
		})

		return err
	}

	if err := s.watch(ctx, fn, s.indexKey(chatID)); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	return nil
}

// GetSession - absent session reads as the zero value.
func (s *RedisStore) GetSession(ctx context.Context, chatID int64) (tracking.Session, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tracking.Session{}, nil
		}

		return tracking.Session{}, fmt.Errorf("session: %w", err)
	}

	session := tracking.Session{}
	if err := json.Unmarshal(data, &session); err != nil {
		return tracking.Session{}, fmt.Errorf("unmarshal: %w", err)
	}

	return session, nil
}

// SetSession - store session flags.
func (s *RedisStore) SetSession(ctx context.Context, session tracking.Session) error {
	data, err := json.Marshal(&session)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := s.rdb.Set(ctx, s.sessionKey(session.ChatID), data, 0).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}
