package storage

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"golang.org/x/crypto/pbkdf2"

	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

const (
	participantPrefix = "prt"
	sessionPrefix     = "ses"
	serialPrefix      = "cnt"

	chatKeySalt = "u3!Gather"
	chatKeyLen  = 13
)

// BadgerStore - participant and session rows as JSON values in a
// BadgerDB, every mutation inside one SSI transaction. A detected
// write conflict is retried once, then reported as unavailable.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore - constructor over an open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadger - open the database directory with our defaults.
func OpenBadger(dir string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return db, nil
}

// chatKey - deterministic per-chat key material.
func chatKey(prefix string, chatID int64) []byte {
	id := binary.BigEndian.AppendUint64([]byte{}, uint64(chatID))
	key := pbkdf2.Key(id, []byte(chatKeySalt), 1024, chatKeyLen, sha256.New)

	return append([]byte(prefix), key...)
}

func participantKey(chatID, userID int64) []byte {
	return binary.BigEndian.AppendUint64(chatKey(participantPrefix, chatID), uint64(userID))
}

// update - run a write transaction, retrying a conflict once.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := retryConflict(func() error { return s.db.Update(fn) }, badger.ErrConflict)
	if err != nil {
		if errors.Is(err, tracking.ErrStoreUnavailable) {
			return err
		}

		return fmt.Errorf("update: %w", err)
	}

	return nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}

	err = item.Value(func(data []byte) error {
		return json.Unmarshal(data, v)
	})
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}

	return nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := txn.SetEntry(badger.NewEntry(key, data)); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	return nil
}

// nextSerial - bump and return the chat's serial counter, inside the
// caller's transaction so two first sightings cannot share a number.
func nextSerial(txn *badger.Txn, chatID int64) (int, error) {
	key := chatKey(serialPrefix, chatID)
	serial := uint64(0)

	item, err := txn.Get(key)
	switch {
	case err == nil:
		err = item.Value(func(data []byte) error {
			if len(data) == 8 {
				serial = binary.BigEndian.Uint64(data)
			}

			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("value: %w", err)
		}
	case errors.Is(err, badger.ErrKeyNotFound):
	default:
		return 0, fmt.Errorf("get: %w", err)
	}

	serial++

	entry := badger.NewEntry(key, binary.BigEndian.AppendUint64([]byte{}, serial))
	if err := txn.SetEntry(entry); err != nil {
		return 0, fmt.Errorf("set: %w", err)
	}

	return int(serial), nil
}

// Get - fetch one row.
func (s *BadgerStore) Get(ctx context.Context, chatID, userID int64) (tracking.Participant, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Participant{}, err
	}

	p := tracking.Participant{}

	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, participantKey(chatID, userID), &p)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return tracking.Participant{}, tracking.ErrNoParticipant
		}

		return tracking.Participant{}, fmt.Errorf("participant: %w", err)
	}

	return p, nil
}

// Upsert - atomic create-or-modify, serial assigned in-transaction.
func (s *BadgerStore) Upsert(ctx context.Context, chatID, userID int64, up tracking.Upsert) (tracking.Participant, error) {
	p := tracking.Participant{}
	key := participantKey(chatID, userID)

	err := s.update(ctx, func(txn *badger.Txn) error {
		p = tracking.Participant{}

		err := getJSON(txn, key, &p)
		switch {
		case err == nil:
			applyUpsert(&p, up)
		case errors.Is(err, badger.ErrKeyNotFound):
			serial, err := nextSerial(txn, chatID)
			if err != nil {
				return fmt.Errorf("serial: %w", err)
			}

			p = newParticipant(chatID, userID, serial, up)
		default:
			return fmt.Errorf("participant: %w", err)
		}

		return setJSON(txn, key, &p)
	})
	if err != nil {
		return tracking.Participant{}, fmt.Errorf("upsert: %w", err)
	}

	return p, nil
}

// List - serial-ordered rows of one chat.
func (s *BadgerStore) List(ctx context.Context, chatID int64) ([]tracking.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var list []tracking.Participant

	prefix := chatKey(participantPrefix, chatID)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			p := tracking.Participant{}

			err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &p)
			})
			if err != nil {
				return fmt.Errorf("value: %w", err)
			}

			list = append(list, p)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Serial < list[j].Serial })

	return list, nil
}

// Delete - remove one row. The serial counter does not go back.
func (s *BadgerStore) Delete(ctx context.Context, chatID, userID int64) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(participantKey(chatID, userID)); err != nil {
			return fmt.Errorf("delete: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}

	return nil
}

// DeleteChat - wipe a chat's rows and serial counter wholesale.
func (s *BadgerStore) DeleteChat(ctx context.Context, chatID int64) error {
	prefix := chatKey(participantPrefix, chatID)

	err := s.update(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		var keys [][]byte

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
		}

		if err := txn.Delete(chatKey(serialPrefix, chatID)); err != nil {
			return fmt.Errorf("delete serial: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	return nil
}

// GetSession - absent session reads as the zero value.
func (s *BadgerStore) GetSession(ctx context.Context, chatID int64) (tracking.Session, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Session{}, err
	}

	session := tracking.Session{}

	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, chatKey(sessionPrefix, chatID), &session)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return tracking.Session{}, nil
		}

		return tracking.Session{}, fmt.Errorf("session: %w", err)
	}

	return session, nil
}

// SetSession - store session flags.
func (s *BadgerStore) SetSession(ctx context.Context, session tracking.Session) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, chatKey(sessionPrefix, session.ChatID), &session)
	})
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}
