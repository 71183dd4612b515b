package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

// MemoryStore - keyed in-memory container behind the same store
// interfaces, single-writer discipline via one mutex.
type MemoryStore struct {
	mu           sync.Mutex
	participants map[int64]map[int64]tracking.Participant
	sessions     map[int64]tracking.Session
	nextSerial   map[int64]int
}

// NewMemoryStore - constructor.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participants: make(map[int64]map[int64]tracking.Participant),
		sessions:     make(map[int64]tracking.Session),
		nextSerial:   make(map[int64]int),
	}
}

// Get - fetch one row.
func (m *MemoryStore) Get(ctx context.Context, chatID, userID int64) (tracking.Participant, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Participant{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[chatID][userID]
	if !ok {
		return tracking.Participant{}, tracking.ErrNoParticipant
	}

	return p, nil
}

// Upsert - atomic create-or-modify.
func (m *MemoryStore) Upsert(ctx context.Context, chatID, userID int64, up tracking.Upsert) (tracking.Participant, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Participant{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.participants[chatID]
	if !ok {
		chat = make(map[int64]tracking.Participant)
		m.participants[chatID] = chat
	}

	p, ok := chat[userID]
	if !ok {
		m.nextSerial[chatID]++
		p = newParticipant(chatID, userID, m.nextSerial[chatID], up)
	} else {
		applyUpsert(&p, up)
	}

	chat[userID] = p

	return p, nil
}

// List - serial-ordered rows of one chat.
func (m *MemoryStore) List(ctx context.Context, chatID int64) ([]tracking.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]tracking.Participant, 0, len(m.participants[chatID]))
	for _, p := range m.participants[chatID] {
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Serial < list[j].Serial })

	return list, nil
}

// Delete - remove one row. Serial numbering does not go back.
func (m *MemoryStore) Delete(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.participants[chatID], userID)

	return nil
}

// DeleteChat - wipe a chat wholesale and restart serial numbering.
func (m *MemoryStore) DeleteChat(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.participants, chatID)
	delete(m.nextSerial, chatID)

	return nil
}

// GetSession - absent session reads as the zero value.
func (m *MemoryStore) GetSession(ctx context.Context, chatID int64) (tracking.Session, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessions[chatID], nil
}

// SetSession - store session flags.
func (m *MemoryStore) SetSession(ctx context.Context, session tracking.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ChatID] = session

	return nil
}
