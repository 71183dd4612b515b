package tracking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/raidwatch/raidwatch-tgbot/storage"
	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

const testChat = int64(-100500)

func newTestEngine(t *testing.T) (*tracking.Engine, *storage.MemoryStore) {
	t.Helper()

	st := storage.NewMemoryStore()

	engine := tracking.NewEngine(st, st, tracking.Config{
		ExcludedHandles: []string{"mod_account", "@OtherMod"},
	})

	return engine, st
}

func linkMessage(userID int64, handle, link string) tracking.Message {
	return tracking.Message{
		ChatID: testChat,
		UserID: userID,
		Name:   fmt.Sprintf("User %d", userID),
		Handle: handle,
		Text:   link,
		Entities: []tracking.LinkEntity{
			{Kind: tracking.EntityURL, Offset: 0, Length: len([]rune(link))},
		},
	}
}

func textMessage(userID int64, handle, text string) tracking.Message {
	return tracking.Message{
		ChatID: testChat,
		UserID: userID,
		Name:   fmt.Sprintf("User %d", userID),
		Handle: handle,
		Text:   text,
	}
}

func TestLinkCreatesParticipant(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	result := engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice?x=1"))

	if result.Kind != tracking.ResultLinkRecorded {
		t.Fatalf("kind = %d, want ResultLinkRecorded", result.Kind)
	}

	if result.LinkCount != 1 {
		t.Errorf("link count = %d, want 1", result.LinkCount)
	}

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.Serial != 1 || p.LinkCount != 1 || p.SecondaryHandle != "alice" || p.Status != tracking.StatusUnsafe {
		t.Errorf("participant = %+v", p)
	}
}

func TestExcludedUserInvisible(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	messages := []tracking.Message{
		linkMessage(7, "mod_account", "https://x.com/mod"),
		linkMessage(7, "Mod_Account", "https://x.com/mod"),
		textMessage(7, "othermod", "all done"),
	}

	for _, msg := range messages {
		result := engine.HandleMessage(ctx, msg)
		if result.Kind != tracking.ResultNoOp {
			t.Errorf("kind = %d, want ResultNoOp", result.Kind)
		}
	}

	if _, err := st.Get(ctx, testChat, 7); err != tracking.ErrNoParticipant {
		t.Errorf("get err = %v, want ErrNoParticipant", err)
	}
}

func TestLinkCountMonotonic(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	const n = 25

	for i := 0; i < n; i++ {
		engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))
	}

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.LinkCount != n {
		t.Errorf("link count = %d, want %d", p.LinkCount, n)
	}
}

func TestConcurrentFirstSightings(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	const users = 50

	var wg sync.WaitGroup

	for i := int64(1); i <= users; i++ {
		wg.Add(1)

		go func(userID int64) {
			defer wg.Done()

			engine.HandleMessage(ctx, linkMessage(userID, fmt.Sprintf("u%d", userID),
				fmt.Sprintf("https://x.com/u%d", userID)))
		}(i)
	}

	wg.Wait()

	list, err := st.List(ctx, testChat)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(list) != users {
		t.Fatalf("participants = %d, want %d", len(list), users)
	}

	seen := make(map[int]bool, users)

	for _, p := range list {
		if p.Serial < 1 || p.Serial > users {
			t.Errorf("serial %d out of range 1..%d", p.Serial, users)
		}

		if seen[p.Serial] {
			t.Errorf("duplicate serial %d", p.Serial)
		}

		seen[p.Serial] = true
	}
}

func TestStickySecondaryHandle(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))
	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://example.com/elsewhere"))

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.SecondaryHandle != "alice" {
		t.Errorf("secondary handle = %q, want %q", p.SecondaryHandle, "alice")
	}

	if p.LinkCount != 2 {
		t.Errorf("link count = %d, want 2", p.LinkCount)
	}
}

func TestRawLinkFallback(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://example.com/post/1"))

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.SecondaryHandle != "https://example.com/post/1" {
		t.Errorf("secondary handle = %q, want raw link", p.SecondaryHandle)
	}
}

func TestCompletionFlow(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

	// tracking disabled: completion words are inert
	result := engine.HandleMessage(ctx, textMessage(1, "alice_tg", "all done"))
	if result.Kind != tracking.ResultNoOp {
		t.Fatalf("kind = %d, want ResultNoOp while disabled", result.Kind)
	}

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	result = engine.HandleMessage(ctx, textMessage(1, "alice_tg", "all done"))
	if result.Kind != tracking.ResultCompletionRecorded {
		t.Fatalf("kind = %d, want ResultCompletionRecorded", result.Kind)
	}

	if result.SecondaryHandle != "alice" {
		t.Errorf("secondary handle = %q, want %q", result.SecondaryHandle, "alice")
	}

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.AdCount != 1 || p.Status != tracking.StatusSafe {
		t.Errorf("participant = %+v", p)
	}
}

func TestCompletionRequiresTrackedUser(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	result := engine.HandleMessage(ctx, textMessage(9, "bob_tg", "done"))
	if result.Kind != tracking.ResultNoOp {
		t.Errorf("kind = %d, want ResultNoOp", result.Kind)
	}

	if _, err := st.Get(ctx, testChat, 9); err != tracking.ErrNoParticipant {
		t.Errorf("get err = %v, want ErrNoParticipant", err)
	}
}

func TestNonMatchingTextKeepsCounters(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	result := engine.HandleMessage(ctx, textMessage(1, "alice_tg", "alldone123"))
	if result.Kind != tracking.ResultNoOp {
		t.Errorf("kind = %d, want ResultNoOp", result.Kind)
	}

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.AdCount != 0 || p.LinkCount != 1 || p.Status != tracking.StatusUnsafe {
		t.Errorf("participant = %+v", p)
	}
}

func TestLinkForcesUnsafeAgain(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	engine.HandleMessage(ctx, textMessage(1, "alice_tg", "done"))

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.Status != tracking.StatusUnsafe {
		t.Errorf("status = %q, want unsafe after a new link", p.Status)
	}

	if p.AdCount != 1 {
		t.Errorf("ad count = %d, want 1 preserved", p.AdCount)
	}
}

func TestOverride(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	engine.HandleMessage(ctx, textMessage(1, "alice_tg", "done"))

	result, err := engine.Override(ctx, testChat, 1, tracking.StatusUnsafe)
	if err != nil {
		t.Fatalf("override: %v", err)
	}

	if result.Kind != tracking.ResultStatusChanged || result.From != tracking.StatusSafe || result.To != tracking.StatusUnsafe {
		t.Errorf("result = %+v", result)
	}

	p, err := st.Get(ctx, testChat, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.AdCount != 0 || p.Status != tracking.StatusUnsafe {
		t.Errorf("participant = %+v", p)
	}

	if p.LinkCount != 1 || p.SecondaryHandle != "alice" {
		t.Errorf("override must not touch links or handle: %+v", p)
	}
}

func TestOverrideUnknownUser(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Override(context.Background(), testChat, 404, tracking.StatusUnsafe)
	if err != nil {
		t.Fatalf("override: %v", err)
	}

	if result.Kind != tracking.ResultNoOp {
		t.Errorf("kind = %d, want ResultNoOp", result.Kind)
	}
}

func TestOpenSessionClearsAll(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))
	engine.HandleMessage(ctx, linkMessage(2, "bob_tg", "https://x.com/bob"))

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	if err := engine.OpenSession(ctx, testChat); err != nil {
		t.Fatalf("open session: %v", err)
	}

	list, err := st.List(ctx, testChat)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(list) != 0 {
		t.Errorf("participants after reset = %d, want 0", len(list))
	}

	session, err := st.GetSession(ctx, testChat)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	if session.TrackingEnabled {
		t.Error("tracking must be disabled after reset")
	}

	if session.StartedAt.IsZero() {
		t.Error("session start time must be set")
	}

	// serial numbering restarts
	engine.HandleMessage(ctx, linkMessage(3, "carol_tg", "https://x.com/carol"))

	p, err := st.Get(ctx, testChat, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.Serial != 1 {
		t.Errorf("serial = %d, want 1 after reset", p.Serial)
	}
}

// flakyStore - memory store whose participant or session side can be
// switched to fail, for exercising failure containment.
type flakyStore struct {
	*storage.MemoryStore
	failParticipants bool
	failSessions     bool
}

func (f *flakyStore) Get(ctx context.Context, chatID, userID int64) (tracking.Participant, error) {
	if f.failParticipants {
		return tracking.Participant{}, tracking.ErrStoreUnavailable
	}

	return f.MemoryStore.Get(ctx, chatID, userID)
}

func (f *flakyStore) Upsert(ctx context.Context, chatID, userID int64, up tracking.Upsert) (tracking.Participant, error) {
	if f.failParticipants {
		return tracking.Participant{}, tracking.ErrStoreUnavailable
	}

	return f.MemoryStore.Upsert(ctx, chatID, userID, up)
}

func (f *flakyStore) DeleteChat(ctx context.Context, chatID int64) error {
	if f.failParticipants {
		return tracking.ErrStoreUnavailable
	}

	return f.MemoryStore.DeleteChat(ctx, chatID)
}

func (f *flakyStore) GetSession(ctx context.Context, chatID int64) (tracking.Session, error) {
	if f.failSessions {
		return tracking.Session{}, tracking.ErrStoreUnavailable
	}

	return f.MemoryStore.GetSession(ctx, chatID)
}

func (f *flakyStore) SetSession(ctx context.Context, session tracking.Session) error {
	if f.failSessions {
		return tracking.ErrStoreUnavailable
	}

	return f.MemoryStore.SetSession(ctx, session)
}

func newFlakyEngine() (*tracking.Engine, *flakyStore) {
	st := &flakyStore{MemoryStore: storage.NewMemoryStore()}

	return tracking.NewEngine(st, st, tracking.Config{}), st
}

func TestHandleMessageContainsStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("link path collapses to noop", func(t *testing.T) {
		engine, st := newFlakyEngine()
		st.failParticipants = true

		result := engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))
		if result.Kind != tracking.ResultNoOp {
			t.Errorf("kind = %d, want ResultNoOp", result.Kind)
		}
	})

	t.Run("session read failure collapses to noop", func(t *testing.T) {
		engine, st := newFlakyEngine()
		st.failSessions = true

		result := engine.HandleMessage(ctx, textMessage(1, "alice_tg", "done"))
		if result.Kind != tracking.ResultNoOp {
			t.Errorf("kind = %d, want ResultNoOp", result.Kind)
		}
	})

	t.Run("completion path collapses to noop", func(t *testing.T) {
		engine, st := newFlakyEngine()

		engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

		if err := engine.SetTracking(ctx, testChat, true); err != nil {
			t.Fatalf("set tracking: %v", err)
		}

		st.failParticipants = true

		result := engine.HandleMessage(ctx, textMessage(1, "alice_tg", "done"))
		if result.Kind != tracking.ResultNoOp {
			t.Errorf("kind = %d, want ResultNoOp", result.Kind)
		}

		// the failing message did not corrupt the stored row
		st.failParticipants = false

		p, err := st.Get(ctx, testChat, 1)
		if err != nil {
			t.Fatalf("get: %v", err)
		}

		if p.AdCount != 0 || p.LinkCount != 1 {
			t.Errorf("participant = %+v", p)
		}
	})

	t.Run("recovery after failure", func(t *testing.T) {
		engine, st := newFlakyEngine()
		st.failParticipants = true

		engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

		st.failParticipants = false

		result := engine.HandleMessage(ctx, linkMessage(2, "bob_tg", "https://x.com/bob"))
		if result.Kind != tracking.ResultLinkRecorded {
			t.Errorf("kind = %d, want ResultLinkRecorded after recovery", result.Kind)
		}
	})
}

func TestAdminOperationsSurfaceStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("open session", func(t *testing.T) {
		engine, st := newFlakyEngine()
		st.failParticipants = true

		if err := engine.OpenSession(ctx, testChat); !errors.Is(err, tracking.ErrStoreUnavailable) {
			t.Errorf("err = %v, want wrapped ErrStoreUnavailable", err)
		}
	})

	t.Run("set tracking", func(t *testing.T) {
		engine, st := newFlakyEngine()
		st.failSessions = true

		if err := engine.SetTracking(ctx, testChat, true); !errors.Is(err, tracking.ErrStoreUnavailable) {
			t.Errorf("err = %v, want wrapped ErrStoreUnavailable", err)
		}
	})

	t.Run("override", func(t *testing.T) {
		engine, st := newFlakyEngine()

		engine.HandleMessage(ctx, linkMessage(1, "alice_tg", "https://x.com/alice"))

		st.failParticipants = true

		result, err := engine.Override(ctx, testChat, 1, tracking.StatusUnsafe)
		if !errors.Is(err, tracking.ErrStoreUnavailable) {
			t.Errorf("err = %v, want wrapped ErrStoreUnavailable", err)
		}

		if result.Kind != tracking.ResultNoOp {
			t.Errorf("kind = %d, want ResultNoOp", result.Kind)
		}
	})
}

func TestSafeRequiresCompletion(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	if err := engine.SetTracking(ctx, testChat, true); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		engine.HandleMessage(ctx, linkMessage(i, fmt.Sprintf("u%d", i), fmt.Sprintf("https://x.com/u%d", i)))
	}

	engine.HandleMessage(ctx, textMessage(2, "u2", "done"))
	engine.HandleMessage(ctx, textMessage(4, "u4", "not yet"))

	list, err := st.List(ctx, testChat)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	for _, p := range list {
		if p.Status == tracking.StatusSafe && p.AdCount == 0 {
			t.Errorf("user %d is safe with zero completions", p.UserID)
		}
	}
}
