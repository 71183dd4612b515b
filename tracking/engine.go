package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raidwatch/raidwatch-tgbot/logs"
)

// DefaultStoreTimeout - upper bound for one store operation.
const DefaultStoreTimeout = 5 * time.Second

// DefaultAdWords - completion confirmation vocabulary.
var DefaultAdWords = []string{"ad", "all done", "all dn", "alldone", "done", "dn"}

// DefaultPlatformDomains - host aliases of the secondary platform.
var DefaultPlatformDomains = []string{"x.com", "twitter.com"}

// DefaultReservedPaths - platform routes that are not account handles.
var DefaultReservedPaths = []string{
	"home", "explore", "search", "notifications", "messages",
	"settings", "i", "intent", "hashtag", "share", "compose", "login",
}

// Config - engine construction parameters. Zero fields fall back to
// the defaults above.
type Config struct {
	ExcludedHandles []string
	AdWords         []string
	PlatformDomains []string
	ReservedPaths   []string
	StoreTimeout    time.Duration
}

// Engine - session-scoped participant tracker. One engine serves all
// chats; a per-chat lock serializes mutations against session resets
// within the process, store transactions guard against lost updates.
type Engine struct {
	participants ParticipantStore
	sessions     SessionStore
	extractor    *LinkExtractor
	classifier   *Classifier
	excluded     map[string]struct{}
	timeout      time.Duration

	mu    sync.Mutex
	chats map[int64]*sync.Mutex
}

// NewEngine - constructor.
func NewEngine(participants ParticipantStore, sessions SessionStore, cfg Config) *Engine {
	if len(cfg.AdWords) == 0 {
		cfg.AdWords = DefaultAdWords
	}

	if len(cfg.PlatformDomains) == 0 {
		cfg.PlatformDomains = DefaultPlatformDomains
	}

	if len(cfg.ReservedPaths) == 0 {
		cfg.ReservedPaths = DefaultReservedPaths
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedHandles))
	for _, h := range cfg.ExcludedHandles {
		excluded[strings.ToLower(strings.TrimPrefix(h, "@"))] = struct{}{}
	}

	return &Engine{
		participants: participants,
		sessions:     sessions,
		extractor:    NewLinkExtractor(cfg.PlatformDomains, cfg.ReservedPaths),
		classifier:   NewClassifier(cfg.AdWords),
		excluded:     excluded,
		timeout:      cfg.StoreTimeout,
		chats:        make(map[int64]*sync.Mutex),
	}
}

// chatLock - fetch or create the lock for one chat.
func (e *Engine) chatLock(chatID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.chats[chatID]
	if !ok {
		lock = &sync.Mutex{}
		e.chats[chatID] = lock
	}

	return lock
}

func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// Excluded - true when the handle is invisible to tracking.
func (e *Engine) Excluded(handle string) bool {
	_, ok := e.excluded[strings.ToLower(strings.TrimPrefix(handle, "@"))]

	return ok
}

// HandleMessage - apply one inbound message to the tracked state.
// Never returns an error: failures are logged and collapsed to a
// no-op so one bad message cannot stall the delivery loop.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) Result {
	if e.Excluded(msg.Handle) {
		return noop("excluded user")
	}

	lock := e.chatLock(msg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	if link, handle, found := e.extractor.Extract(msg.Text, msg.Entities); found {
		return e.recordLink(ctx, msg, link, handle)
	}

	return e.recordCompletion(ctx, msg)
}

// recordLink - first link of a message: create or bump the row and
// force the user back to unsafe. A link never makes anyone safe.
func (e *Engine) recordLink(ctx context.Context, msg Message, link, handle string) Result {
	// inconclusive extraction keeps the raw link as identity
	if handle == "" {
		handle = link
	}

	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	p, err := e.participants.Upsert(opctx, msg.ChatID, msg.UserID, Upsert{
		Name:            msg.Name,
		Handle:          msg.Handle,
		SecondaryHandle: handle,
		LinkDelta:       1,
		ForceStatus:     StatusUnsafe,
	})
	if err != nil {
		logs.Errf("[!] chat %d user %d: record link: %s\n", msg.ChatID, msg.UserID, err)

		return noop("store failure")
	}

	return Result{Kind: ResultLinkRecorded, LinkCount: p.LinkCount}
}

// recordCompletion - completion words count only while tracking is
// enabled and only for already-tracked users.
func (e *Engine) recordCompletion(ctx context.Context, msg Message) Result {
	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	session, err := e.sessions.GetSession(opctx, msg.ChatID)
	if err != nil {
		logs.Errf("[!] chat %d: get session: %s\n", msg.ChatID, err)

		return noop("store failure")
	}

	if !session.TrackingEnabled {
		return noop("tracking disabled")
	}

	p, err := e.participants.Get(opctx, msg.ChatID, msg.UserID)
	if err != nil {
		if errors.Is(err, ErrNoParticipant) {
			return noop("not tracked")
		}

		logs.Errf("[!] chat %d user %d: get participant: %s\n", msg.ChatID, msg.UserID, err)

		return noop("store failure")
	}

	if !e.classifier.Match(msg.Text, msg.Caption) {
		if p.Status != StatusSafe {
			_, err := e.participants.Upsert(opctx, msg.ChatID, msg.UserID, Upsert{
				Name:        msg.Name,
				Handle:      msg.Handle,
				ForceStatus: StatusUnsafe,
			})
			if err != nil {
				logs.Errf("[!] chat %d user %d: mark unsafe: %s\n", msg.ChatID, msg.UserID, err)
			}
		}

		return noop("no completion match")
	}

	p, err = e.participants.Upsert(opctx, msg.ChatID, msg.UserID, Upsert{
		Name:        msg.Name,
		Handle:      msg.Handle,
		AdDelta:     1,
		ForceStatus: StatusSafe,
	})
	if err != nil {
		logs.Errf("[!] chat %d user %d: record completion: %s\n", msg.ChatID, msg.UserID, err)

		return noop("store failure")
	}

	secondary := p.SecondaryHandle
	if secondary == "" {
		secondary = "unknown"
	}

	return Result{Kind: ResultCompletionRecorded, SecondaryHandle: secondary}
}

// OpenSession - wipe the chat's participants and start a fresh
// session with tracking disabled. Serial numbering restarts at 1.
func (e *Engine) OpenSession(ctx context.Context, chatID int64) error {
	lock := e.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := e.participants.DeleteChat(opctx, chatID); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}

	err := e.sessions.SetSession(opctx, Session{
		ChatID:          chatID,
		StartedAt:       time.Now(),
		TrackingEnabled: false,
	})
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

// SetTracking - toggle the completion-word gate. Participant rows are
// untouched.
func (e *Engine) SetTracking(ctx context.Context, chatID int64, enabled bool) error {
	lock := e.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	session, err := e.sessions.GetSession(opctx, chatID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	session.ChatID = chatID
	session.TrackingEnabled = enabled

	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}

	if err := e.sessions.SetSession(opctx, session); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

// Override - administrative status override: force the status and
// reset the completion counter. The only transition not driven by
// message content. A missing row is a reported no-op.
func (e *Engine) Override(ctx context.Context, chatID, userID int64, status string) (Result, error) {
	lock := e.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	p, err := e.participants.Get(opctx, chatID, userID)
	if err != nil {
		if errors.Is(err, ErrNoParticipant) {
			return noop("no participant"), nil
		}

		return noop("store failure"), fmt.Errorf("get participant: %w", err)
	}

	from := p.Status

	p, err = e.participants.Upsert(opctx, chatID, userID, Upsert{
		Name:         p.Name,
		Handle:       p.Handle,
		ForceStatus:  status,
		ResetAdCount: true,
	})
	if err != nil {
		return noop("store failure"), fmt.Errorf("override: %w", err)
	}

	return Result{Kind: ResultStatusChanged, From: from, To: p.Status}, nil
}

// Participants - serial-ordered projection for the reporting layer.
func (e *Engine) Participants(ctx context.Context, chatID int64) ([]Participant, error) {
	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	list, err := e.participants.List(opctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	return list, nil
}

// RemoveParticipant - explicit admin-issued removal of one row.
func (e *Engine) RemoveParticipant(ctx context.Context, chatID, userID int64) error {
	lock := e.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := e.participants.Delete(opctx, chatID, userID); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}

	return nil
}

// Session - current session flags for a chat.
func (e *Engine) Session(ctx context.Context, chatID int64) (Session, error) {
	opctx, cancel := e.opCtx(ctx)
	defer cancel()

	session, err := e.sessions.GetSession(opctx, chatID)
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	return session, nil
}
