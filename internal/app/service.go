package app

import (
    "context"
    "errors"
    "fmt"
    "io"
    "sync"
    "time"

    "github.com/charmbracelet/log"
    "github.com/coder/quartz"

    "github.com/jaminalder/tictactoe/internal/domain"
    "github.com/jaminalder/tictactoe/internal/store"
)

// ErrNotFound is returned by Get for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is one browser session's game.
type Session struct {
    ID      string
    Game    domain.Game
    Created time.Time
    Updated time.Time
}

type subscriber struct {
    ch        chan []byte
    closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service owns one engine per session and pushes rendered boards to every
// open tab of that session.
type Service struct {
    mu     sync.Mutex
    store  store.Store
    clock  quartz.Clock
    logger *log.Logger
    subs   map[string]map[*subscriber]struct{}
    render func(Session) []byte
}

type Option func(*Service)

func WithClock(c quartz.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *log.Logger) Option { return func(s *Service) { s.logger = l } }

// WithRenderer sets the function that turns a session into a broadcast payload.
func WithRenderer(r func(Session) []byte) Option { return func(s *Service) { s.render = r } }

func NewService(st store.Store, opts ...Option) *Service {
    s := &Service{
        store:  st,
        clock:  quartz.NewReal(),
        logger: log.New(io.Discard),
        subs:   make(map[string]map[*subscriber]struct{}),
        render: func(Session) []byte { return nil },
    }
    for _, o := range opts {
        o(s)
    }
    return s
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(Session) []byte) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if renderer == nil {
        s.render = func(Session) []byte { return nil }
        return
    }
    s.render = renderer
}

// Open returns the session for id, starting a fresh game if none is stored.
func (s *Service) Open(ctx context.Context, id string) (*Session, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    sess, err := s.update(ctx, id, func(sess *Session, created bool) bool { return created })
    if err != nil {
        return nil, err
    }
    return &sess, nil
}

// Get returns the stored session without creating one.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    rec, err := s.store.Load(ctx, id)
    if errors.Is(err, store.ErrNotFound) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load session: %w", err)
    }
    sess := fromRecord(rec)
    return &sess, nil
}

// Play applies a move for the session's current player. The bool reports
// whether the move was accepted; ignored moves leave the session untouched
// and are not broadcast.
func (s *Service) Play(ctx context.Context, id string, index int) (*Session, bool, error) {
    var (
        applied bool
        player  domain.Player
        reason  error
    )
    s.mu.Lock()
    sess, err := s.update(ctx, id, func(sess *Session, created bool) bool {
        applied, player = false, sess.Game.Turn()
        if reason = sess.Game.Check(index); reason != nil {
            return created
        }
        applied = sess.Game.Apply(index)
        sess.Updated = s.clock.Now()
        return true
    })
    if err != nil {
        s.mu.Unlock()
        return nil, false, err
    }
    if applied {
        s.broadcastLocked(sess)
    }
    s.mu.Unlock()

    if !applied {
        s.logger.Debug("move ignored", "session", id, "cell", index, "reason", reason)
        return &sess, false, nil
    }
    s.logger.Debug("move applied", "session", id, "player", player, "cell", index, "status", sess.Game.Status())
    if sess.Game.Terminal() {
        s.logger.Info("game over", "session", id, "status", sess.Game.Status(), "winner", sess.Game.Winner())
    }
    return &sess, true, nil
}

// Reset starts a new game in the session and broadcasts it.
func (s *Service) Reset(ctx context.Context, id string) (*Session, error) {
    s.mu.Lock()
    sess, err := s.update(ctx, id, func(sess *Session, _ bool) bool {
        sess.Game.Reset()
        sess.Updated = s.clock.Now()
        return true
    })
    if err != nil {
        s.mu.Unlock()
        return nil, err
    }
    s.broadcastLocked(sess)
    s.mu.Unlock()

    s.logger.Debug("game reset", "session", id)
    return &sess, nil
}

// Subscribe registers a subscriber for a session. Returns a channel and an
// unsubscribe func; the channel closes when ctx ends or the reader falls behind.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func()) {
    s.mu.Lock()
    defer s.mu.Unlock()
    set := s.subs[id]
    if set == nil {
        set = make(map[*subscriber]struct{})
        s.subs[id] = set
    }
    sub := &subscriber{ch: make(chan []byte, 1)}
    set[sub] = struct{}{}

    unsubOnce := &sync.Once{}
    unsub := func() {
        unsubOnce.Do(func() {
            s.mu.Lock()
            s.removeSubLocked(id, sub)
            s.mu.Unlock()
            sub.close()
        })
    }
    go func() {
        <-ctx.Done()
        unsub()
    }()
    return sub.ch, unsub
}

// Subscribers counts live subscribers of a session.
func (s *Service) Subscribers(id string) int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.subs[id])
}

// update runs mutate on the stored session, or on a fresh one when none is
// stored, inside a single store transaction. mutate reports whether the
// result must be written; it may run again if the store retries.
func (s *Service) update(ctx context.Context, id string, mutate func(sess *Session, created bool) bool) (Session, error) {
    created := false
    rec, err := s.store.Update(ctx, id, func(cur store.Record, found bool) (store.Record, bool, error) {
        created = !found
        sess := fromRecord(cur)
        if created {
            now := s.clock.Now()
            sess = Session{ID: id, Game: domain.New(), Created: now, Updated: now}
        }
        write := mutate(&sess, created)
        return toRecord(sess), write, nil
    })
    if err != nil {
        return Session{}, fmt.Errorf("update session: %w", err)
    }
    if created {
        s.logger.Debug("session started", "session", id)
    }
    return fromRecord(rec), nil
}

// broadcastLocked fans out without blocking; slow subscribers are closed and
// dropped. Unsubscribe removes a channel under s.mu before closing it, so no
// send here can hit a closed channel.
func (s *Service) broadcastLocked(sess Session) {
    set := s.subs[sess.ID]
    if len(set) == 0 {
        return
    }
    payload := s.render(sess)
    dropped := 0
    for sub := range set {
        select {
        case sub.ch <- payload:
        default:
            sub.close()
            s.removeSubLocked(sess.ID, sub)
            dropped++
        }
    }
    if dropped > 0 {
        s.logger.Debug("dropped slow subscribers", "session", sess.ID, "count", dropped)
    }
}

func (s *Service) removeSubLocked(id string, sub *subscriber) {
    set, ok := s.subs[id]
    if !ok {
        return
    }
    delete(set, sub)
    if len(set) == 0 {
        delete(s.subs, id)
    }
}

func toRecord(s Session) store.Record {
    return store.Record{ID: s.ID, Game: s.Game, Created: s.Created, Updated: s.Updated}
}

func fromRecord(r store.Record) Session {
    return Session{ID: r.ID, Game: r.Game, Created: r.Created, Updated: r.Updated}
}
