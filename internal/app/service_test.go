package app

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"

    "github.com/coder/quartz"
    "github.com/stretchr/testify/require"

    "github.com/jaminalder/tictactoe/internal/domain"
    "github.com/jaminalder/tictactoe/internal/store"
)

// minimal renderer for tests: encode moves count as bytes
func testRenderer(s Session) []byte { return []byte(fmt.Sprintf("moves=%d", s.Game.Moves())) }

func newTestService(t *testing.T) (*Service, *quartz.Mock) {
    t.Helper()
    clock := quartz.NewMock(t)
    st := store.NewMemory(clock, time.Hour)
    return NewService(st, WithClock(clock), WithRenderer(testRenderer)), clock
}

type failingStore struct{ store.Store }

var errBoom = errors.New("boom")

func (failingStore) Load(context.Context, string) (store.Record, error) {
    return store.Record{}, errBoom
}

func (failingStore) Update(context.Context, string, store.Mutator) (store.Record, error) {
    return store.Record{}, errBoom
}

func TestOpenCreatesThenReuses(t *testing.T) {
    ctx := context.Background()
    s, clock := newTestService(t)

    _, err := s.Get(ctx, "sess")
    require.ErrorIs(t, err, ErrNotFound)

    sess, err := s.Open(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, domain.New(), sess.Game)
    require.Equal(t, clock.Now(), sess.Created)

    _, ok, err := s.Play(ctx, "sess", 4)
    require.NoError(t, err)
    require.True(t, ok)

    again, err := s.Open(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, domain.X, again.Game.Cell(4))
}

func TestPlayAppliesAndIgnores(t *testing.T) {
    ctx := context.Background()
    s, clock := newTestService(t)
    _, err := s.Open(ctx, "sess")
    require.NoError(t, err)

    clock.Advance(time.Minute).MustWait(ctx)
    st, ok, err := s.Play(ctx, "sess", 0)
    require.NoError(t, err)
    require.True(t, ok)
    require.Equal(t, domain.O, st.Game.Turn())
    require.Equal(t, clock.Now(), st.Updated)
    require.True(t, st.Updated.After(st.Created))

    clock.Advance(time.Minute).MustWait(ctx)
    again, ok, err := s.Play(ctx, "sess", 0)
    require.NoError(t, err)
    require.False(t, ok, "occupied cell must be ignored")
    require.Equal(t, st.Game, again.Game)
    require.Equal(t, st.Updated, again.Updated)

    _, ok, err = s.Play(ctx, "sess", 12)
    require.NoError(t, err)
    require.False(t, ok)
}

func TestPlayUntilWinThenReset(t *testing.T) {
    ctx := context.Background()
    s, _ := newTestService(t)

    var last *Session
    for _, m := range []int{0, 3, 1, 4, 2} {
        st, ok, err := s.Play(ctx, "sess", m)
        require.NoError(t, err)
        require.True(t, ok)
        last = st
    }
    require.Equal(t, domain.Win, last.Game.Status())

    _, ok, err := s.Play(ctx, "sess", 8)
    require.NoError(t, err)
    require.False(t, ok, "moves after a win are ignored")

    st, err := s.Reset(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, domain.New(), st.Game)

    stored, err := s.Get(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, domain.New(), stored.Game)
}

func TestSessionsAreIndependent(t *testing.T) {
    ctx := context.Background()
    s, _ := newTestService(t)

    _, _, err := s.Play(ctx, "a", 4)
    require.NoError(t, err)
    b, err := s.Open(ctx, "b")
    require.NoError(t, err)
    require.Equal(t, domain.None, b.Game.Cell(4))
    require.Equal(t, domain.X, b.Game.Turn())
}

func TestExpiredSessionStartsOver(t *testing.T) {
    ctx := context.Background()
    s, clock := newTestService(t)

    _, _, err := s.Play(ctx, "sess", 4)
    require.NoError(t, err)

    clock.Advance(2 * time.Hour).MustWait(ctx)
    _, err = s.Get(ctx, "sess")
    require.ErrorIs(t, err, ErrNotFound)

    sess, err := s.Open(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, domain.New(), sess.Game)
}

func TestServicesSharingAStoreBuildOnEachOthersMoves(t *testing.T) {
    ctx := context.Background()
    clock := quartz.NewMock(t)
    shared := store.NewMemory(clock, time.Hour)
    a := NewService(shared, WithClock(clock))
    b := NewService(shared, WithClock(clock))

    _, ok, err := a.Play(ctx, "sess", 4)
    require.NoError(t, err)
    require.True(t, ok)

    _, ok, err = b.Play(ctx, "sess", 4)
    require.NoError(t, err)
    require.False(t, ok, "b must see the move a stored")

    st, ok, err := b.Play(ctx, "sess", 0)
    require.NoError(t, err)
    require.True(t, ok)
    require.Equal(t, domain.O, st.Game.Cell(0))
    require.Equal(t, domain.X, st.Game.Cell(4))
    require.Equal(t, 2, st.Game.Moves())
}

func TestIgnoredMoveOnNewSessionStillStoresIt(t *testing.T) {
    ctx := context.Background()
    s, _ := newTestService(t)

    _, ok, err := s.Play(ctx, "sess", 99)
    require.NoError(t, err)
    require.False(t, ok)

    sess, err := s.Get(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, domain.New(), sess.Game)
}

func TestStoreErrorsPropagate(t *testing.T) {
    ctx := context.Background()
    s := NewService(failingStore{})

    _, err := s.Open(ctx, "sess")
    require.ErrorIs(t, err, errBoom)
    _, _, err = s.Play(ctx, "sess", 0)
    require.ErrorIs(t, err, errBoom)
    _, err = s.Reset(ctx, "sess")
    require.ErrorIs(t, err, errBoom)
    _, err = s.Get(ctx, "sess")
    require.ErrorIs(t, err, errBoom)
}

func TestSubscribeAndBroadcast(t *testing.T) {
    s, _ := newTestService(t)

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    ch, unsub := s.Subscribe(ctx, "sess")
    defer unsub()

    _, _, err := s.Play(ctx, "sess", 0)
    require.NoError(t, err)

    select {
    case b, ok := <-ch:
        require.True(t, ok, "channel closed unexpectedly")
        require.Equal(t, "moves=1", string(b))
    case <-ctx.Done():
        t.Fatalf("timed out waiting for broadcast")
    }

    // ignored moves are not broadcast
    _, ok, err := s.Play(ctx, "sess", 0)
    require.NoError(t, err)
    require.False(t, ok)
    select {
    case b := <-ch:
        t.Fatalf("unexpected broadcast %q", b)
    default:
    }

    _, err = s.Reset(ctx, "sess")
    require.NoError(t, err)
    require.Equal(t, "moves=0", string(<-ch))
}

func TestDropSlowSubscriber(t *testing.T) {
    s, _ := newTestService(t)

    ctxSlow, cancelSlow := context.WithCancel(context.Background())
    defer cancelSlow()
    slowCh, _ := s.Subscribe(ctxSlow, "sess")

    ctxFast, cancelFast := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancelFast()
    fastCh, unsubFast := s.Subscribe(ctxFast, "sess")
    defer unsubFast()

    // Two updates; the fast reader drains between them, the slow one never reads.
    _, _, err := s.Play(ctxFast, "sess", 0)
    require.NoError(t, err)
    require.Equal(t, "moves=1", string(<-fastCh))

    _, _, err = s.Play(ctxFast, "sess", 4)
    require.NoError(t, err)
    require.Equal(t, "moves=2", string(<-fastCh))

    // slow got the first payload, then was closed instead of blocking the mover
    require.Equal(t, "moves=1", string(<-slowCh))
    _, open := <-slowCh
    require.False(t, open)
    require.Equal(t, 1, s.Subscribers("sess"))
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
    s, _ := newTestService(t)
    ctx, cancel := context.WithCancel(context.Background())
    ch, _ := s.Subscribe(ctx, "sess")
    require.Equal(t, 1, s.Subscribers("sess"))

    cancel()
    select {
    case _, open := <-ch:
        require.False(t, open)
    case <-time.After(2 * time.Second):
        t.Fatalf("channel not closed after cancel")
    }
    require.Zero(t, s.Subscribers("sess"))
}

func TestSessionIDs(t *testing.T) {
    id := NewSessionID()
    require.True(t, ValidSessionID(id))
    require.NotEqual(t, id, NewSessionID())
    require.False(t, ValidSessionID(""))
    require.False(t, ValidSessionID("not-a-uuid"))
    require.False(t, ValidSessionID("{"+id+"}"))
}
