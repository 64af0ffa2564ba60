package store

import (
    "context"
    "sync"
    "time"

    "github.com/coder/quartz"
)

// Memory is an in-process Store. Records idle for longer than ttl are
// treated as absent and removed by Sweep.
type Memory struct {
    mu    sync.Mutex
    clock quartz.Clock
    ttl   time.Duration
    recs  map[string]entry
}

type entry struct {
    rec     Record
    touched time.Time
}

func NewMemory(clock quartz.Clock, ttl time.Duration) *Memory {
    if clock == nil {
        clock = quartz.NewReal()
    }
    return &Memory{clock: clock, ttl: ttl, recs: make(map[string]entry)}
}

func (m *Memory) Load(_ context.Context, id string) (Record, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    e, ok := m.recs[id]
    if !ok {
        return Record{}, ErrNotFound
    }
    if m.expired(e) {
        delete(m.recs, id)
        return Record{}, ErrNotFound
    }
    return e.rec, nil
}

func (m *Memory) Save(_ context.Context, rec Record) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.recs[rec.ID] = entry{rec: rec, touched: m.clock.Now()}
    return nil
}

func (m *Memory) Update(_ context.Context, id string, fn Mutator) (Record, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    e, found := m.recs[id]
    if found && m.expired(e) {
        delete(m.recs, id)
        found = false
    }
    var cur Record
    if found {
        cur = e.rec
    }
    next, write, err := fn(cur, found)
    if err != nil {
        return Record{}, err
    }
    if write {
        m.recs[id] = entry{rec: next, touched: m.clock.Now()}
    }
    return next, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    delete(m.recs, id)
    return nil
}

// Sweep drops expired records and returns how many were removed.
func (m *Memory) Sweep() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    n := 0
    for id, e := range m.recs {
        if m.expired(e) {
            delete(m.recs, id)
            n++
        }
    }
    return n
}

// Len counts records, expired or not.
func (m *Memory) Len() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.recs)
}

// StartJanitor sweeps every interval until ctx is done. onSweep, if set, is
// told how many records each pass removed. Wait on the result to block until
// the janitor stops.
func (m *Memory) StartJanitor(ctx context.Context, every time.Duration, onSweep func(int)) quartz.Waiter {
    return m.clock.TickerFunc(ctx, every, func() error {
        n := m.Sweep()
        if onSweep != nil {
            onSweep(n)
        }
        return nil
    }, "janitor")
}

func (m *Memory) expired(e entry) bool {
    return m.ttl > 0 && m.clock.Since(e.touched) >= m.ttl
}
