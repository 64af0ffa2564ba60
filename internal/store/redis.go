package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

const keyPrefix = "ttt:session:"

// Redis stores records as JSON with a TTL that is refreshed on every save,
// so a session disappears once the browser stops playing.
type Redis struct {
    client *redis.Client
    ttl    time.Duration
}

// DialRedis connects and pings the server before returning.
func DialRedis(ctx context.Context, opts *redis.Options, ttl time.Duration) (*Redis, error) {
    client := redis.NewClient(opts)
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("failed to connect to redis: %w", err)
    }
    return NewRedis(client, ttl), nil
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
    return &Redis{client: client, ttl: ttl}
}

// maxUpdateAttempts bounds optimistic retries when another writer touches
// the same session between WATCH and EXEC.
const maxUpdateAttempts = 8

// ErrConflict is returned when Update keeps losing to concurrent writers.
var ErrConflict = errors.New("session updated concurrently")

type getter interface {
    Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Redis) Load(ctx context.Context, id string) (Record, error) {
    rec, found, err := r.get(ctx, r.client, id)
    if err != nil {
        return Record{}, err
    }
    if !found {
        return Record{}, ErrNotFound
    }
    return rec, nil
}

func (r *Redis) get(ctx context.Context, c getter, id string) (Record, bool, error) {
    raw, err := c.Get(ctx, keyPrefix+id).Bytes()
    if errors.Is(err, redis.Nil) {
        return Record{}, false, nil
    }
    if err != nil {
        return Record{}, false, fmt.Errorf("get session %s: %w", id, err)
    }

    var rec Record
    if err := json.Unmarshal(raw, &rec); err != nil {
        return Record{}, false, fmt.Errorf("decode session %s: %w", id, err)
    }
    return rec, true, nil
}

// Update reads under WATCH and writes in MULTI/EXEC, so a replica working
// from a stale snapshot retries instead of overwriting a newer move.
func (r *Redis) Update(ctx context.Context, id string, fn Mutator) (Record, error) {
    key := keyPrefix + id
    var out Record
    txf := func(tx *redis.Tx) error {
        cur, found, err := r.get(ctx, tx, id)
        if err != nil {
            return err
        }
        next, write, err := fn(cur, found)
        if err != nil {
            return err
        }
        out = next
        if !write {
            return nil
        }
        raw, err := json.Marshal(next)
        if err != nil {
            return fmt.Errorf("encode session %s: %w", id, err)
        }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.Set(ctx, key, raw, r.ttl)
            return nil
        })
        return err
    }

    for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
        err := r.client.Watch(ctx, txf, key)
        if errors.Is(err, redis.TxFailedErr) {
            continue
        }
        if err != nil {
            return Record{}, err
        }
        return out, nil
    }
    return Record{}, fmt.Errorf("update session %s: %w", id, ErrConflict)
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
    raw, err := json.Marshal(rec)
    if err != nil {
        return fmt.Errorf("encode session %s: %w", rec.ID, err)
    }
    if err := r.client.Set(ctx, keyPrefix+rec.ID, raw, r.ttl).Err(); err != nil {
        return fmt.Errorf("set session %s: %w", rec.ID, err)
    }
    return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
    if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
        return fmt.Errorf("delete session %s: %w", id, err)
    }
    return nil
}

func (r *Redis) Close() error {
    return r.client.Close()
}
