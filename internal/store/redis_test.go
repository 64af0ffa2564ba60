package store

import (
    "context"
    "testing"
    "time"

    "github.com/ory/dockertest/v3"
    "github.com/ory/dockertest/v3/docker"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/require"

    "github.com/jaminalder/tictactoe/internal/domain"
)

const (
    redisPort  = "6379/tcp"
    redisImage = "redis"
    redisTag   = "alpine"

    maxWaitDuration = 120 * time.Second
)

// newRedisClient starts a throwaway redis container. The test is skipped when
// docker is not reachable.
func newRedisClient(t *testing.T) (context.Context, *redis.Client) {
    t.Helper()
    if testing.Short() {
        t.Skip("skipping redis integration test in short mode")
    }

    ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
    t.Cleanup(cancel)

    pool, err := dockertest.NewPool("")
    if err != nil {
        t.Skipf("docker unavailable: %v", err)
    }
    if err = pool.Client.Ping(); err != nil {
        t.Skipf("docker unavailable: %v", err)
    }

    resource, err := pool.RunWithOptions(&dockertest.RunOptions{
        Repository: redisImage,
        Tag:        redisTag,
    }, func(config *docker.HostConfig) {
        config.AutoRemove = true
        config.RestartPolicy = docker.RestartPolicy{Name: "no"}
    })
    if err != nil {
        t.Fatalf("could not start redis: %v", err)
    }
    _ = resource.Expire(uint(maxWaitDuration.Seconds()))
    t.Cleanup(func() {
        if err := pool.Purge(resource); err != nil {
            t.Logf("could not purge redis: %v", err)
        }
    })

    pool.MaxWait = maxWaitDuration
    var client *redis.Client
    if err = pool.Retry(func() error {
        client = redis.NewClient(&redis.Options{Addr: resource.GetHostPort(redisPort)})
        return client.Ping(ctx).Err()
    }); err != nil {
        t.Fatalf("could not connect to redis: %v", err)
    }
    t.Cleanup(func() { _ = client.Close() })

    return ctx, client
}

func TestRedisStore(t *testing.T) {
    ctx, client := newRedisClient(t)
    s := NewRedis(client, time.Minute)

    t.Run("missing", func(t *testing.T) {
        _, err := s.Load(ctx, "nope")
        require.ErrorIs(t, err, ErrNotFound)
    })

    t.Run("round trip", func(t *testing.T) {
        rec := newRecord("abc", 0, 3, 1, 4, 2)
        require.NoError(t, s.Save(ctx, rec))

        got, err := s.Load(ctx, "abc")
        require.NoError(t, err)
        require.Equal(t, rec.Game, got.Game)
        require.True(t, rec.Created.Equal(got.Created))

        ttl, err := client.TTL(ctx, keyPrefix+"abc").Result()
        require.NoError(t, err)
        require.Greater(t, ttl, time.Duration(0))
        require.LessOrEqual(t, ttl, time.Minute)
    })

    t.Run("delete", func(t *testing.T) {
        require.NoError(t, s.Save(ctx, newRecord("gone")))
        require.NoError(t, s.Delete(ctx, "gone"))
        _, err := s.Load(ctx, "gone")
        require.ErrorIs(t, err, ErrNotFound)
    })

    t.Run("corrupt payload", func(t *testing.T) {
        require.NoError(t, client.Set(ctx, keyPrefix+"bad", `{"id":"bad","game":{"x":1,"o":1,"turn":"X","status":"ongoing"}}`, 0).Err())
        _, err := s.Load(ctx, "bad")
        require.Error(t, err)
        require.NotErrorIs(t, err, ErrNotFound)
    })

    t.Run("update retries after a concurrent write", func(t *testing.T) {
        require.NoError(t, s.Save(ctx, newRecord("race")))

        calls := 0
        got, err := s.Update(ctx, "race", func(cur Record, found bool) (Record, bool, error) {
            calls++
            require.True(t, found)
            if calls == 1 {
                // another replica stores a move between our read and our write
                require.NoError(t, s.Save(ctx, newRecord("race", 4)))
            }
            cur.Game.Apply(0)
            return cur, true, nil
        })
        require.NoError(t, err)
        require.Equal(t, 2, calls)
        require.Equal(t, domain.X, got.Game.Cell(4))
        require.Equal(t, domain.O, got.Game.Cell(0))

        stored, err := s.Load(ctx, "race")
        require.NoError(t, err)
        require.Equal(t, got.Game, stored.Game)
    })

    t.Run("update without write leaves key absent", func(t *testing.T) {
        _, err := s.Update(ctx, "ghost", func(cur Record, found bool) (Record, bool, error) {
            require.False(t, found)
            return cur, false, nil
        })
        require.NoError(t, err)
        n, err := client.Exists(ctx, keyPrefix+"ghost").Result()
        require.NoError(t, err)
        require.Zero(t, n)
    })
}
