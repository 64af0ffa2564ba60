package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/charmbracelet/log"
    "github.com/coder/quartz"
    "github.com/redis/go-redis/v9"

    "github.com/jaminalder/tictactoe/internal/app"
    "github.com/jaminalder/tictactoe/internal/config"
    "github.com/jaminalder/tictactoe/internal/logging"
    "github.com/jaminalder/tictactoe/internal/store"
    "github.com/jaminalder/tictactoe/internal/web"
)

// ServeCmd runs the HTTP server. Flags override the config file and env.
type ServeCmd struct {
    Config   string `short:"c" default:"config.yml" help:"Path to YAML config file (optional)"`
    Addr     string `short:"a" help:"Listen address (overrides config)"`
    LogLevel string `short:"l" help:"Log level: debug, info, warn, error (overrides config)"`
}

func (c *ServeCmd) Run() error {
    cfg, err := config.Load(c.Config)
    if err != nil {
        return err
    }
    if c.Addr != "" {
        cfg.HTTP.Addr = c.Addr
    }
    if c.LogLevel != "" {
        cfg.Log.Level = c.LogLevel
    }
    if err := cfg.Validate(); err != nil {
        return err
    }

    logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
    ctx := signalContext(logger)

    clock := quartz.NewReal()
    st, closeStore, err := openStore(ctx, cfg, clock, logger)
    if err != nil {
        return err
    }
    defer closeStore()

    svc := app.NewService(st,
        app.WithClock(clock),
        app.WithLogger(logger.WithPrefix("app")))
    handler := web.NewServer(svc,
        web.WithCookie(cfg.Session.Cookie),
        web.WithHeartbeat(cfg.Session.Heartbeat),
        web.WithLogger(logger.WithPrefix("web")))

    srv := &http.Server{
        Addr:         cfg.HTTP.Addr,
        Handler:      handler,
        ReadTimeout:  cfg.HTTP.ReadTimeout,
        WriteTimeout: cfg.HTTP.WriteTimeout,
        IdleTimeout:  cfg.HTTP.IdleTimeout,
    }

    logger.Info("Starting tic-tac-toe server",
        "addr", cfg.HTTP.Addr,
        "store", cfg.Store.Backend,
        "session_ttl", cfg.Session.TTL)

    serverErr := make(chan error, 1)
    go func() {
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            serverErr <- err
        }
    }()

    select {
    case <-ctx.Done():
        logger.Info("Shutting down server...")
        shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
        defer cancel()
        return srv.Shutdown(shutdownCtx)
    case err := <-serverErr:
        return fmt.Errorf("http server: %w", err)
    }
}

// openStore builds the configured session store and its cleanup func.
func openStore(ctx context.Context, cfg *config.Config, clock quartz.Clock, logger *log.Logger) (store.Store, func(), error) {
    switch cfg.Store.Backend {
    case config.BackendRedis:
        r, err := store.DialRedis(ctx, &redis.Options{
            Addr:     cfg.Store.Redis.Addr,
            DB:       cfg.Store.Redis.DB,
            Password: cfg.Store.Redis.Password,
        }, cfg.Session.TTL)
        if err != nil {
            return nil, nil, err
        }
        return r, func() {
            if err := r.Close(); err != nil {
                logger.Error("could not close redis store", "err", err)
            }
        }, nil
    default:
        m := store.NewMemory(clock, cfg.Session.TTL)
        storeLog := logger.WithPrefix("store")
        // The janitor stops with ctx.
        _ = m.StartJanitor(ctx, cfg.Session.TTL/2, func(n int) {
            if n > 0 {
                storeLog.Debug("expired sessions swept", "count", n)
            }
        })
        return m, func() {}, nil
    }
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *log.Logger) context.Context {
    ctx, cancel := context.WithCancel(context.Background())

    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

    go func() {
        sig := <-sigChan
        logger.Info("Received signal, shutting down gracefully", "signal", sig.String())
        cancel()
    }()

    return ctx
}
