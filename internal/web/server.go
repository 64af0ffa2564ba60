package web

import (
    "net/http"
    "time"

    "github.com/charmbracelet/log"
    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"

    "github.com/jaminalder/tictactoe/internal/app"
)

const (
    defaultCookie    = "ttt_session"
    defaultHeartbeat = 15 * time.Second
)

type Option func(*handlers)

// WithCookie sets the session cookie name.
func WithCookie(name string) Option { return func(h *handlers) { h.cookie = name } }

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option { return func(h *handlers) { h.heartbeat = d } }

func WithLogger(l *log.Logger) Option { return func(h *handlers) { h.logger = l } }

// NewServer wires routes and returns an http.Handler. It also installs the
// board renderer on s so SSE subscribers receive ready-to-swap fragments.
func NewServer(s *app.Service, opts ...Option) http.Handler {
    h := &handlers{
        svc:       s,
        tpl:       loadTemplates(),
        logger:    log.Default(),
        cookie:    defaultCookie,
        heartbeat: defaultHeartbeat,
    }
    for _, o := range opts {
        o(h)
    }
    s.SetRenderer(h.tpl.renderBoard)

    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.RealIP)
    r.Use(requestLogger(h.logger))
    r.Use(middleware.Recoverer)

    r.Get("/", h.index)
    r.Post("/play/{index}", h.play)
    r.Post("/reset", h.reset)
    r.Get("/events", h.events)
    r.Get("/healthz", h.healthz)
    r.Route("/api", func(r chi.Router) {
        r.Get("/state", h.apiState)
        r.Post("/move", h.apiMove)
        r.Post("/reset", h.apiReset)
    })
    return r
}

// requestLogger logs one debug line per request; SSE streams are logged when
// they end.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()
            defer func() {
                logger.Debug("http request",
                    "method", r.Method,
                    "path", r.URL.Path,
                    "status", ww.Status(),
                    "bytes", ww.BytesWritten(),
                    "dur", time.Since(start),
                    "req_id", middleware.GetReqID(r.Context()))
            }()
            next.ServeHTTP(ww, r)
        })
    }
}
