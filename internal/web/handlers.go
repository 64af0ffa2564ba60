package web

import (
    "bytes"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "time"

    "github.com/charmbracelet/log"
    "github.com/go-chi/chi/v5"

    "github.com/jaminalder/tictactoe/internal/app"
    "github.com/jaminalder/tictactoe/internal/domain"
)

type handlers struct {
    svc       *app.Service
    tpl       *templates
    logger    *log.Logger
    cookie    string
    heartbeat time.Duration
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    sess, err := h.svc.Open(r.Context(), id)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeHTML(w, h.tpl.renderPage(*sess))
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    // A malformed index is just another ignored move.
    idx, err := strconv.Atoi(chi.URLParam(r, "index"))
    if err != nil {
        idx = -1
    }
    sess, _, err := h.svc.Play(r.Context(), id, idx)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    h.respondBoard(w, r, *sess)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    sess, err := h.svc.Reset(r.Context(), id)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    h.respondBoard(w, r, *sess)
}

// respondBoard answers htmx with the board fragment and plain form posts
// with a redirect back to the page.
func (h *handlers) respondBoard(w http.ResponseWriter, r *http.Request, sess app.Session) {
    if r.Header.Get("HX-Request") != "true" {
        http.Redirect(w, r, "/", http.StatusSeeOther)
        return
    }
    writeHTML(w, h.tpl.renderBoard(sess))
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("X-Accel-Buffering", "no")
    // In tests or non-EventSource requests, just acknowledge headers and return
    if r.Header.Get("Accept") != "text/event-stream" {
        w.WriteHeader(http.StatusOK)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok {
        w.WriteHeader(http.StatusOK)
        return
    }
    ctx := r.Context()
    ch, unsub := h.svc.Subscribe(ctx, id)
    defer unsub()
    ticker := time.NewTicker(h.heartbeat)
    defer ticker.Stop()
    w.WriteHeader(http.StatusOK)
    flusher.Flush()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            _, _ = io.WriteString(w, ": ping\n\n")
            flusher.Flush()
        case b, ok := <-ch:
            if !ok {
                return
            }
            writeEvent(w, "board", b)
            flusher.Flush()
        }
    }
}

type stateResponse struct {
    Board   [domain.Cells]string `json:"board"`
    Turn    string               `json:"turn"`
    Status  string               `json:"status"`
    Winner  string               `json:"winner,omitempty"`
    Line    *domain.Line         `json:"line"`
    Moves   int                  `json:"moves"`
    Updated time.Time            `json:"updated"`
}

type moveRequest struct {
    Index *int `json:"index"`
}

type moveResponse struct {
    Applied bool          `json:"applied"`
    State   stateResponse `json:"state"`
}

func newStateResponse(s app.Session) stateResponse {
    out := stateResponse{
        Turn:    s.Game.Turn().String(),
        Status:  s.Game.Status().String(),
        Winner:  s.Game.Winner().String(),
        Moves:   s.Game.Moves(),
        Updated: s.Updated,
    }
    for i, p := range s.Game.Board() {
        out.Board[i] = p.String()
    }
    if line, ok := s.Game.WinningLine(); ok {
        out.Line = &line
    }
    return out
}

func (h *handlers) apiState(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    sess, err := h.svc.Open(r.Context(), id)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newStateResponse(*sess))
}

func (h *handlers) apiMove(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    var req moveRequest
    if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil || req.Index == nil {
        writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"index\": 0-8}"})
        return
    }
    sess, applied, err := h.svc.Play(r.Context(), id, *req.Index)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, moveResponse{Applied: applied, State: newStateResponse(*sess)})
}

func (h *handlers) apiReset(w http.ResponseWriter, r *http.Request) {
    id := h.ensureSession(w, r)
    sess, err := h.svc.Reset(r.Context(), id)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newStateResponse(*sess))
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
    _, _ = io.WriteString(w, "ok")
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
    h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
    http.Error(w, "internal error", http.StatusInternalServerError)
}

// ensureSession returns the caller's session ID, issuing a fresh session
// cookie when the request has none or an unrecognised one.
func (h *handlers) ensureSession(w http.ResponseWriter, r *http.Request) string {
    if c, err := r.Cookie(h.cookie); err == nil && app.ValidSessionID(c.Value) {
        return c.Value
    }
    id := app.NewSessionID()
    http.SetCookie(w, &http.Cookie{
        Name:     h.cookie,
        Value:    id,
        Path:     "/",
        HttpOnly: true,
        SameSite: http.SameSiteLaxMode,
    })
    return id
}

func writeHTML(w http.ResponseWriter, body []byte) {
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// writeEvent frames payload as one SSE event; every line needs its own
// "data:" prefix.
func writeEvent(w io.Writer, event string, payload []byte) {
    _, _ = fmt.Fprintf(w, "event: %s\n", event)
    for _, line := range bytes.Split(bytes.TrimRight(payload, "\n"), []byte("\n")) {
        _, _ = fmt.Fprintf(w, "data: %s\n", line)
    }
    _, _ = io.WriteString(w, "\n")
}
