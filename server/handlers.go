package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/cooperbot/db"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db        *sql.DB
	ctx       context.Context
	store     *db.InteractionStore
	startedAt time.Time
	queueLen  func() int
}

// Option customizes a Handlers instance.
type Option func(*Handlers)

// WithQueueLen wires a queue-depth reporter into /status.
func WithQueueLen(fn func() int) Option {
	return func(h *Handlers) { h.queueLen = fn }
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, database *sql.DB, opts ...Option) *Handlers {
	h := &Handlers{
		db:        database,
		ctx:       ctx,
		store:     &db.InteractionStore{DB: database},
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"schema", func() error {
			var count int
			err := h.db.QueryRowContext(r.Context(),
				"SELECT COUNT(*) FROM interactions WHERE 1=0").Scan(&count)
			if err != nil {
				return fmt.Errorf("interactions table missing: %w", err)
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports uptime, outcome counts since startup-recorded rows, and
// the current turn queue depth when wired.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.OutcomeCounts(r.Context())
	if err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	body := map[string]any{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"outcomes":       counts,
	}
	if h.queueLen != nil {
		body["queue_len"] = h.queueLen()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// HandleInteractions returns the most recent interaction log rows.
func (h *Handlers) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	rows, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "interactions query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"interactions": rows, "count": len(rows)})
}
