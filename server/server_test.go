package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/cooperbot/db"
	"github.com/onnwee/cooperbot/testutil"
)

func TestHealthzOK(t *testing.T) {
	d := testutil.SetupTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	h := NewMux(context.Background(), d)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected correlation id header")
	}
}

func TestCorrelationHeaderReused(t *testing.T) {
	d := testutil.SetupTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	rr := httptest.NewRecorder()

	NewMux(context.Background(), d).ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-abc" {
		t.Fatalf("expected corr-abc echoed back, got %q", got)
	}
}

func TestReadyzReady(t *testing.T) {
	d := testutil.SetupTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	NewMux(context.Background(), d).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ready" {
		t.Fatalf("expected status=ready, got %q", resp["status"])
	}
}

func TestStatusReportsOutcomesAndQueue(t *testing.T) {
	d := testutil.SetupTestDB(t)

	store := &db.InteractionStore{DB: d}
	for _, outcome := range []string{"ok", "ok", "ignored-user"} {
		if err := store.Insert(context.Background(), db.Interaction{
			TurnID:   "status-test-" + outcome + t.Name(),
			Channel:  "chan",
			Username: "user",
			Message:  "msg",
			Outcome:  outcome,
		}); err != nil {
			t.Fatalf("insert interaction: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()

	h := NewMux(context.Background(), d, WithQueueLen(func() int { return 3 }))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		UptimeSeconds int            `json:"uptime_seconds"`
		Outcomes      map[string]int `json:"outcomes"`
		QueueLen      int            `json:"queue_len"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Outcomes["ok"] < 2 {
		t.Fatalf("expected at least 2 ok outcomes, got %d", resp.Outcomes["ok"])
	}
	if resp.QueueLen != 3 {
		t.Fatalf("expected queue_len=3, got %d", resp.QueueLen)
	}
}

func TestInteractionsLimit(t *testing.T) {
	d := testutil.SetupTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/interactions?limit=5", nil)
	rr := httptest.NewRecorder()

	NewMux(context.Background(), d).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Interactions []db.Interaction `json:"interactions"`
		Count        int              `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count > 5 {
		t.Fatalf("expected at most 5 rows, got %d", resp.Count)
	}
}

func TestStartAndShutdown(t *testing.T) {
	d := testutil.SetupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Start(ctx, d, ":0") }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
