package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/service"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/storage/memory"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := memory.New()
	db.PutWalker(schedule.Walker{
		ID:                "walker-1",
		DailyBookingLimit: 3,
		Schedules:         []schedule.Schedule{{Day: time.Saturday, Start: schedule.At(9, 0), End: schedule.At(12, 0)}},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC)
	svc := service.NewBookingService(db, logger, service.WithClock(func() time.Time { return now }))
	srv := httptest.NewServer(NewBookingHandler(svc, logger).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

const createBody = `{"walker_id":"walker-1","client_id":"client-1","start_time":"2024-06-01T10:00:00Z","end_time":"2024-06-01T11:00:00Z","price_cents":2500}`

func TestCreateAndGetBooking(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/bookings", createBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.StatusCode, body)
	}
	if body["status"] != "pending" {
		t.Fatalf("expected pending, got %v", body["status"])
	}
	id, _ := body["id"].(string)

	resp, body = do(t, http.MethodGet, srv.URL+"/bookings/"+id, "")
	if resp.StatusCode != http.StatusOK || body["id"] != id {
		t.Fatalf("unexpected get response %d %v", resp.StatusCode, body)
	}
}

func TestCreateBooking_Overlap(t *testing.T) {
	srv := newServer(t)
	if resp, _ := do(t, http.MethodPost, srv.URL+"/bookings", createBody); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp, body := do(t, http.MethodPost, srv.URL+"/bookings", createBody)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	info, _ := body["error"].(map[string]any)
	if info["rule"] != "overlap" {
		t.Fatalf("expected overlap rule, got %v", info)
	}
}

func TestCreateBooking_ValidationFailure(t *testing.T) {
	srv := newServer(t)
	resp, body := do(t, http.MethodPost, srv.URL+"/bookings", `{"client_id":"client-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	info, _ := body["error"].(map[string]any)
	details, _ := info["details"].(map[string]any)
	if details["walker_id"] != "required" {
		t.Fatalf("expected walker_id required, got %v", details)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/bookings", `{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", resp.StatusCode)
	}
}

func TestGetBooking_NotFound(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/bookings/missing", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateStatus(t *testing.T) {
	srv := newServer(t)
	_, created := do(t, http.MethodPost, srv.URL+"/bookings", createBody)
	id, _ := created["id"].(string)

	resp, body := do(t, http.MethodPatch, srv.URL+"/bookings/"+id+"/status", `{"status":"confirmed"}`)
	if resp.StatusCode != http.StatusOK || body["status"] != "confirmed" {
		t.Fatalf("unexpected confirm response %d %v", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodPatch, srv.URL+"/bookings/"+id+"/status", `{"status":"pending"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for pending, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPatch, srv.URL+"/bookings/"+id+"/status", `{"status":"sleeping"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPatch, srv.URL+"/bookings/"+id+"/status", `{"status":"completed"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for confirmed->completed, got %d", resp.StatusCode)
	}
	resp, body = do(t, http.MethodPatch, srv.URL+"/bookings/"+id+"/status", `{"status":"cancelled","notes":"vet visit"}`)
	if resp.StatusCode != http.StatusOK || body["notes"] != "Cancelled: vet visit" {
		t.Fatalf("unexpected cancel response %d %v", resp.StatusCode, body)
	}
}

func TestListAndAvailability(t *testing.T) {
	srv := newServer(t)
	do(t, http.MethodPost, srv.URL+"/bookings", createBody)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/walkers/walker-1/bookings?from=2024-06-01T00:00:00Z&to=2024-06-02T00:00:00Z", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected one booking, got %d %v", resp.StatusCode, list)
	}

	_, body := do(t, http.MethodGet, srv.URL+"/walkers/walker-1/availability?start_time=2024-06-01T10:30:00Z&end_time=2024-06-01T11:30:00Z", "")
	if body["available"] != false {
		t.Fatalf("expected unavailable, got %v", body)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/walkers/walker-1/availability?start_time=2024-06-01T11:00:00Z&end_time=2024-06-01T12:00:00Z", "")
	if body["available"] != true {
		t.Fatalf("expected available, got %v", body)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/walkers/walker-1/bookings?from=yesterday&to=2024-06-02T00:00:00Z", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad range, got %d", resp.StatusCode)
	}
}

func TestSlotsAndFreeWindows(t *testing.T) {
	srv := newServer(t)
	do(t, http.MethodPost, srv.URL+"/bookings", createBody)

	for path, want := range map[string]int{
		"/walkers/walker-1/slots?date=2024-06-01":        2,
		"/walkers/walker-1/free-windows?date=2024-06-01": 2,
		"/walkers/walker-1/slots?date=2024-06-03":        0,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		var items []map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&items)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || len(items) != want {
			t.Fatalf("%s: expected %d items, got %d (%d)", path, want, len(items), resp.StatusCode)
		}
	}

	resp, _ := do(t, http.MethodGet, srv.URL+"/walkers/walker-1/slots?date=June", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/walkers/ghost/slots?date=2024-06-01", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown walker, got %d", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.InvalidInput("x", "bad"), http.StatusBadRequest},
		{apperr.NotFound("booking", "1"), http.StatusNotFound},
		{apperr.InvalidOperation("nope"), http.StatusConflict},
		{apperr.Conflict(nil, "race"), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
