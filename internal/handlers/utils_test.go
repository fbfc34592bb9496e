package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractIDFromPath(t *testing.T) {
	id, err := extractIDFromPath("/api/promos/15", promosPathPrefix)
	if err != nil || id != 15 {
		t.Fatalf("expected 15, got %d err=%v", id, err)
	}

	id, err = extractIDFromPath("/api/promos/15/reserve", promosPathPrefix)
	if err != nil || id != 15 {
		t.Fatalf("expected 15 with suffix, got %d err=%v", id, err)
	}

	for _, path := range []string{"/wrong/path", "/api/promos/", "/api/promos/abc", "/api/promos/0", "/api/promos/-3"} {
		if _, err := extractIDFromPath(path, promosPathPrefix); err == nil {
			t.Fatalf("expected error for %q", path)
		}
	}
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query         string
		limit, offset int
	}{
		{"", defaultPageLimit, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=0", defaultPageLimit, 0},
		{"?limit=1000", defaultPageLimit, 0},
		{"?limit=abc&offset=-1", defaultPageLimit, 0},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/promos"+tc.query, nil)
		limit, offset := parsePagination(req)
		if limit != tc.limit || offset != tc.offset {
			t.Fatalf("%q: expected (%d,%d), got (%d,%d)", tc.query, tc.limit, tc.offset, limit, offset)
		}
	}
}

func TestParseDays(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stats", nil)
	if days, err := parseDays(req); err != nil || days != 0 {
		t.Fatalf("expected default 0, got %d err=%v", days, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/notifications/stats?days=14", nil)
	if days, err := parseDays(req); err != nil || days != 14 {
		t.Fatalf("expected 14, got %d err=%v", days, err)
	}

	for _, q := range []string{"0", "-5", "week"} {
		req = httptest.NewRequest(http.MethodGet, "/api/notifications/stats?days="+q, nil)
		if _, err := parseDays(req); err == nil {
			t.Fatalf("expected error for days=%s", q)
		}
	}
}

func TestWriteJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, map[string]string{"ok": "true"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if body := rr.Body.String(); body == "" {
		t.Fatalf("empty body")
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	writeErrorResponse(rr, http.StatusConflict, "already reserved")

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "Conflict" || resp.Message != "already reserved" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}
