package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/store"
)

func TestAPI_HistoryWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now()
	seed := []store.Outcome{
		{Key: "A", Mode: "infer", Kind: store.KindCorrect, Expected: "lp", Detected: "lp", CreatedAt: now.Add(-3 * time.Minute)},
		{Key: "A", Mode: "infer", Kind: store.KindIncorrect, Expected: "lp", Detected: "lr", CreatedAt: now.Add(-2 * time.Minute)},
		{Key: "J", Mode: "infer", Kind: store.KindCorrect, Expected: "ri", Detected: "ri", CreatedAt: now.Add(-time.Minute)},
		{Key: "J", Mode: "infer", Kind: store.KindCorrect, Expected: "ri", Detected: "ri", CreatedAt: now.Add(-48 * time.Hour)},
		{Key: "K", Mode: "calibrate", Kind: "calibrated", CreatedAt: now},
	}
	for i := range seed {
		if err := s.Outcomes().Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	ts := httptest.NewServer(New(Config{History: s}))
	defer ts.Close()
	client := ts.Client()

	getJSON := func(path string, v any) int {
		t.Helper()
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		defer resp.Body.Close()
		if v != nil && resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
		}
		return resp.StatusCode
	}

	// 1. Stats over all history exclude calibration.
	var stats statsResponse
	if code := getJSON("/api/stats", &stats); code != http.StatusOK {
		t.Fatalf("GET /api/stats status = %d", code)
	}
	if stats.Total != 4 || stats.Correct != 3 || stats.Incorrect != 1 {
		t.Errorf("totals = %d/%d/%d, want 4/3/1", stats.Total, stats.Correct, stats.Incorrect)
	}
	if len(stats.Keys) != 2 || stats.Keys[0].Key != "A" || stats.Keys[0].Accuracy != 0.5 {
		t.Errorf("keys = %+v", stats.Keys)
	}

	// 2. A window drops the old J.
	stats = statsResponse{}
	getJSON("/api/stats?since=1h", &stats)
	if stats.Total != 3 || stats.Since == "" {
		t.Errorf("windowed stats = %+v, want total 3 and since set", stats)
	}
	if code := getJSON("/api/stats?since=yesterday", nil); code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want %d", code, http.StatusBadRequest)
	}

	// 3. Recent outcomes, newest first, filtered by key.
	var recent outcomesResponse
	getJSON("/api/outcomes?key=a&limit=10", &recent)
	if len(recent.Outcomes) != 2 {
		t.Fatalf("outcomes for A = %d, want 2", len(recent.Outcomes))
	}
	if recent.Outcomes[0].Kind != store.KindIncorrect {
		t.Errorf("newest A outcome = %s, want incorrect", recent.Outcomes[0].Kind)
	}

	recent = outcomesResponse{}
	getJSON("/api/outcomes?limit=1", &recent)
	if len(recent.Outcomes) != 1 || recent.Outcomes[0].Key != "K" {
		t.Errorf("limit=1 = %+v, want the calibration of K", recent.Outcomes)
	}
	if code := getJSON("/api/outcomes?limit=0", nil); code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want %d", code, http.StatusBadRequest)
	}

	// 4. Unknown key yields an empty list, not null.
	resp, err := client.Get(ts.URL + "/api/outcomes?key=Z")
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&raw)
	resp.Body.Close()
	if string(raw["outcomes"]) != "[]" {
		t.Errorf("outcomes for Z = %s, want []", raw["outcomes"])
	}
}
