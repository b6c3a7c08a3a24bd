package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/finger"
	"github.com/alexhamidi/typing-tracker/internal/store"
)

// historyHandler serves the recorded keystroke outcomes.
type historyHandler struct {
	store *store.Store
}

type keyStatResponse struct {
	store.KeyStat
	Accuracy float64 `json:"accuracy"`
}

type statsResponse struct {
	Since     string            `json:"since,omitempty"`
	Total     int               `json:"total"`
	Correct   int               `json:"correct"`
	Incorrect int               `json:"incorrect"`
	Accuracy  float64           `json:"accuracy"`
	Keys      []keyStatResponse `json:"keys"`
}

// stats handles GET /api/stats?since=24h and returns per-key accuracy.
func (h *historyHandler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "since must be a positive duration")
			return
		}
		since = time.Now().Add(-d)
	}

	stats, err := h.store.Outcomes().Summary(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarise outcomes")
		return
	}

	resp := statsResponse{Keys: make([]keyStatResponse, 0, len(stats))}
	if !since.IsZero() {
		resp.Since = since.UTC().Format(time.RFC3339)
	}
	var total store.KeyStat
	for _, k := range stats {
		resp.Keys = append(resp.Keys, keyStatResponse{KeyStat: k, Accuracy: k.Accuracy()})
		total.Total += k.Total
		total.Correct += k.Correct
		total.Incorrect += k.Incorrect
	}
	resp.Total, resp.Correct, resp.Incorrect = total.Total, total.Correct, total.Incorrect
	resp.Accuracy = total.Accuracy()

	writeJSON(w, http.StatusOK, resp)
}

type outcomesResponse struct {
	Outcomes []*store.Outcome `json:"outcomes"`
}

// outcomes handles GET /api/outcomes?key=A&limit=20, newest first.
func (h *historyHandler) outcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	key := q.Get("key")
	if key != "" {
		key = finger.NormalizeKey(key)
	}

	list, err := h.store.Outcomes().Recent(r.Context(), key, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list outcomes")
		return
	}
	if list == nil {
		list = []*store.Outcome{}
	}
	writeJSON(w, http.StatusOK, outcomesResponse{Outcomes: list})
}
