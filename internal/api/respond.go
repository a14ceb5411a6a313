package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Every response carries the ok flag; errors add a message, successes merge
// their payload fields into the envelope.
type envelope map[string]any

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondOK(w http.ResponseWriter, fields envelope) {
	body := envelope{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	respondJSON(w, http.StatusOK, body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{"ok": false, "error": msg})
}

// parseCursorTime accepts RFC 3339 and plain dates, the two forms clients
// echo back from listing responses.
func parseCursorTime(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func parseLimit(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > 1000 {
			return 1000
		}
	}
	return n
}
