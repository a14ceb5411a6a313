package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/pledge"
	"github.com/civicwatch/watchboard/internal/store"
)

// Action types are stored upper-cased; input is case-insensitive.
var allowedActionTypes = map[string]bool{
	"CHEER":  true,
	"WATCH":  true,
	"REPORT": true,
}

func (s *Server) handleListPledges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cursorAt, ok := parseCursorTime(q.Get("cursorUpdatedAt"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cursorUpdatedAt")
		return
	}
	cursorID := q.Get("cursorPledgeId")
	if cursorAt != nil && cursorID == "" {
		respondError(w, http.StatusBadRequest, "cursorUpdatedAt requires cursorPledgeId")
		return
	}

	f := store.PledgeFilter{
		Term:   q.Get("term"),
		Mayor:  q.Get("mayor"),
		Query:  q.Get("q"),
		Limit:  parseLimit(q.Get("limit")),
		Cursor: store.PledgeCursor{UpdatedAt: cursorAt, PledgeID: cursorID},
	}

	items, err := s.store.ListPledges(r.Context(), f)
	if err != nil {
		zap.L().Error("list pledges", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	respondOK(w, envelope{
		"data":       items,
		"nextCursor": pledgeNextCursor(items, f.Limit),
	})
}

func (s *Server) handleGetPledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.store.GetPledge(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "pledge not found")
		return
	}
	if err != nil {
		zap.L().Error("get pledge", zap.String("pledge_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	updates, err := s.store.ListPledgeUpdates(r.Context(), id, 50)
	if err != nil {
		zap.L().Error("list pledge updates", zap.String("pledge_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	evidence, err := s.store.ListPledgeEvidence(r.Context(), id, 50)
	if err != nil {
		zap.L().Error("list pledge evidence", zap.String("pledge_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondOK(w, envelope{
		"data":     p,
		"updates":  updates,
		"evidence": evidence,
	})
}

func (s *Server) handlePostAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		ActionType string          `json:"action_type"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	actionType := strings.ToUpper(strings.TrimSpace(req.ActionType))
	if !allowedActionTypes[actionType] {
		respondError(w, http.StatusBadRequest, "invalid action_type")
		return
	}

	a := &pledge.Action{
		PledgeID:   id,
		ActionType: actionType,
		ActorHash:  s.actorHash(r),
		Payload:    req.Payload,
	}
	err := s.store.InsertAction(r.Context(), a)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "pledge not found")
	case errors.Is(err, store.ErrDuplicateAction):
		respondError(w, http.StatusConflict, "action already recorded today")
	case err != nil:
		zap.L().Error("insert action", zap.String("pledge_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "action failed")
	default:
		respondOK(w, envelope{"action": a})
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Dashboard(r.Context())
	if err != nil {
		zap.L().Error("dashboard", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "dashboard failed")
		return
	}
	respondOK(w, envelope{"stats": stats})
}

// handleMetrics serves the evidence-weighted pledge board.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	pledges, err := s.allPledges(r.Context())
	if err != nil {
		zap.L().Error("metrics pledges", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "metrics failed")
		return
	}
	evidence, err := s.store.AllEvidence(r.Context())
	if err != nil {
		zap.L().Error("metrics evidence", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "metrics failed")
		return
	}
	respondOK(w, envelope{"rankings": pledge.Rank(pledges, evidence)})
}

// allPledges pages through the whole listing. Bounded; the pledge set is a
// few hundred rows at most.
func (s *Server) allPledges(ctx context.Context) ([]pledge.Pledge, error) {
	var (
		out    []pledge.Pledge
		cursor store.PledgeCursor
	)
	for range 50 {
		page, err := s.store.ListPledges(ctx, store.PledgeFilter{Limit: 100, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < 100 {
			break
		}
		last := page[len(page)-1]
		cursor = store.PledgeCursor{UpdatedAt: last.UpdatedAt, PledgeID: last.PledgeID}
	}
	return out, nil
}

func pledgeNextCursor(items []pledge.Pledge, limit int) any {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if len(items) < limit {
		return nil
	}
	last := items[len(items)-1]
	cursor := map[string]any{"cursorPledgeId": last.PledgeID}
	if last.UpdatedAt != nil {
		cursor["cursorUpdatedAt"] = last.UpdatedAt.Format(time.RFC3339)
	}
	return cursor
}
