package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

// handleListBids serves the keyset-paged tender listing. The cursor is the
// (cursorAnnouncedAt, cursorBidNo) pair echoed from the previous page;
// cursorBidNo alone pages through rows without an announcement timestamp.
func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cursorAt, ok := parseCursorTime(q.Get("cursorAnnouncedAt"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cursorAnnouncedAt")
		return
	}
	cursorBid := q.Get("cursorBidNo")
	if cursorAt != nil && cursorBid == "" {
		respondError(w, http.StatusBadRequest, "cursorAnnouncedAt requires cursorBidNo")
		return
	}

	f := store.TenderFilter{
		Source: q.Get("source"),
		Scope:  q.Get("scope"),
		Query:  q.Get("q"),
		Limit:  parseLimit(q.Get("limit")),
		Cursor: store.TenderCursor{AnnouncedAt: cursorAt, BidNo: cursorBid},
	}

	items, err := s.store.ListTenders(r.Context(), f)
	if err != nil {
		zap.L().Error("list tenders", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	respondOK(w, envelope{
		"data":       items,
		"nextCursor": tenderNextCursor(items, f.Limit),
	})
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	bidNo := chi.URLParam(r, "bidNo")
	t, err := s.store.GetTender(r.Context(), bidNo)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "bid not found")
		return
	}
	if err != nil {
		zap.L().Error("get tender", zap.String("bid_no", bidNo), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	respondOK(w, envelope{"data": t})
}

// tenderNextCursor derives the next-page cursor from a full page's last row.
// A short page means the listing is exhausted.
func tenderNextCursor(items []tender.Tender, limit int) any {
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
	cursor := map[string]any{"cursorBidNo": last.BidNo}
	if last.AnnouncedAt != nil {
		cursor["cursorAnnouncedAt"] = last.AnnouncedAt.Format(time.RFC3339)
	}
	return cursor
}
