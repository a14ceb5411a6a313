package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/g2b"
	"github.com/civicwatch/watchboard/internal/ingest"
	"github.com/civicwatch/watchboard/internal/tender"
)

// handleAdminIngest triggers a synchronous ingest run and returns its
// summary. Parameters come from the query string, optionally overridden by
// a JSON body. from/to are compact YYYYMMDDHHmm stamps; both absent means
// the trailing 24 hours.
func (s *Server) handleAdminIngest(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "ingest not available")
		return
	}

	q := r.URL.Query()
	req := struct {
		Biz       string `json:"biz"`
		NumOfRows int    `json:"numOfRows"`
		MaxPages  int    `json:"maxPages"`
		ChunkDays int    `json:"chunkDays"`
		From      string `json:"from"`
		To        string `json:"to"`
	}{
		Biz:       q.Get("biz"),
		NumOfRows: parseLimit(q.Get("numOfRows")),
		MaxPages:  parseLimit(q.Get("maxPages")),
		ChunkDays: parseLimit(q.Get("chunkDays")),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Biz == "" {
		req.Biz = "cnstwk"
	}
	if _, err := g2b.OperationFor(req.Biz); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := ingest.Options{
		Biz:       req.Biz,
		NumRows:   req.NumOfRows,
		MaxPages:  req.MaxPages,
		ChunkDays: req.ChunkDays,
	}
	if req.From != "" || req.To != "" {
		from, err := g2b.ParseStamp(req.From)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from stamp")
			return
		}
		to, err := g2b.ParseStamp(req.To)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to stamp")
			return
		}
		opts.From, opts.To = from, to
	}

	sum, err := s.runner.Run(r.Context(), opts)
	if err != nil {
		zap.L().Error("admin ingest", zap.Error(err))
		respondError(w, http.StatusBadGateway, "ingest failed: "+err.Error())
		return
	}
	respondOK(w, envelope{"summary": sum})
}

func (s *Server) handleAdminEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	// An empty body is fine here; the limit just defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	sum, err := ingest.Enrich(r.Context(), s.store, req.Limit)
	if err != nil {
		zap.L().Error("admin enrich", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "enrich failed")
		return
	}
	respondOK(w, envelope{"summary": sum})
}

// handleAdminBids accepts hand-supplied raw items and pushes them through
// the same normalizer as the API ingest, tagged as manual.
func (s *Server) handleAdminBids(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(req.Rows) == 0 {
		respondError(w, http.StatusBadRequest, "no rows")
		return
	}

	now := time.Now()
	source := tender.SourceManual
	var kept []*tender.Tender
	var dropped int
	for _, item := range req.Rows {
		t, ok := tender.Normalize(item, now)
		if !ok {
			dropped++
			continue
		}
		t.Source = &source
		if t.Agency != nil {
			scope := s.rules.Classify(*t.Agency)
			t.Scope = &scope
		}
		kept = append(kept, t)
	}

	if len(kept) == 0 {
		respondError(w, http.StatusBadRequest, "no valid rows")
		return
	}

	upserted, err := s.store.UpsertTenders(r.Context(), kept)
	if err != nil {
		zap.L().Error("admin bids upsert", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "upsert failed")
		return
	}

	respondOK(w, envelope{
		"received": len(req.Rows),
		"kept":     len(kept),
		"dropped":  dropped,
		"upserted": upserted,
	})
}

func (s *Server) handleAdminIngests(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListIngests(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		zap.L().Error("list ingests", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	respondOK(w, envelope{"data": entries})
}
