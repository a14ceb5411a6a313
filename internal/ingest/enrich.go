package ingest

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

// EnrichSummary is the outcome of one enrichment pass.
type EnrichSummary struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Enrich re-derives amount fields from the stored raw payloads of rows the
// list API left incomplete. It only ever fills NULL columns; values already
// present stay as they are.
func Enrich(ctx context.Context, st store.Store, limit int) (*EnrichSummary, error) {
	candidates, err := st.EnrichCandidates(ctx, limit)
	if err != nil {
		return nil, err
	}

	sum := &EnrichSummary{Scanned: len(candidates)}
	for _, c := range candidates {
		if len(c.Raw) == 0 {
			sum.Skipped++
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(c.Raw, &raw); err != nil {
			zap.L().Warn("unparseable raw payload", zap.String("bid_no", c.BidNo), zap.Error(err))
			sum.Skipped++
			continue
		}
		base, estimated, budget := tender.BudgetFromRaw(raw)
		if base == nil && estimated == nil && budget == nil {
			sum.Skipped++
			continue
		}
		changed, err := st.ApplyEnrichment(ctx, c.BidNo, base, estimated, budget)
		if err != nil {
			return sum, err
		}
		if changed {
			sum.Updated++
		} else {
			sum.Skipped++
		}
	}

	zap.L().Info("enrichment pass finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("updated", sum.Updated),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}
