// Package tender defines the canonical tender row and the normalization
// logic that maps raw bid-notice API items onto it.
package tender

import (
	"encoding/json"
	"time"
)

// Scope classifies the announcing organization.
const (
	ScopeCity  = "CITY"
	ScopeEdu   = "EDU"
	ScopeOther = "OTHER"
)

// Tender is the persisted procurement announcement record. BidNo is the
// natural key; Raw preserves the original upstream item for later
// re-derivation of fields the list API did not carry.
type Tender struct {
	BidNo          string          `json:"bid_no"`
	Title          *string         `json:"title"`
	Agency         *string         `json:"agency"`
	DemandOrg      *string         `json:"demand_org"`
	AnnouncedAt    *time.Time      `json:"announced_at"`
	OpenAt         *string         `json:"open_at"`
	Budget         *float64        `json:"budget"`
	BaseAmount     *float64        `json:"base_amount"`
	EstimatedPrice *float64        `json:"estimated_price"`
	BidNtceNo      *string         `json:"bid_ntce_no"`
	BidNtceOrd     *string         `json:"bid_ntce_ord"`
	Source         *string         `json:"source"`
	Scope          *string         `json:"scope"`
	SourceKey      *string         `json:"source_key"`
	Raw            json.RawMessage `json:"raw,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AnnouncedDate returns announced_at formatted as YYYY-MM-DD, or "" when unset.
func (t *Tender) AnnouncedDate() string {
	if t.AnnouncedAt == nil {
		return ""
	}
	return t.AnnouncedAt.Format("2006-01-02")
}

// Columns lists the tenders table columns in upsert order.
func Columns() []string {
	return []string{
		"bid_no", "title", "agency", "demand_org", "announced_at", "open_at",
		"budget", "base_amount", "estimated_price",
		"bid_ntce_no", "bid_ntce_ord", "source", "scope", "source_key",
		"raw", "updated_at",
	}
}

// Row flattens the tender into upsert column order, matching Columns().
func (t *Tender) Row() []any {
	return []any{
		t.BidNo, t.Title, t.Agency, t.DemandOrg, t.AnnouncedAt, t.OpenAt,
		t.Budget, t.BaseAmount, t.EstimatedPrice,
		t.BidNtceNo, t.BidNtceOrd, t.Source, t.Scope, t.SourceKey,
		t.Raw, t.UpdatedAt,
	}
}
