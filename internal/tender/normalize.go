package tender

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Candidate field names per canonical attribute, in priority order. The
// upstream API serves the same logical field under different names (and
// casings) depending on the operation, so every lookup goes through the
// same ordered, case-folded chain.
var (
	keysBidNtceNo  = []string{"bidNtceNo"}
	keysBidNtceOrd = []string{"bidNtceOrd"}
	keysTitle      = []string{"bidNtceNm", "ntceNm"}
	keysAgency     = []string{"ntceInsttNm", "dminsttNm"}
	keysDemandOrg  = []string{"dmndInsttNm", "dminsttNm"}
	keysAnnounced  = []string{"bidNtceDt", "ntceDt"}
	keysOpenAt     = []string{"opengDt"}
	keysBaseAmount = []string{"bscAmt", "baseAmt", "base_amount"}
	keysEstimated  = []string{"presmptPrce", "estmtdAmt", "estimated_price"}
)

// SourceG2B tags rows pulled from the open API, as opposed to manual ingestion.
const (
	SourceG2B    = "g2b_data_go_kr"
	SourceManual = "manual_ingest"
)

// Normalize maps one raw upstream item onto a canonical Tender. Returns
// ok=false when the announcement number is absent; such items are dropped,
// not treated as a batch error.
func Normalize(raw map[string]any, now time.Time) (*Tender, bool) {
	idx := foldKeys(raw)

	ntceNo := strings.TrimSpace(pickString(raw, idx, keysBidNtceNo))
	if ntceNo == "" {
		return nil, false
	}
	ord := strings.TrimSpace(pickString(raw, idx, keysBidNtceOrd))

	bidNo := ntceNo
	if ord != "" {
		bidNo = ntceNo + "-" + ord
	}

	t := &Tender{
		BidNo:          bidNo,
		Title:          optString(pickString(raw, idx, keysTitle)),
		Agency:         optString(pickString(raw, idx, keysAgency)),
		DemandOrg:      optString(pickString(raw, idx, keysDemandOrg)),
		AnnouncedAt:    DateOnly(pick(raw, idx, keysAnnounced)),
		OpenAt:         optString(pickString(raw, idx, keysOpenAt)),
		BaseAmount:     ParseAmount(pick(raw, idx, keysBaseAmount)),
		EstimatedPrice: ParseAmount(pick(raw, idx, keysEstimated)),
		BidNtceNo:      optString(ntceNo),
		UpdatedAt:      now.UTC(),
	}
	if ord != "" {
		t.BidNtceOrd = optString(ord)
	}
	t.Budget = firstAmount(t.BaseAmount, t.EstimatedPrice)

	src := SourceG2B
	t.Source = &src

	if rawJSON, err := json.Marshal(raw); err == nil {
		t.Raw = rawJSON
	}

	return t, true
}

// BudgetFromRaw re-derives the budget fields from a stored raw item, for the
// enrichment pass over rows the list API left without amounts.
func BudgetFromRaw(raw map[string]any) (base, estimated, budget *float64) {
	if raw == nil {
		return nil, nil, nil
	}
	idx := foldKeys(raw)
	base = ParseAmount(pick(raw, idx, keysBaseAmount))
	estimated = ParseAmount(pick(raw, idx, keysEstimated))
	budget = firstAmount(base, estimated)
	return base, estimated, budget
}

// ParseAmount parses a numeric value that may arrive as a JSON number or as
// a string with thousands separators ("1,234,500"). Unparseable or
// non-finite input yields nil, never an error.
func ParseAmount(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case json.Number:
		return ParseAmount(x.String())
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// DateOnly reduces an upstream timestamp to a day-precision time. Accepted
// forms: "YYYY-MM-DD..." (any suffix) and 8+ digit compact stamps
// ("20260204", "202602042351", ...). Anything else yields nil.
func DateOnly(v any) *time.Time {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return nil
	}

	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return &t
		}
		return nil
	}

	if len(s) >= 8 && allDigits(s[:8]) {
		if t, err := time.Parse("20060102", s[:8]); err == nil {
			return &t
		}
	}
	return nil
}

// NormalizeStamp rewrites 12/14-digit compact timestamps into
// "YYYY-MM-DD HH:MM:SS". Already-separated stamps and unrecognized input
// pass through unchanged so the raw value is never lost.
func NormalizeStamp(v any) string {
	s := strings.TrimSpace(toString(v))
	if (len(s) == 12 || len(s) == 14) && allDigits(s) {
		sec := "00"
		if len(s) == 14 {
			sec = s[12:14]
		}
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8] + " " + s[8:10] + ":" + s[10:12] + ":" + sec
	}
	return s
}

func firstAmount(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// foldKeys builds a lowercased key -> original key index so candidate
// lookups tolerate the API's inconsistent casing.
func foldKeys(raw map[string]any) map[string]string {
	idx := make(map[string]string, len(raw))
	for k := range raw {
		folded := strings.ToLower(k)
		if _, exists := idx[folded]; !exists {
			idx[folded] = k
		}
	}
	return idx
}

func pick(raw map[string]any, idx map[string]string, candidates []string) any {
	for _, c := range candidates {
		if orig, ok := idx[strings.ToLower(c)]; ok {
			if v := raw[orig]; v != nil {
				return v
			}
		}
	}
	return nil
}

func pickString(raw map[string]any, idx map[string]string, candidates []string) string {
	for _, c := range candidates {
		if orig, ok := idx[strings.ToLower(c)]; ok {
			if s := strings.TrimSpace(toString(raw[orig])); s != "" {
				return s
			}
		}
	}
	return ""
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
