package pledge

import "sort"

// Per-kind evidence weights. Official documents and budget lines carry more
// signal than press coverage.
var kindWeights = map[string]float64{
	"OFFICIAL": 3.0,
	"BUDGET":   2.5,
	"REPORT":   2.0,
	"NEWS":     1.0,
}

const defaultKindWeight = 0.5

// Ranking is one pledge's position in the evidence-weighted board.
type Ranking struct {
	PledgeID      string   `json:"pledge_id"`
	Title         string   `json:"title"`
	Status        *string  `json:"status"`
	Progress      *float64 `json:"progress"`
	Score         float64  `json:"score"`
	EvidenceCount int      `json:"evidence_count"`
}

// Rank scores each pledge by the weighted sum of its evidence and returns
// the board in descending score order. Ties break on evidence count, then
// pledge id, so the ordering is stable across runs.
func Rank(pledges []Pledge, evidence []Evidence) []Ranking {
	type agg struct {
		score float64
		count int
	}
	byPledge := make(map[string]agg, len(pledges))
	for _, e := range evidence {
		w, ok := kindWeights[e.Kind]
		if !ok {
			w = defaultKindWeight
		}
		a := byPledge[e.PledgeID]
		a.score += w
		a.count++
		byPledge[e.PledgeID] = a
	}

	out := make([]Ranking, 0, len(pledges))
	for _, p := range pledges {
		a := byPledge[p.PledgeID]
		out = append(out, Ranking{
			PledgeID:      p.PledgeID,
			Title:         p.Title,
			Status:        p.Status,
			Progress:      p.Progress,
			Score:         a.score,
			EvidenceCount: a.count,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].EvidenceCount != out[j].EvidenceCount {
			return out[i].EvidenceCount > out[j].EvidenceCount
		}
		return out[i].PledgeID < out[j].PledgeID
	})
	return out
}
