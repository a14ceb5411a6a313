// Package pledge defines the municipal pledge records the watchboard
// tracks alongside tenders, and the evidence-weighted ranking over them.
package pledge

import (
	"encoding/json"
	"time"
)

// Pledge is one tracked municipal pledge.
type Pledge struct {
	PledgeID  string     `json:"pledge_id"`
	Term      *string    `json:"term"`
	Mayor     *string    `json:"mayor"`
	Title     string     `json:"title"`
	Category  *string    `json:"category"`
	Status    *string    `json:"status"`
	Progress  *float64   `json:"progress"`
	OwnerDept *string    `json:"owner_dept"`
	Summary   *string    `json:"summary"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Update is one progress note attached to a pledge.
type Update struct {
	ID            string     `json:"id"`
	PledgeID      string     `json:"pledge_id"`
	UpdateDate    *time.Time `json:"update_date"`
	Note          *string    `json:"note"`
	ProgressDelta *float64   `json:"progress_delta"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Evidence is one supporting record (news article, official document,
// budget line) attached to a pledge.
type Evidence struct {
	ID          string     `json:"id"`
	PledgeID    string     `json:"pledge_id"`
	Kind        string     `json:"kind"`
	Title       *string    `json:"title"`
	URL         *string    `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Action is one citizen reaction to a pledge. ActorHash pseudonymizes the
// actor; the store enforces one action per actor per pledge per day.
type Action struct {
	ID         string          `json:"id"`
	PledgeID   string          `json:"pledge_id"`
	ActionType string          `json:"action_type"`
	ActorHash  string          `json:"actor_hash"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
