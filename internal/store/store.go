// Package store provides persistence for tenders, pledges, and ingest runs,
// with Postgres as the primary backend and SQLite as a lightweight
// alternative for local use.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicwatch/watchboard/internal/pledge"
	"github.com/civicwatch/watchboard/internal/tender"
)

// Sentinel errors shared by both backends.
var (
	ErrNotFound        = eris.New("store: not found")
	ErrDuplicateAction = eris.New("store: action already recorded today")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TenderCursor is a keyset-pagination position in the tender listing:
// everything strictly after (announced_at desc, bid_no desc) the named row.
// AnnouncedAt is nil when paging through rows without an announcement
// timestamp, which sort after all dated rows.
type TenderCursor struct {
	AnnouncedAt *time.Time
	BidNo       string
}

// Empty reports whether the cursor marks the start of the listing.
func (c TenderCursor) Empty() bool { return c.BidNo == "" }

// TenderFilter narrows and pages the tender listing.
type TenderFilter struct {
	Source string
	Scope  string
	Query  string
	Limit  int
	Cursor TenderCursor
}

// PledgeCursor is the keyset position in the pledge listing, ordered by
// (updated_at desc, pledge_id desc).
type PledgeCursor struct {
	UpdatedAt *time.Time
	PledgeID  string
}

// Empty reports whether the cursor marks the start of the listing.
func (c PledgeCursor) Empty() bool { return c.PledgeID == "" }

// PledgeFilter narrows and pages the pledge listing.
type PledgeFilter struct {
	Term   string
	Mayor  string
	Query  string
	Limit  int
	Cursor PledgeCursor
}

// IngestEntry is one recorded ingest run.
type IngestEntry struct {
	ID         int64      `json:"id"`
	Source     string     `json:"source"`
	Operation  *string    `json:"operation"`
	Window     *string    `json:"window"`
	Status     string     `json:"status"`
	Fetched    int64      `json:"fetched"`
	Upserted   int64      `json:"upserted"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Ingest run statuses.
const (
	IngestRunning   = "running"
	IngestCompleted = "completed"
	IngestFailed    = "failed"
)

// DashboardStats aggregates the numbers the dashboard endpoint serves.
type DashboardStats struct {
	TotalPledges  int             `json:"total_pledges"`
	StatusCounts  map[string]int  `json:"status_counts"`
	AvgProgress   *float64        `json:"avg_progress"`
	TotalTenders  int64           `json:"total_tenders"`
	ScopeCounts   map[string]int64 `json:"scope_counts"`
	EvidenceCount int64           `json:"evidence_count"`
	RecentUpdates []pledge.Update `json:"recent_updates"`
}

// Store is the persistence interface shared by the Postgres and SQLite
// backends.
type Store interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()

	UpsertTenders(ctx context.Context, tenders []*tender.Tender) (int64, error)
	ListTenders(ctx context.Context, f TenderFilter) ([]tender.Tender, error)
	GetTender(ctx context.Context, bidNo string) (*tender.Tender, error)
	CountTenders(ctx context.Context) (int64, error)
	EnrichCandidates(ctx context.Context, limit int) ([]tender.Tender, error)
	ApplyEnrichment(ctx context.Context, bidNo string, base, estimated, budget *float64) (bool, error)

	ListPledges(ctx context.Context, f PledgeFilter) ([]pledge.Pledge, error)
	GetPledge(ctx context.Context, id string) (*pledge.Pledge, error)
	ListPledgeUpdates(ctx context.Context, pledgeID string, limit int) ([]pledge.Update, error)
	ListPledgeEvidence(ctx context.Context, pledgeID string, limit int) ([]pledge.Evidence, error)
	AllEvidence(ctx context.Context) ([]pledge.Evidence, error)
	InsertAction(ctx context.Context, a *pledge.Action) error

	Dashboard(ctx context.Context) (*DashboardStats, error)

	StartIngest(ctx context.Context, source, operation, window string) (int64, error)
	CompleteIngest(ctx context.Context, id, fetched, upserted int64) error
	FailIngest(ctx context.Context, id int64, msg string) error
	ListIngests(ctx context.Context, limit int) ([]IngestEntry, error)
}

// clampLimit applies the listing page-size bounds.
func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}
