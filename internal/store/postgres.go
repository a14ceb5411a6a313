package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civicwatch/watchboard/internal/db"
	"github.com/civicwatch/watchboard/internal/pledge"
	"github.com/civicwatch/watchboard/internal/tender"
)

// Postgres is the primary Store backend.
type Postgres struct {
	pool db.Pool
}

// NewPostgres connects a pgx pool to the given database URL.
func NewPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse database url")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var postgresMigration = []string{
	`CREATE TABLE IF NOT EXISTS tenders (
		bid_no TEXT PRIMARY KEY,
		title TEXT,
		agency TEXT,
		demand_org TEXT,
		announced_at TIMESTAMPTZ,
		open_at TEXT,
		budget DOUBLE PRECISION,
		base_amount DOUBLE PRECISION,
		estimated_price DOUBLE PRECISION,
		bid_ntce_no TEXT,
		bid_ntce_ord TEXT,
		source TEXT,
		scope TEXT,
		source_key TEXT,
		raw JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_announced ON tenders (announced_at DESC, bid_no DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_scope ON tenders (scope)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_source ON tenders (source)`,
	`CREATE TABLE IF NOT EXISTS ingest_log (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		operation TEXT,
		window_range TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		fetched BIGINT NOT NULL DEFAULT 0,
		upserted BIGINT NOT NULL DEFAULT 0,
		error TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS pledges (
		pledge_id TEXT PRIMARY KEY,
		term TEXT,
		mayor TEXT,
		title TEXT NOT NULL,
		category TEXT,
		status TEXT,
		progress DOUBLE PRECISION,
		owner_dept TEXT,
		summary TEXT,
		created_at TIMESTAMPTZ DEFAULT now(),
		updated_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pledges_updated ON pledges (updated_at DESC, pledge_id DESC)`,
	`CREATE TABLE IF NOT EXISTS pledge_updates (
		id TEXT PRIMARY KEY,
		pledge_id TEXT NOT NULL REFERENCES pledges(pledge_id),
		update_date DATE,
		note TEXT,
		progress_delta DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pledge_evidence (
		id TEXT PRIMARY KEY,
		pledge_id TEXT NOT NULL REFERENCES pledges(pledge_id),
		kind TEXT NOT NULL,
		title TEXT,
		url TEXT,
		published_at DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS citizen_actions (
		id TEXT PRIMARY KEY,
		pledge_id TEXT NOT NULL REFERENCES pledges(pledge_id),
		action_type TEXT NOT NULL,
		actor_hash TEXT NOT NULL,
		payload JSONB,
		action_date DATE NOT NULL DEFAULT CURRENT_DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_actions_once_per_day
		ON citizen_actions (pledge_id, action_type, actor_hash, action_date)`,
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range postgresMigration {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: migrate")
		}
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// UpsertTenders bulk-upserts on the bid_no natural key. The three amount
// columns are additive: a stored value survives a later page that carries
// NULL for it.
func (s *Postgres) UpsertTenders(ctx context.Context, tenders []*tender.Tender) (int64, error) {
	rows := make([][]any, 0, len(tenders))
	for _, t := range tenders {
		rows = append(rows, t.Row())
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tenders",
		Columns:      tender.Columns(),
		ConflictKeys: []string{"bid_no"},
		PreserveCols: []string{"budget", "base_amount", "estimated_price"},
	}, rows)
}

const tenderListCols = `bid_no, title, agency, demand_org, announced_at, open_at,
	budget, base_amount, estimated_price, bid_ntce_no, bid_ntce_ord,
	source, scope, source_key, updated_at`

// ListTenders pages the listing by keyset on (announced_at desc, bid_no
// desc). Rows without an announcement timestamp sort last and are paged by
// bid_no alone once the cursor enters that region.
func (s *Postgres) ListTenders(ctx context.Context, f TenderFilter) ([]tender.Tender, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Source != "" {
		conds = append(conds, "source = "+arg(f.Source))
	}
	if f.Scope != "" {
		conds = append(conds, "scope = "+arg(f.Scope))
	}
	if f.Query != "" {
		p := "%" + f.Query + "%"
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR agency ILIKE %s OR bid_no ILIKE %s)",
			arg(p), arg(p), arg(p)))
	}
	if !f.Cursor.Empty() {
		if f.Cursor.AnnouncedAt != nil {
			// NULL-announced rows sort after every dated row, so a dated
			// cursor must still admit them.
			conds = append(conds, fmt.Sprintf(
				"(announced_at < %s OR (announced_at = %s AND bid_no < %s) OR announced_at IS NULL)",
				arg(*f.Cursor.AnnouncedAt), arg(*f.Cursor.AnnouncedAt), arg(f.Cursor.BidNo)))
		} else {
			conds = append(conds, "announced_at IS NULL AND bid_no < "+arg(f.Cursor.BidNo))
		}
	}

	query := "SELECT " + tenderListCols + " FROM tenders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY announced_at DESC NULLS LAST, bid_no DESC LIMIT " + arg(clampLimit(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list tenders")
	}
	defer rows.Close()

	var out []tender.Tender
	for rows.Next() {
		var t tender.Tender
		if err := rows.Scan(
			&t.BidNo, &t.Title, &t.Agency, &t.DemandOrg, &t.AnnouncedAt, &t.OpenAt,
			&t.Budget, &t.BaseAmount, &t.EstimatedPrice, &t.BidNtceNo, &t.BidNtceOrd,
			&t.Source, &t.Scope, &t.SourceKey, &t.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan tender")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTender fetches one row by natural key, raw payload included.
func (s *Postgres) GetTender(ctx context.Context, bidNo string) (*tender.Tender, error) {
	var t tender.Tender
	err := s.pool.QueryRow(ctx,
		"SELECT "+tenderListCols+", raw FROM tenders WHERE bid_no = $1", bidNo,
	).Scan(
		&t.BidNo, &t.Title, &t.Agency, &t.DemandOrg, &t.AnnouncedAt, &t.OpenAt,
		&t.Budget, &t.BaseAmount, &t.EstimatedPrice, &t.BidNtceNo, &t.BidNtceOrd,
		&t.Source, &t.Scope, &t.SourceKey, &t.UpdatedAt, &t.Raw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get tender %s", bidNo)
	}
	return &t, nil
}

func (s *Postgres) CountTenders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM tenders").Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: count tenders")
	}
	return n, nil
}

// EnrichCandidates returns rows missing any amount, newest first, with the
// raw payload so the caller can re-derive amounts from it.
func (s *Postgres) EnrichCandidates(ctx context.Context, limit int) ([]tender.Tender, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT bid_no, raw, base_amount, estimated_price, budget
		FROM tenders
		WHERE budget IS NULL OR base_amount IS NULL OR estimated_price IS NULL
		ORDER BY announced_at DESC NULLS LAST, bid_no DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: enrich candidates")
	}
	defer rows.Close()

	var out []tender.Tender
	for rows.Next() {
		var t tender.Tender
		if err := rows.Scan(&t.BidNo, &t.Raw, &t.BaseAmount, &t.EstimatedPrice, &t.Budget); err != nil {
			return nil, eris.Wrap(err, "store: scan enrich candidate")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyEnrichment fills in amounts on a row without touching values already
// present. Returns whether any column actually changed.
func (s *Postgres) ApplyEnrichment(ctx context.Context, bidNo string, base, estimated, budget *float64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE tenders SET
			base_amount = COALESCE(base_amount, $2),
			estimated_price = COALESCE(estimated_price, $3),
			budget = COALESCE(budget, $4),
			updated_at = now()
		WHERE bid_no = $1
		  AND (base_amount IS NULL OR estimated_price IS NULL OR budget IS NULL)`,
		bidNo, base, estimated, budget)
	if err != nil {
		return false, eris.Wrapf(err, "store: enrich %s", bidNo)
	}
	return tag.RowsAffected() > 0, nil
}

const pledgeCols = `pledge_id, term, mayor, title, category, status, progress,
	owner_dept, summary, created_at, updated_at`

func (s *Postgres) ListPledges(ctx context.Context, f PledgeFilter) ([]pledge.Pledge, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Term != "" {
		conds = append(conds, "term = "+arg(f.Term))
	}
	if f.Mayor != "" {
		conds = append(conds, "mayor = "+arg(f.Mayor))
	}
	if f.Query != "" {
		p := "%" + f.Query + "%"
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR category ILIKE %s OR summary ILIKE %s)",
			arg(p), arg(p), arg(p)))
	}
	if !f.Cursor.Empty() {
		if f.Cursor.UpdatedAt != nil {
			conds = append(conds, fmt.Sprintf(
				"(updated_at < %s OR (updated_at = %s AND pledge_id < %s) OR updated_at IS NULL)",
				arg(*f.Cursor.UpdatedAt), arg(*f.Cursor.UpdatedAt), arg(f.Cursor.PledgeID)))
		} else {
			conds = append(conds, "updated_at IS NULL AND pledge_id < "+arg(f.Cursor.PledgeID))
		}
	}

	query := "SELECT " + pledgeCols + " FROM pledges"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC NULLS LAST, pledge_id DESC LIMIT " + arg(clampLimit(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list pledges")
	}
	defer rows.Close()

	var out []pledge.Pledge
	for rows.Next() {
		var p pledge.Pledge
		if err := rows.Scan(
			&p.PledgeID, &p.Term, &p.Mayor, &p.Title, &p.Category, &p.Status,
			&p.Progress, &p.OwnerDept, &p.Summary, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan pledge")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) GetPledge(ctx context.Context, id string) (*pledge.Pledge, error) {
	var p pledge.Pledge
	err := s.pool.QueryRow(ctx,
		"SELECT "+pledgeCols+" FROM pledges WHERE pledge_id = $1", id,
	).Scan(
		&p.PledgeID, &p.Term, &p.Mayor, &p.Title, &p.Category, &p.Status,
		&p.Progress, &p.OwnerDept, &p.Summary, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get pledge %s", id)
	}
	return &p, nil
}

func (s *Postgres) ListPledgeUpdates(ctx context.Context, pledgeID string, limit int) ([]pledge.Update, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pledge_id, update_date, note, progress_delta, created_at
		FROM pledge_updates WHERE pledge_id = $1
		ORDER BY created_at DESC LIMIT $2`, pledgeID, clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: list pledge updates")
	}
	defer rows.Close()
	return scanUpdates(rows)
}

func (s *Postgres) ListPledgeEvidence(ctx context.Context, pledgeID string, limit int) ([]pledge.Evidence, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pledge_id, kind, title, url, published_at, created_at
		FROM pledge_evidence WHERE pledge_id = $1
		ORDER BY created_at DESC LIMIT $2`, pledgeID, clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: list pledge evidence")
	}
	defer rows.Close()
	return scanEvidence(rows)
}

// AllEvidence loads every evidence row for ranking.
func (s *Postgres) AllEvidence(ctx context.Context) ([]pledge.Evidence, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pledge_id, kind, title, url, published_at, created_at
		FROM pledge_evidence`)
	if err != nil {
		return nil, eris.Wrap(err, "store: all evidence")
	}
	defer rows.Close()
	return scanEvidence(rows)
}

// InsertAction records a citizen action. The unique index on
// (pledge_id, action_type, actor_hash, action_date) rejects repeats within
// the same day; that surfaces as ErrDuplicateAction. A foreign-key failure
// means the pledge does not exist.
func (s *Postgres) InsertAction(ctx context.Context, a *pledge.Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO citizen_actions (id, pledge_id, action_type, actor_hash, payload)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		a.ID, a.PledgeID, a.ActionType, a.ActorHash, a.Payload,
	).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrDuplicateAction
			case "23503":
				return ErrNotFound
			}
		}
		return eris.Wrap(err, "store: insert action")
	}
	return nil
}

func (s *Postgres) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		StatusCounts: map[string]int{},
		ScopeCounts:  map[string]int64{},
	}

	rows, err := s.pool.Query(ctx,
		"SELECT COALESCE(status, 'UNKNOWN'), count(*) FROM pledges GROUP BY 1")
	if err != nil {
		return nil, eris.Wrap(err, "store: dashboard status counts")
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan status count")
		}
		stats.StatusCounts[status] = n
		stats.TotalPledges += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: dashboard status counts")
	}

	if err := s.pool.QueryRow(ctx, "SELECT avg(progress) FROM pledges").Scan(&stats.AvgProgress); err != nil {
		return nil, eris.Wrap(err, "store: dashboard avg progress")
	}

	rows, err = s.pool.Query(ctx,
		"SELECT COALESCE(scope, 'OTHER'), count(*) FROM tenders GROUP BY 1")
	if err != nil {
		return nil, eris.Wrap(err, "store: dashboard scope counts")
	}
	for rows.Next() {
		var scope string
		var n int64
		if err := rows.Scan(&scope, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan scope count")
		}
		stats.ScopeCounts[scope] = n
		stats.TotalTenders += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: dashboard scope counts")
	}

	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM pledge_evidence").Scan(&stats.EvidenceCount); err != nil {
		return nil, eris.Wrap(err, "store: dashboard evidence count")
	}

	recent, err := s.pool.Query(ctx, `SELECT id, pledge_id, update_date, note, progress_delta, created_at
		FROM pledge_updates ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return nil, eris.Wrap(err, "store: dashboard recent updates")
	}
	defer recent.Close()
	stats.RecentUpdates, err = scanUpdates(recent)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Postgres) StartIngest(ctx context.Context, source, operation, window string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO ingest_log (source, operation, window_range, status)
		VALUES ($1, $2, $3, 'running') RETURNING id`,
		source, operation, window,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "store: start ingest")
	}
	return id, nil
}

func (s *Postgres) CompleteIngest(ctx context.Context, id, fetched, upserted int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE ingest_log
		SET status = 'completed', fetched = $2, upserted = $3, finished_at = now()
		WHERE id = $1`, id, fetched, upserted)
	if err != nil {
		return eris.Wrap(err, "store: complete ingest")
	}
	return nil
}

func (s *Postgres) FailIngest(ctx context.Context, id int64, msg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE ingest_log
		SET status = 'failed', error = $2, finished_at = now()
		WHERE id = $1`, id, msg)
	if err != nil {
		return eris.Wrap(err, "store: fail ingest")
	}
	return nil
}

func (s *Postgres) ListIngests(ctx context.Context, limit int) ([]IngestEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, source, operation, window_range, status,
			fetched, upserted, error, started_at, finished_at
		FROM ingest_log ORDER BY id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: list ingests")
	}
	defer rows.Close()

	var out []IngestEntry
	for rows.Next() {
		var e IngestEntry
		if err := rows.Scan(
			&e.ID, &e.Source, &e.Operation, &e.Window, &e.Status,
			&e.Fetched, &e.Upserted, &e.Error, &e.StartedAt, &e.FinishedAt,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan ingest entry")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanUpdates(rows pgx.Rows) ([]pledge.Update, error) {
	var out []pledge.Update
	for rows.Next() {
		var u pledge.Update
		if err := rows.Scan(&u.ID, &u.PledgeID, &u.UpdateDate, &u.Note, &u.ProgressDelta, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan update")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanEvidence(rows pgx.Rows) ([]pledge.Evidence, error) {
	var out []pledge.Evidence
	for rows.Next() {
		var e pledge.Evidence
		if err := rows.Scan(&e.ID, &e.PledgeID, &e.Kind, &e.Title, &e.URL, &e.PublishedAt, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan evidence")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
