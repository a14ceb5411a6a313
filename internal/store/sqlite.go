package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civicwatch/watchboard/internal/pledge"
	"github.com/civicwatch/watchboard/internal/tender"
)

// SQLite is the file-backed Store for local runs without a Postgres
// instance. Timestamps are stored as UTC RFC 3339 text so keyset
// comparisons stay lexicographic.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) a SQLite database at path.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open sqlite %s", path)
	}
	// modernc/sqlite serializes writes; a single connection avoids lock churn.
	conn.SetMaxOpenConns(1)
	return &SQLite{db: conn}, nil
}

var sqliteMigration = []string{
	`CREATE TABLE IF NOT EXISTS tenders (
		bid_no TEXT PRIMARY KEY,
		title TEXT,
		agency TEXT,
		demand_org TEXT,
		announced_at TEXT,
		open_at TEXT,
		budget REAL,
		base_amount REAL,
		estimated_price REAL,
		bid_ntce_no TEXT,
		bid_ntce_ord TEXT,
		source TEXT,
		scope TEXT,
		source_key TEXT,
		raw TEXT,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_announced ON tenders (announced_at DESC, bid_no DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_scope ON tenders (scope)`,
	`CREATE TABLE IF NOT EXISTS ingest_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		operation TEXT,
		window_range TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		fetched INTEGER NOT NULL DEFAULT 0,
		upserted INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS pledges (
		pledge_id TEXT PRIMARY KEY,
		term TEXT,
		mayor TEXT,
		title TEXT NOT NULL,
		category TEXT,
		status TEXT,
		progress REAL,
		owner_dept TEXT,
		summary TEXT,
		created_at TEXT,
		updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS pledge_updates (
		id TEXT PRIMARY KEY,
		pledge_id TEXT NOT NULL REFERENCES pledges(pledge_id),
		update_date TEXT,
		note TEXT,
		progress_delta REAL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pledge_evidence (
		id TEXT PRIMARY KEY,
		pledge_id TEXT NOT NULL REFERENCES pledges(pledge_id),
		kind TEXT NOT NULL,
		title TEXT,
		url TEXT,
		published_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS citizen_actions (
		id TEXT PRIMARY KEY,
		pledge_id TEXT NOT NULL REFERENCES pledges(pledge_id),
		action_type TEXT NOT NULL,
		actor_hash TEXT NOT NULL,
		payload TEXT,
		action_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_actions_once_per_day
		ON citizen_actions (pledge_id, action_type, actor_hash, action_date)`,
}

func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteMigration {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: sqlite migrate")
		}
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	s.db.Close()
}

// UpsertTenders writes row by row inside one transaction. The amount
// columns use COALESCE on the stored side so NULLs never erase values.
func (s *SQLite) UpsertTenders(ctx context.Context, tenders []*tender.Tender) (int64, error) {
	if len(tenders) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: sqlite begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tenders
		(bid_no, title, agency, demand_org, announced_at, open_at,
		 budget, base_amount, estimated_price, bid_ntce_no, bid_ntce_ord,
		 source, scope, source_key, raw, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bid_no) DO UPDATE SET
			title = excluded.title,
			agency = excluded.agency,
			demand_org = excluded.demand_org,
			announced_at = excluded.announced_at,
			open_at = excluded.open_at,
			budget = COALESCE(tenders.budget, excluded.budget),
			base_amount = COALESCE(tenders.base_amount, excluded.base_amount),
			estimated_price = COALESCE(tenders.estimated_price, excluded.estimated_price),
			bid_ntce_no = excluded.bid_ntce_no,
			bid_ntce_ord = excluded.bid_ntce_ord,
			source = excluded.source,
			scope = excluded.scope,
			source_key = excluded.source_key,
			raw = excluded.raw,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "store: sqlite prepare upsert")
	}
	defer stmt.Close()

	var n int64
	for _, t := range tenders {
		_, err := stmt.ExecContext(ctx,
			t.BidNo, t.Title, t.Agency, t.DemandOrg, timeText(t.AnnouncedAt), t.OpenAt,
			t.Budget, t.BaseAmount, t.EstimatedPrice, t.BidNtceNo, t.BidNtceOrd,
			t.Source, t.Scope, t.SourceKey, rawText(t.Raw), t.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "store: sqlite upsert %s", t.BidNo)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: sqlite commit")
	}
	return n, nil
}

func (s *SQLite) ListTenders(ctx context.Context, f TenderFilter) ([]tender.Tender, error) {
	var (
		conds []string
		args  []any
	)
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.Scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, f.Scope)
	}
	if f.Query != "" {
		p := "%" + strings.ToLower(f.Query) + "%"
		conds = append(conds, "(lower(title) LIKE ? OR lower(agency) LIKE ? OR lower(bid_no) LIKE ?)")
		args = append(args, p, p, p)
	}
	if !f.Cursor.Empty() {
		if f.Cursor.AnnouncedAt != nil {
			// NULL-announced rows sort after every dated row, so a dated
			// cursor must still admit them.
			c := timeText(f.Cursor.AnnouncedAt)
			conds = append(conds, "(announced_at < ? OR (announced_at = ? AND bid_no < ?) OR announced_at IS NULL)")
			args = append(args, c, c, f.Cursor.BidNo)
		} else {
			conds = append(conds, "announced_at IS NULL AND bid_no < ?")
			args = append(args, f.Cursor.BidNo)
		}
	}

	query := `SELECT bid_no, title, agency, demand_org, announced_at, open_at,
			budget, base_amount, estimated_price, bid_ntce_no, bid_ntce_ord,
			source, scope, source_key, updated_at
		FROM tenders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY announced_at DESC NULLS LAST, bid_no DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite list tenders")
	}
	defer rows.Close()

	var out []tender.Tender
	for rows.Next() {
		t, err := scanSQLiteTender(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLite) GetTender(ctx context.Context, bidNo string) (*tender.Tender, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bid_no, title, agency, demand_org, announced_at, open_at,
			budget, base_amount, estimated_price, bid_ntce_no, bid_ntce_ord,
			source, scope, source_key, updated_at, raw
		FROM tenders WHERE bid_no = ?`, bidNo)
	if err != nil {
		return nil, eris.Wrapf(err, "store: sqlite get tender %s", bidNo)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "store: sqlite get tender")
		}
		return nil, ErrNotFound
	}
	return scanSQLiteTender(rows, true)
}

func (s *SQLite) CountTenders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM tenders").Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: sqlite count tenders")
	}
	return n, nil
}

func (s *SQLite) EnrichCandidates(ctx context.Context, limit int) ([]tender.Tender, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT bid_no, raw, base_amount, estimated_price, budget
		FROM tenders
		WHERE budget IS NULL OR base_amount IS NULL OR estimated_price IS NULL
		ORDER BY announced_at DESC NULLS LAST, bid_no DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite enrich candidates")
	}
	defer rows.Close()

	var out []tender.Tender
	for rows.Next() {
		var t tender.Tender
		var raw sql.NullString
		if err := rows.Scan(&t.BidNo, &raw, &t.BaseAmount, &t.EstimatedPrice, &t.Budget); err != nil {
			return nil, eris.Wrap(err, "store: sqlite scan enrich candidate")
		}
		if raw.Valid {
			t.Raw = []byte(raw.String)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) ApplyEnrichment(ctx context.Context, bidNo string, base, estimated, budget *float64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tenders SET
			base_amount = COALESCE(base_amount, ?),
			estimated_price = COALESCE(estimated_price, ?),
			budget = COALESCE(budget, ?),
			updated_at = ?
		WHERE bid_no = ?
		  AND (base_amount IS NULL OR estimated_price IS NULL OR budget IS NULL)`,
		base, estimated, budget, time.Now().UTC().Format(time.RFC3339), bidNo)
	if err != nil {
		return false, eris.Wrapf(err, "store: sqlite enrich %s", bidNo)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "store: sqlite enrich rows affected")
	}
	return n > 0, nil
}

func (s *SQLite) ListPledges(ctx context.Context, f PledgeFilter) ([]pledge.Pledge, error) {
	var (
		conds []string
		args  []any
	)
	if f.Term != "" {
		conds = append(conds, "term = ?")
		args = append(args, f.Term)
	}
	if f.Mayor != "" {
		conds = append(conds, "mayor = ?")
		args = append(args, f.Mayor)
	}
	if f.Query != "" {
		p := "%" + strings.ToLower(f.Query) + "%"
		conds = append(conds, "(lower(title) LIKE ? OR lower(category) LIKE ? OR lower(summary) LIKE ?)")
		args = append(args, p, p, p)
	}
	if !f.Cursor.Empty() {
		if f.Cursor.UpdatedAt != nil {
			c := timeText(f.Cursor.UpdatedAt)
			conds = append(conds, "(updated_at < ? OR (updated_at = ? AND pledge_id < ?) OR updated_at IS NULL)")
			args = append(args, c, c, f.Cursor.PledgeID)
		} else {
			conds = append(conds, "updated_at IS NULL AND pledge_id < ?")
			args = append(args, f.Cursor.PledgeID)
		}
	}

	query := `SELECT pledge_id, term, mayor, title, category, status, progress,
			owner_dept, summary, created_at, updated_at
		FROM pledges`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC NULLS LAST, pledge_id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite list pledges")
	}
	defer rows.Close()

	var out []pledge.Pledge
	for rows.Next() {
		p, err := scanSQLitePledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLite) GetPledge(ctx context.Context, id string) (*pledge.Pledge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pledge_id, term, mayor, title, category, status, progress,
			owner_dept, summary, created_at, updated_at
		FROM pledges WHERE pledge_id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "store: sqlite get pledge %s", id)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "store: sqlite get pledge")
		}
		return nil, ErrNotFound
	}
	return scanSQLitePledge(rows)
}

func (s *SQLite) ListPledgeUpdates(ctx context.Context, pledgeID string, limit int) ([]pledge.Update, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pledge_id, update_date, note, progress_delta, created_at
		FROM pledge_updates WHERE pledge_id = ?
		ORDER BY created_at DESC LIMIT ?`, pledgeID, clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite list pledge updates")
	}
	defer rows.Close()
	return scanSQLiteUpdates(rows)
}

func (s *SQLite) ListPledgeEvidence(ctx context.Context, pledgeID string, limit int) ([]pledge.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pledge_id, kind, title, url, published_at, created_at
		FROM pledge_evidence WHERE pledge_id = ?
		ORDER BY created_at DESC LIMIT ?`, pledgeID, clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite list pledge evidence")
	}
	defer rows.Close()
	return scanSQLiteEvidence(rows)
}

func (s *SQLite) AllEvidence(ctx context.Context) ([]pledge.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pledge_id, kind, title, url, published_at, created_at
		FROM pledge_evidence`)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite all evidence")
	}
	defer rows.Close()
	return scanSQLiteEvidence(rows)
}

func (s *SQLite) InsertAction(ctx context.Context, a *pledge.Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var exists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM pledges WHERE pledge_id = ?", a.PledgeID).Scan(&exists); err != nil {
		return eris.Wrap(err, "store: sqlite check pledge")
	}
	if exists == 0 {
		return ErrNotFound
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO citizen_actions
		(id, pledge_id, action_type, actor_hash, payload, action_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PledgeID, a.ActionType, a.ActorHash, rawText(a.Payload),
		now.Format("2006-01-02"), now.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicateAction
		}
		return eris.Wrap(err, "store: sqlite insert action")
	}
	return nil
}

func (s *SQLite) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		StatusCounts: map[string]int{},
		ScopeCounts:  map[string]int64{},
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(status, 'UNKNOWN'), count(*) FROM pledges GROUP BY 1")
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite status counts")
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: sqlite scan status count")
		}
		stats.StatusCounts[status] = n
		stats.TotalPledges += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: sqlite status counts")
	}

	if err := s.db.QueryRowContext(ctx, "SELECT avg(progress) FROM pledges").Scan(&stats.AvgProgress); err != nil {
		return nil, eris.Wrap(err, "store: sqlite avg progress")
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT COALESCE(scope, 'OTHER'), count(*) FROM tenders GROUP BY 1")
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite scope counts")
	}
	for rows.Next() {
		var scope string
		var n int64
		if err := rows.Scan(&scope, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: sqlite scan scope count")
		}
		stats.ScopeCounts[scope] = n
		stats.TotalTenders += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: sqlite scope counts")
	}

	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM pledge_evidence").Scan(&stats.EvidenceCount); err != nil {
		return nil, eris.Wrap(err, "store: sqlite evidence count")
	}

	recent, err := s.db.QueryContext(ctx, `SELECT id, pledge_id, update_date, note, progress_delta, created_at
		FROM pledge_updates ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite recent updates")
	}
	defer recent.Close()
	stats.RecentUpdates, err = scanSQLiteUpdates(recent)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLite) StartIngest(ctx context.Context, source, operation, window string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO ingest_log (source, operation, window_range, status, started_at)
		VALUES (?, ?, ?, 'running', ?)`,
		source, operation, window, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, eris.Wrap(err, "store: sqlite start ingest")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "store: sqlite ingest id")
	}
	return id, nil
}

func (s *SQLite) CompleteIngest(ctx context.Context, id, fetched, upserted int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE ingest_log
		SET status = 'completed', fetched = ?, upserted = ?, finished_at = ?
		WHERE id = ?`, fetched, upserted, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return eris.Wrap(err, "store: sqlite complete ingest")
	}
	return nil
}

func (s *SQLite) FailIngest(ctx context.Context, id int64, msg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE ingest_log
		SET status = 'failed', error = ?, finished_at = ?
		WHERE id = ?`, msg, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return eris.Wrap(err, "store: sqlite fail ingest")
	}
	return nil
}

func (s *SQLite) ListIngests(ctx context.Context, limit int) ([]IngestEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, operation, window_range, status,
			fetched, upserted, error, started_at, finished_at
		FROM ingest_log ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite list ingests")
	}
	defer rows.Close()

	var out []IngestEntry
	for rows.Next() {
		var e IngestEntry
		var started sql.NullString
		var finished sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Source, &e.Operation, &e.Window, &e.Status,
			&e.Fetched, &e.Upserted, &e.Error, &started, &finished,
		); err != nil {
			return nil, eris.Wrap(err, "store: sqlite scan ingest entry")
		}
		if t := parseTimeText(started); t != nil {
			e.StartedAt = *t
		}
		e.FinishedAt = parseTimeText(finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSQLiteTender(rows *sql.Rows, withRaw bool) (*tender.Tender, error) {
	var t tender.Tender
	var announced, updated, raw sql.NullString

	dest := []any{
		&t.BidNo, &t.Title, &t.Agency, &t.DemandOrg, &announced, &t.OpenAt,
		&t.Budget, &t.BaseAmount, &t.EstimatedPrice, &t.BidNtceNo, &t.BidNtceOrd,
		&t.Source, &t.Scope, &t.SourceKey, &updated,
	}
	if withRaw {
		dest = append(dest, &raw)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, eris.Wrap(err, "store: sqlite scan tender")
	}
	t.AnnouncedAt = parseTimeText(announced)
	if u := parseTimeText(updated); u != nil {
		t.UpdatedAt = *u
	}
	if raw.Valid {
		t.Raw = []byte(raw.String)
	}
	return &t, nil
}

func scanSQLitePledge(rows *sql.Rows) (*pledge.Pledge, error) {
	var p pledge.Pledge
	var created, updated sql.NullString
	if err := rows.Scan(
		&p.PledgeID, &p.Term, &p.Mayor, &p.Title, &p.Category, &p.Status,
		&p.Progress, &p.OwnerDept, &p.Summary, &created, &updated,
	); err != nil {
		return nil, eris.Wrap(err, "store: sqlite scan pledge")
	}
	p.CreatedAt = parseTimeText(created)
	p.UpdatedAt = parseTimeText(updated)
	return &p, nil
}

func scanSQLiteUpdates(rows *sql.Rows) ([]pledge.Update, error) {
	var out []pledge.Update
	for rows.Next() {
		var u pledge.Update
		var date, created sql.NullString
		if err := rows.Scan(&u.ID, &u.PledgeID, &date, &u.Note, &u.ProgressDelta, &created); err != nil {
			return nil, eris.Wrap(err, "store: sqlite scan update")
		}
		u.UpdateDate = parseTimeText(date)
		if c := parseTimeText(created); c != nil {
			u.CreatedAt = *c
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanSQLiteEvidence(rows *sql.Rows) ([]pledge.Evidence, error) {
	var out []pledge.Evidence
	for rows.Next() {
		var e pledge.Evidence
		var published, created sql.NullString
		if err := rows.Scan(&e.ID, &e.PledgeID, &e.Kind, &e.Title, &e.URL, &published, &created); err != nil {
			return nil, eris.Wrap(err, "store: sqlite scan evidence")
		}
		e.PublishedAt = parseTimeText(published)
		if c := parseTimeText(created); c != nil {
			e.CreatedAt = *c
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// timeText formats a nullable time for storage and cursor comparison.
func timeText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func rawText(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// parseTimeText accepts RFC 3339 and plain dates.
func parseTimeText(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return &t
		}
	}
	return nil
}
