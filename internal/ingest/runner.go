// Package ingest drives the paged fetch loop: split the requested range
// into windows, walk each window's pages, normalize and filter the items,
// and bulk-upsert what survives.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/g2b"
	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

// inqryDiv 1 queries by registration datetime.
const inquiryByRegistration = "1"

// minChunkDays is the floor for window shrinking on result code 07.
const minChunkDays = 1

// Options configures one ingest run.
type Options struct {
	Biz       string
	NumRows   int
	MaxPages  int
	ChunkDays int
	From      time.Time
	To        time.Time
}

// WindowFailure records a window that was skipped after its error budget
// ran out. The run continues past it.
type WindowFailure struct {
	Window string `json:"window"`
	Error  string `json:"error"`
}

// Summary is the outcome of one ingest run.
type Summary struct {
	RunID    int64           `json:"run_id"`
	Biz      string          `json:"biz"`
	Windows  int             `json:"windows"`
	Pages    int             `json:"pages"`
	Fetched  int64           `json:"fetched"`
	Kept     int64           `json:"kept"`
	Upserted int64           `json:"upserted"`
	Failures []WindowFailure `json:"failures,omitempty"`
}

// Runner owns the fetch loop dependencies.
type Runner struct {
	client *g2b.Client
	store  store.Store
	rules  *tender.ScopeRules
	delay  time.Duration
	now    func() time.Time
}

// NewRunner wires a Runner. delay is the pause between page fetches.
func NewRunner(client *g2b.Client, st store.Store, rules *tender.ScopeRules, delay time.Duration) *Runner {
	return &Runner{
		client: client,
		store:  st,
		rules:  rules,
		delay:  delay,
		now:    time.Now,
	}
}

// Run executes one ingest over [From, To]. A failing window is recorded and
// skipped; the run only errors as a whole when every window failed or the
// context was canceled.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	op, err := g2b.OperationFor(opts.Biz)
	if err != nil {
		return nil, err
	}
	if opts.NumRows <= 0 {
		opts.NumRows = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	if opts.ChunkDays <= 0 {
		opts.ChunkDays = 7
	}

	from, to := opts.From, opts.To
	if from.IsZero() || to.IsZero() {
		w := g2b.DefaultWindow(r.now())
		from, to = w.Begin, w.End
	}
	windows := g2b.SplitWindows(from, to, opts.ChunkDays)
	if len(windows) == 0 {
		return nil, eris.Errorf("ingest: empty range %s..%s", from, to)
	}

	rangeLabel := fmt.Sprintf("%s-%s", windows[0].BeginStamp(), windows[len(windows)-1].EndStamp())
	runID, err := r.store.StartIngest(ctx, tender.SourceG2B, op, rangeLabel)
	if err != nil {
		return nil, err
	}

	sum := &Summary{RunID: runID, Biz: opts.Biz, Windows: len(windows)}
	zap.L().Info("ingest run started",
		zap.Int64("run_id", runID),
		zap.String("biz", opts.Biz),
		zap.String("range", rangeLabel),
		zap.Int("windows", len(windows)),
	)

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			r.store.FailIngest(ctx, runID, "canceled")
			return sum, eris.Wrap(err, "ingest: canceled")
		}
		if err := r.runWindow(ctx, op, w, opts, opts.ChunkDays, sum); err != nil {
			label := w.BeginStamp() + "-" + w.EndStamp()
			zap.L().Warn("window failed, continuing",
				zap.String("window", label),
				zap.Error(err),
			)
			sum.Failures = append(sum.Failures, WindowFailure{Window: label, Error: err.Error()})
		}
	}

	if len(sum.Failures) == sum.Windows {
		msg := fmt.Sprintf("all %d windows failed, first: %s", sum.Windows, sum.Failures[0].Error)
		if ferr := r.store.FailIngest(ctx, runID, msg); ferr != nil {
			zap.L().Error("record ingest failure", zap.Error(ferr))
		}
		return sum, eris.New("ingest: " + msg)
	}

	if err := r.store.CompleteIngest(ctx, runID, sum.Fetched, sum.Upserted); err != nil {
		return sum, err
	}
	zap.L().Info("ingest run completed",
		zap.Int64("run_id", runID),
		zap.Int64("fetched", sum.Fetched),
		zap.Int64("kept", sum.Kept),
		zap.Int64("upserted", sum.Upserted),
		zap.Int("failed_windows", len(sum.Failures)),
	)
	return sum, nil
}

// runWindow pages through one window. Result code 07 means the window is
// wider than the API accepts, so it is re-split at half the chunk size and
// each half retried, down to a one-day floor.
func (r *Runner) runWindow(ctx context.Context, op string, w g2b.Window, opts Options, chunkDays int, sum *Summary) error {
	err := r.fetchWindow(ctx, op, w, opts, sum)
	if !errors.Is(err, g2b.ErrRangeTooLarge) {
		return err
	}
	if chunkDays <= minChunkDays {
		return err
	}

	half := chunkDays / 2
	if half < minChunkDays {
		half = minChunkDays
	}
	zap.L().Info("window too large, splitting",
		zap.String("window", w.BeginStamp()+"-"+w.EndStamp()),
		zap.Int("chunk_days", half),
	)
	for _, sub := range g2b.SplitWindows(w.Begin, w.End, half) {
		if err := r.runWindow(ctx, op, sub, opts, half, sum); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) fetchWindow(ctx context.Context, op string, w g2b.Window, opts Options, sum *Summary) error {
	for pageNo := 1; pageNo <= opts.MaxPages; pageNo++ {
		payload, err := r.client.FetchPage(ctx, g2b.PageRequest{
			Operation:  op,
			Window:     w,
			PageNo:     pageNo,
			NumRows:    opts.NumRows,
			InquiryDiv: inquiryByRegistration,
		})
		if err != nil {
			return err
		}
		sum.Pages++
		sum.Fetched += int64(len(payload.Items))

		kept := r.normalizePage(payload.Items)
		if len(kept) > 0 {
			n, err := r.store.UpsertTenders(ctx, kept)
			if err != nil {
				return err
			}
			sum.Kept += int64(len(kept))
			sum.Upserted += n
		}

		zap.L().Debug("page ingested",
			zap.String("window", w.BeginStamp()+"-"+w.EndStamp()),
			zap.Int("page", pageNo),
			zap.Int("items", len(payload.Items)),
			zap.Int("kept", len(kept)),
		)

		if donePaging(payload, pageNo, opts.NumRows) {
			return nil
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// normalizePage maps raw items to tenders, dropping the unkeyed and the
// out-of-region, and classifies the survivors.
func (r *Runner) normalizePage(items []map[string]any) []*tender.Tender {
	now := r.now()
	var kept []*tender.Tender
	for _, item := range items {
		t, ok := tender.Normalize(item, now)
		if !ok {
			continue
		}
		agency, title := deref(t.Agency), deref(t.Title)
		if !r.rules.Priority(agency, title) {
			continue
		}
		scope := r.rules.Classify(agency)
		t.Scope = &scope
		kept = append(kept, t)
	}
	return kept
}

// donePaging decides whether the window has more pages. totalCount is
// authoritative when present; otherwise a short page ends the walk.
func donePaging(p *g2b.Payload, pageNo, numRows int) bool {
	if len(p.Items) == 0 {
		return true
	}
	if p.TotalCount != nil {
		return pageNo*numRows >= *p.TotalCount
	}
	return len(p.Items) < numRows
}

func (r *Runner) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ingest: canceled")
	case <-t.C:
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
