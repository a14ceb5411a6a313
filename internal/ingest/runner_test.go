package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/watchboard/internal/g2b"
	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

// fakeStore records ingest bookkeeping calls. Embedding the interface keeps
// the unused methods panicking if the runner ever grows into them.
type fakeStore struct {
	store.Store
	mu        sync.Mutex
	upserted  []*tender.Tender
	completed bool
	failMsg   string
	fetched   int64
	written   int64
}

func (f *fakeStore) StartIngest(ctx context.Context, source, operation, window string) (int64, error) {
	return 7, nil
}

func (f *fakeStore) UpsertTenders(ctx context.Context, ts []*tender.Tender) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, ts...)
	return int64(len(ts)), nil
}

func (f *fakeStore) CompleteIngest(ctx context.Context, id, fetched, upserted int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
	f.fetched = fetched
	f.written = upserted
	return nil
}

func (f *fakeStore) FailIngest(ctx context.Context, id int64, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMsg = msg
	return nil
}

func newTestRunner(t *testing.T, handler http.HandlerFunc) (*Runner, *fakeStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := g2b.NewClient(g2b.Options{
		BaseURL:    srv.URL,
		ServiceKey: "k",
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RatePerSec: 1000,
	})
	rules, err := tender.DefaultScopeRules()
	require.NoError(t, err)

	st := &fakeStore{}
	return NewRunner(client, st, rules, 0), st, srv
}

func pageBody(total int, items ...map[string]any) []byte {
	b, _ := json.Marshal(map[string]any{
		"response": map[string]any{
			"header": map[string]any{"resultCode": "00"},
			"body":   map[string]any{"items": map[string]any{"item": items}, "totalCount": total},
		},
	})
	return b
}

func TestRun_PagesAndFilters(t *testing.T) {
	runner, st, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageNo") {
		case "1":
			w.Write(pageBody(4,
				map[string]any{"bidNtceNo": "G-1", "ntceInsttNm": "고양시청", "bidNtceNm": "도로공사"},
				map[string]any{"bidNtceNm": "공고번호 없음"},
				map[string]any{"bidNtceNo": "S-1", "ntceInsttNm": "서울특별시", "bidNtceNm": "청소용역"},
			))
		case "2":
			w.Write(pageBody(4,
				map[string]any{"bidNtceNo": "G-2", "ntceInsttNm": "고양교육지원청", "bidNtceNm": "학교 개보수"},
			))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("pageNo"))
		}
	})

	sum, err := runner.Run(context.Background(), Options{
		Biz:       "cnstwk",
		NumRows:   3,
		ChunkDays: 7,
		From:      time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// the unkeyed item and the out-of-region item are dropped
	require.Len(t, st.upserted, 2)
	assert.Equal(t, "G-1", st.upserted[0].BidNo)
	assert.Equal(t, tender.ScopeCity, *st.upserted[0].Scope)
	assert.Equal(t, "G-2", st.upserted[1].BidNo)
	assert.Equal(t, tender.ScopeEdu, *st.upserted[1].Scope)

	assert.Equal(t, int64(4), sum.Fetched)
	assert.Equal(t, int64(2), sum.Kept)
	assert.True(t, st.completed)
	assert.Equal(t, int64(4), st.fetched)
	assert.Empty(t, sum.Failures)
}

func TestRun_SplitsOversizedWindow(t *testing.T) {
	runner, st, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		begin, err := g2b.ParseStamp(r.URL.Query().Get("inqryBgnDt"))
		require.NoError(t, err)
		end, err := g2b.ParseStamp(r.URL.Query().Get("inqryEndDt"))
		require.NoError(t, err)

		if end.Sub(begin) > 4*24*time.Hour {
			w.Write([]byte(`{"nkoneps.com.response.ResponseError":{"header":{"resultCode":"07","resultMsg":"입력범위초과"}}}`))
			return
		}
		w.Write(pageBody(1,
			map[string]any{"bidNtceNo": "W-" + r.URL.Query().Get("inqryBgnDt"), "ntceInsttNm": "고양시청"},
		))
	})

	sum, err := runner.Run(context.Background(), Options{
		Biz:       "cnstwk",
		NumRows:   100,
		ChunkDays: 7,
		From:      time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// the 7-day window came back 07 and was re-fetched in halves
	assert.GreaterOrEqual(t, len(st.upserted), 2)
	assert.Empty(t, sum.Failures)
	assert.True(t, st.completed)
}

func TestRun_ContinuesPastFailedWindow(t *testing.T) {
	runner, st, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("inqryBgnDt") == "202602010000" {
			w.Write([]byte(`{"response":{"header":{"resultCode":"99","resultMsg":"기타 오류"},"body":{}}}`))
			return
		}
		w.Write(pageBody(1, map[string]any{"bidNtceNo": "OK-1", "ntceInsttNm": "고양시청"}))
	})

	sum, err := runner.Run(context.Background(), Options{
		Biz:       "servc",
		NumRows:   100,
		ChunkDays: 2,
		From:      time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, sum.Failures, 1)
	assert.Contains(t, sum.Failures[0].Window, "202602010000")
	assert.NotEmpty(t, st.upserted)
	assert.True(t, st.completed, "run completes when some windows succeed")
}

func TestRun_AllWindowsFailed(t *testing.T) {
	runner, st, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"header":{"resultCode":"30","resultMsg":"등록되지 않은 서비스키"},"body":{}}}`))
	})

	_, err := runner.Run(context.Background(), Options{
		Biz:       "cnstwk",
		ChunkDays: 7,
		From:      time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.False(t, st.completed)
	assert.Contains(t, st.failMsg, "all 1 windows failed")
}

func TestRun_InvalidBiz(t *testing.T) {
	runner, _, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := runner.Run(context.Background(), Options{Biz: "bogus"})
	assert.Error(t, err)
}

func TestDonePaging(t *testing.T) {
	total := 250
	p := &g2b.Payload{Items: make([]map[string]any, 100), TotalCount: &total}
	assert.False(t, donePaging(p, 1, 100))
	assert.False(t, donePaging(p, 2, 100))
	assert.True(t, donePaging(p, 3, 100))

	// no totalCount: a short page ends the walk
	short := &g2b.Payload{Items: make([]map[string]any, 40)}
	assert.True(t, donePaging(short, 1, 100))
	full := &g2b.Payload{Items: make([]map[string]any, 100)}
	assert.False(t, donePaging(full, 1, 100))

	assert.True(t, donePaging(&g2b.Payload{}, 1, 100), "empty page always ends")
}
