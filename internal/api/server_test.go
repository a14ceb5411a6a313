package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/watchboard/internal/pledge"
	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

// stubStore lets each test wire just the calls its handler makes.
type stubStore struct {
	store.Store
	ping         func(ctx context.Context) error
	listTenders  func(ctx context.Context, f store.TenderFilter) ([]tender.Tender, error)
	getTender    func(ctx context.Context, bidNo string) (*tender.Tender, error)
	listPledges  func(ctx context.Context, f store.PledgeFilter) ([]pledge.Pledge, error)
	getPledge    func(ctx context.Context, id string) (*pledge.Pledge, error)
	insertAction func(ctx context.Context, a *pledge.Action) error
	allEvidence  func(ctx context.Context) ([]pledge.Evidence, error)
	candidates   func(ctx context.Context, limit int) ([]tender.Tender, error)
}

func (s *stubStore) Ping(ctx context.Context) error {
	if s.ping != nil {
		return s.ping(ctx)
	}
	return nil
}

func (s *stubStore) ListTenders(ctx context.Context, f store.TenderFilter) ([]tender.Tender, error) {
	return s.listTenders(ctx, f)
}

func (s *stubStore) GetTender(ctx context.Context, bidNo string) (*tender.Tender, error) {
	return s.getTender(ctx, bidNo)
}

func (s *stubStore) ListPledges(ctx context.Context, f store.PledgeFilter) ([]pledge.Pledge, error) {
	return s.listPledges(ctx, f)
}

func (s *stubStore) GetPledge(ctx context.Context, id string) (*pledge.Pledge, error) {
	return s.getPledge(ctx, id)
}

func (s *stubStore) ListPledgeUpdates(ctx context.Context, id string, limit int) ([]pledge.Update, error) {
	return nil, nil
}

func (s *stubStore) ListPledgeEvidence(ctx context.Context, id string, limit int) ([]pledge.Evidence, error) {
	return nil, nil
}

func (s *stubStore) AllEvidence(ctx context.Context) ([]pledge.Evidence, error) {
	return s.allEvidence(ctx)
}

func (s *stubStore) InsertAction(ctx context.Context, a *pledge.Action) error {
	return s.insertAction(ctx, a)
}

func (s *stubStore) EnrichCandidates(ctx context.Context, limit int) ([]tender.Tender, error) {
	if s.candidates != nil {
		return s.candidates(ctx, limit)
	}
	return nil, nil
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	rules, err := tender.DefaultScopeRules()
	require.NoError(t, err)
	return NewServer(st, nil, rules, "secret-token", "pepper")
}

func doJSON(t *testing.T, srv http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubStore{})
	rec, body := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_StoreDown(t *testing.T) {
	srv := newTestServer(t, &stubStore{
		ping: func(ctx context.Context) error { return assert.AnError },
	})
	rec, body := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestListBids(t *testing.T) {
	announced := time.Date(2026, time.February, 4, 0, 0, 0, 0, time.UTC)
	var gotFilter store.TenderFilter
	srv := newTestServer(t, &stubStore{
		listTenders: func(ctx context.Context, f store.TenderFilter) ([]tender.Tender, error) {
			gotFilter = f
			return []tender.Tender{{BidNo: "B-1", AnnouncedAt: &announced}}, nil
		},
	})

	rec, body := doJSON(t, srv, http.MethodGet,
		"/api/bids?scope=CITY&q=도로&limit=20&cursorAnnouncedAt=2026-02-05T00:00:00Z&cursorBidNo=B-9", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["data"], 1)
	// short page means no next cursor
	assert.Nil(t, body["nextCursor"])

	assert.Equal(t, "CITY", gotFilter.Scope)
	assert.Equal(t, "도로", gotFilter.Query)
	assert.Equal(t, 20, gotFilter.Limit)
	assert.Equal(t, "B-9", gotFilter.Cursor.BidNo)
	require.NotNil(t, gotFilter.Cursor.AnnouncedAt)
	assert.Equal(t, time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), gotFilter.Cursor.AnnouncedAt.UTC())
}

func TestListBids_FullPageEmitsCursor(t *testing.T) {
	announced := time.Date(2026, time.February, 4, 0, 0, 0, 0, time.UTC)
	srv := newTestServer(t, &stubStore{
		listTenders: func(ctx context.Context, f store.TenderFilter) ([]tender.Tender, error) {
			out := make([]tender.Tender, 2)
			out[0] = tender.Tender{BidNo: "B-2", AnnouncedAt: &announced}
			out[1] = tender.Tender{BidNo: "B-1", AnnouncedAt: &announced}
			return out, nil
		},
	})

	rec, body := doJSON(t, srv, http.MethodGet, "/api/bids?limit=2", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	cursor, ok := body["nextCursor"].(map[string]any)
	require.True(t, ok, "full page must carry a cursor")
	assert.Equal(t, "B-1", cursor["cursorBidNo"])
	assert.Equal(t, "2026-02-04T00:00:00Z", cursor["cursorAnnouncedAt"])
}

func TestListBids_BadCursor(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/bids?cursorAnnouncedAt=not-a-date&cursorBidNo=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/bids?cursorAnnouncedAt=2026-02-05", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "timestamp without key is rejected")
}

func TestGetBid_NotFound(t *testing.T) {
	srv := newTestServer(t, &stubStore{
		getTender: func(ctx context.Context, bidNo string) (*tender.Tender, error) {
			return nil, store.ErrNotFound
		},
	})
	rec, body := doJSON(t, srv, http.MethodGet, "/api/bids/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestPostAction(t *testing.T) {
	var inserted *pledge.Action
	srv := newTestServer(t, &stubStore{
		insertAction: func(ctx context.Context, a *pledge.Action) error {
			inserted = a
			return nil
		},
	})

	rec, body := doJSON(t, srv, http.MethodPost, "/api/pledges/p1/actions",
		`{"action_type":"cheer"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	require.NotNil(t, inserted)
	assert.Equal(t, "p1", inserted.PledgeID)
	assert.Equal(t, "CHEER", inserted.ActionType, "stored type is upper-cased")
	assert.Len(t, inserted.ActorHash, 64, "actor hash is a sha256 hex digest")
	assert.NotContains(t, inserted.ActorHash, ".", "raw address never reaches storage")
}

func TestPostAction_Errors(t *testing.T) {
	srv := newTestServer(t, &stubStore{
		insertAction: func(ctx context.Context, a *pledge.Action) error {
			switch a.PledgeID {
			case "ghost":
				return store.ErrNotFound
			default:
				return store.ErrDuplicateAction
			}
		},
	})

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/pledges/p1/actions", `{"action_type":"invalid"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/pledges/ghost/actions", `{"action_type":"cheer"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/pledges/p1/actions", `{"action_type":"cheer"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, &stubStore{
		listPledges: func(ctx context.Context, f store.PledgeFilter) ([]pledge.Pledge, error) {
			return []pledge.Pledge{{PledgeID: "a", Title: "A"}, {PledgeID: "b", Title: "B"}}, nil
		},
		allEvidence: func(ctx context.Context) ([]pledge.Evidence, error) {
			return []pledge.Evidence{{PledgeID: "b", Kind: "OFFICIAL"}}, nil
		},
	})

	rec, body := doJSON(t, srv, http.MethodGet, "/api/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rankings, ok := body["rankings"].([]any)
	require.True(t, ok)
	require.Len(t, rankings, 2)
	first := rankings[0].(map[string]any)
	assert.Equal(t, "b", first["pledge_id"])
	assert.Equal(t, float64(3), first["score"])
}

func TestAdmin_Auth(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/admin/enrich", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token")

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/admin/enrich", `{}`,
		map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong token")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/admin/enrich", `{}`,
		map[string]string{"Authorization": "Bearer secret-token"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	rules, err := tender.DefaultScopeRules()
	require.NoError(t, err)
	srv := NewServer(&stubStore{}, nil, rules, "", "pepper")

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/admin/enrich", `{}`,
		map[string]string{"Authorization": "Bearer anything"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_IngestWithoutRunner(t *testing.T) {
	srv := newTestServer(t, &stubStore{})
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/admin/ingest", `{"biz":"cnstwk"}`,
		map[string]string{"Authorization": "Bearer secret-token"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdmin_Bids(t *testing.T) {
	var upserted []*tender.Tender
	srv := newTestServer(t, &adminBidsStore{upserted: &upserted})

	rec, body := doJSON(t, srv, http.MethodPost, "/api/admin/bids",
		`{"rows":[
			{"bidNtceNo":"M-1","ntceInsttNm":"고양시청","bidNtceNm":"수기 등록 공사"},
			{"bidNtceNm":"공고번호 없음"}
		]}`,
		map[string]string{"Authorization": "Bearer secret-token"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["received"])
	assert.Equal(t, float64(1), body["kept"])
	assert.Equal(t, float64(1), body["dropped"])

	require.Len(t, upserted, 1)
	assert.Equal(t, "M-1", upserted[0].BidNo)
	assert.Equal(t, tender.SourceManual, *upserted[0].Source)
	assert.Equal(t, tender.ScopeCity, *upserted[0].Scope)

	// every row invalid is a client error, not an empty success
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/admin/bids",
		`{"rows":[{"bidNtceNm":"공고번호 없음"}]}`,
		map[string]string{"Authorization": "Bearer secret-token"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type adminBidsStore struct {
	stubStore
	upserted *[]*tender.Tender
}

func (s *adminBidsStore) UpsertTenders(ctx context.Context, ts []*tender.Tender) (int64, error) {
	*s.upserted = append(*s.upserted, ts...)
	return int64(len(ts)), nil
}
