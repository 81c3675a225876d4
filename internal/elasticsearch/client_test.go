package elasticsearch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/govtrack/backend/internal/elasticsearch"
	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/repository"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

type fakeES struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(w http.ResponseWriter, r *http.Request, body map[string]any)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/" {
		_, _ = io.WriteString(w, `{"version":{"number":"8.19.0","build_flavor":"default"},"tagline":"You Know, for Search"}`)
		return
	}

	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, body: body})
	f.mu.Unlock()

	f.handle(w, r, body)
}

func newClient(t *testing.T, f *fakeES, pageSize int) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := elasticsearch.New(srv.URL, "test_", pageSize, nil)
	require.NoError(t, err)
	return c
}

func TestGetByIDNotFound(t *testing.T) {
	f := &fakeES{handle: func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"_index":"test_opportunities","_id":"missing","found":false}`)
	}}
	c := newClient(t, f, 10)

	_, err := c.Opportunities().GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetByIDDecodesSource(t *testing.T) {
	f := &fakeES{handle: func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, `{"_id":"o1","found":true,"_source":{"title":"Clerk","officialUrl":"u","verified":"verified"}}`)
	}}
	c := newClient(t, f, 10)

	got, err := c.Opportunities().GetByID(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, "o1", got.ID)
	require.Equal(t, "Clerk", got.Title)
	require.True(t, got.IsVerified())
	require.Equal(t, "/test_opportunities/_doc/o1", f.requests[0].path)
}

func TestListVerifiedFiltersAndSorts(t *testing.T) {
	f := &fakeES{handle: func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_source":{"id":"b","title":"B","endDate":"2026-01-01","verified":"verified"},"sort":["2026-01-01","b"]},
			{"_source":{"id":"x","title":"X","endDate":"2026-02-01","verified":"unverified"},"sort":["2026-02-01","x"]}
		]}}`)
	}}
	c := newClient(t, f, 10)

	got, err := c.Opportunities().ListVerified(context.Background(), repository.OpportunityFilter{State: "WB"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ID)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	require.Equal(t, "/test_opportunities/_search", req.path)

	raw, err := json.Marshal(req.body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `{"term":{"verified":"verified"}}`)
	require.Contains(t, string(raw), `{"term":{"state":"WB"}}`)
	require.NotContains(t, string(raw), "qualification")
	require.Contains(t, string(raw), `"endDate":{"missing":"_last","order":"asc"}`)
}

func TestListActivePagesWithSearchAfter(t *testing.T) {
	pages := []string{
		`{"hits":{"hits":[{"_source":{"id":"s1","url":"http://x/1","status":"active"},"sort":["s1"]},{"_source":{"id":"s2","url":"http://x/2","status":"active"},"sort":["s2"]}]}}`,
		`{"hits":{"hits":[{"_source":{"id":"s3","url":"http://x/3","status":"active"},"sort":["s3"]}]}}`,
	}
	call := 0
	f := &fakeES{handle: func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, pages[call])
		call++
	}}
	c := newClient(t, f, 2)

	got, err := c.Sources().ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "s3", got[2].ID)

	require.Len(t, f.requests, 2)
	require.Nil(t, f.requests[0].body["search_after"])
	require.Equal(t, []any{"s2"}, f.requests[1].body["search_after"])
}

func TestTrackingSaveUpsertsCompositeKey(t *testing.T) {
	f := &fakeES{handle: func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, `{"result":"updated"}`)
	}}
	c := newClient(t, f, 10)

	saved, err := c.Tracking().Save(context.Background(), models.Tracking{UserID: "alice", OpportunityID: "o1", Status: models.TrackingApplied})
	require.NoError(t, err)
	require.Equal(t, "alice_o1", saved.ID)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	require.Equal(t, http.MethodPost, req.method)
	require.True(t, strings.HasSuffix(req.path, "/test_tracking/_update/alice_o1"), req.path)
	require.Equal(t, true, req.body["doc_as_upsert"])
}

func TestUpdateLastCheckMissingSource(t *testing.T) {
	f := &fakeES{handle: func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"document_missing_exception"},"status":404}`)
	}}
	c := newClient(t, f, 10)

	err := c.Sources().UpdateLastCheck(context.Background(), "gone", "d", time.Now())
	require.ErrorIs(t, err, repository.ErrNotFound)
}
