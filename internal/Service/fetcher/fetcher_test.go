package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu       sync.Mutex
	requests []searchPayload
	headers  []http.Header
	respond  func(p searchPayload) (int, interface{})
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p searchPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, p)
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	code, body := f.respond(p)
	w.Header().Set("Content-Type", "application/ld+json")
	w.WriteHeader(code)
	if s, ok := body.(string); ok {
		_, _ = w.Write([]byte(s))
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeRegistry) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Page)
	}
	return out
}

func pagerBody(page, totalPages, perPage int) map[string]interface{} {
	items := make([]map[string]interface{}, 0, perPage)
	for i := 0; i < perPage; i++ {
		items = append(items, map[string]interface{}{
			"email": fmt.Sprintf("p%d-i%d@example.ro", page, i),
			"name":  fmt.Sprintf("Firma %d/%d", page, i),
			"cui":   1000*page + i,
			"extra": "dropped later",
		})
	}
	return map[string]interface{}{
		"pager": map[string]interface{}{
			"items":      items,
			"pagination": map[string]interface{}{"total_pages": totalPages},
		},
	}
}

func newTestFetcher(t *testing.T, reg *fakeRegistry) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(reg)
	t.Cleanup(srv.Close)
	return NewFetcher(Config{APIURL: srv.URL}, logster.NewNop())
}

func TestFetchAll_PreservesPageAndItemOrder(t *testing.T) {
	const totalPages, perPage = 4, 3
	reg := &fakeRegistry{respond: func(p searchPayload) (int, interface{}) {
		return http.StatusOK, pagerBody(p.Page, totalPages, perPage)
	}}
	f := newTestFetcher(t, reg)

	var progress []string
	records, err := f.FetchAll(context.Background(), nil, func(page, total int) {
		progress = append(progress, fmt.Sprintf("Processed page %d of %d", page, total))
	})
	require.NoError(t, err)

	require.Len(t, records, totalPages*perPage)
	for i, rec := range records {
		page, item := i/perPage+1, i%perPage
		assert.Equal(t, fmt.Sprintf("p%d-i%d@example.ro", page, item), rec["email"])
	}
	assert.Equal(t, []int{1, 2, 3, 4}, reg.pages())
	assert.Equal(t, []string{
		"Processed page 1 of 4",
		"Processed page 2 of 4",
		"Processed page 3 of 4",
		"Processed page 4 of 4",
	}, progress)
}

func TestFetchAll_SendsRegionAndSearchTemplate(t *testing.T) {
	reg := &fakeRegistry{respond: func(p searchPayload) (int, interface{}) {
		return http.StatusOK, pagerBody(p.Page, 1, 1)
	}}
	f := newTestFetcher(t, reg)

	region := 2
	_, err := f.FetchAll(context.Background(), &region, nil)
	require.NoError(t, err)

	require.Len(t, reg.requests, 1)
	req := reg.requests[0]
	require.NotNil(t, req.MemberRegion)
	assert.Equal(t, 2, *req.MemberRegion)
	assert.Equal(t, "companies", req.MembersType)
	assert.Nil(t, req.MemberCurrentYearVisa)
	assert.Equal(t, "application/ld+json", reg.headers[0].Get("Accept"))
	assert.Contains(t, reg.headers[0].Get("User-Agent"), "Mozilla/5.0")
}

func TestFetchAll_AllRegionsSendsNullRegion(t *testing.T) {
	var raw map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_ = json.NewEncoder(w).Encode(pagerBody(1, 1, 1))
	}))
	defer srv.Close()

	f := NewFetcher(Config{APIURL: srv.URL}, logster.NewNop())
	_, err := f.FetchAll(context.Background(), nil, nil)
	require.NoError(t, err)

	v, present := raw["memberRegion"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestFetchAll_EmptyFirstPageStopsWithNoData(t *testing.T) {
	reg := &fakeRegistry{respond: func(p searchPayload) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"pager": map[string]interface{}{
				"items":      []interface{}{},
				"pagination": map[string]interface{}{"total_pages": 5},
			},
		}
	}}
	f := newTestFetcher(t, reg)

	records, err := f.FetchAll(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Equal(t, models.KindNoData, models.KindOf(err))
	assert.Equal(t, NoDataMessage, models.Describe(err))
	assert.Equal(t, []int{1}, reg.pages(), "page 2 must never be requested")
}

func TestFetchAll_LaterPageFailureAborts(t *testing.T) {
	reg := &fakeRegistry{respond: func(p searchPayload) (int, interface{}) {
		if p.Page == 2 {
			return http.StatusBadGateway, "upstream down"
		}
		return http.StatusOK, pagerBody(p.Page, 3, 2)
	}}
	f := newTestFetcher(t, reg)

	records, err := f.FetchAll(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Equal(t, models.KindUpstream, models.KindOf(err))
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, []int{1, 2}, reg.pages())
}

func TestFetchAll_MalformedBody(t *testing.T) {
	reg := &fakeRegistry{respond: func(p searchPayload) (int, interface{}) {
		return http.StatusOK, "{not json"
	}}
	f := newTestFetcher(t, reg)

	_, err := f.FetchAll(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindUpstream, models.KindOf(err))
	assert.Contains(t, err.Error(), "malformed")
}

func TestFetchAll_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(Config{APIURL: url}, logster.NewNop())
	_, err := f.FetchAll(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindUpstream, models.KindOf(err))
}

func TestFetchAll_CancelledContext(t *testing.T) {
	reg := &fakeRegistry{respond: func(p searchPayload) (int, interface{}) {
		return http.StatusOK, pagerBody(p.Page, 3, 1)
	}}
	f := newTestFetcher(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.FetchAll(ctx, nil, func(page, total int) {
		if page == 1 {
			cancel()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodePage_Shapes(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		wantItems int
		wantTotal int
		wantTop   bool
	}{
		{
			name:      "nested under pager",
			body:      `{"pager":{"items":[{"email":"a@b.ro"}],"pagination":{"total_pages":7}}}`,
			wantItems: 1, wantTotal: 7,
		},
		{
			name:      "top level items, pager pagination",
			body:      `{"items":[{"email":"a@b.ro"},{"email":"c@d.ro"}],"pager":{"pagination":{"total_pages":2}}}`,
			wantItems: 2, wantTotal: 2, wantTop: true,
		},
		{
			name:      "pager wins over top level",
			body:      `{"items":[{"x":1},{"x":2},{"x":3}],"pager":{"items":[{"x":4}]}}`,
			wantItems: 1, wantTotal: 1,
		},
		{
			name:      "missing pagination defaults to one page",
			body:      `{"pager":{"items":[{"email":"a@b.ro"}]}}`,
			wantItems: 1, wantTotal: 1,
		},
		{
			name:      "no items anywhere",
			body:      `{"pager":{"pagination":{"total_pages":0}}}`,
			wantItems: 0, wantTotal: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := decodePage([]byte(tc.body), 1)
			require.NoError(t, err)
			assert.Len(t, p.Items, tc.wantItems)
			assert.Equal(t, tc.wantTotal, p.TotalPages)
			assert.Equal(t, tc.wantTop, p.TopLevel)
		})
	}
}

func TestDecodePage_KeepsNumbersExact(t *testing.T) {
	p, err := decodePage([]byte(`{"pager":{"items":[{"cui":12345678901234}]}}`), 1)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234"), p.Items[0]["cui"])
}
