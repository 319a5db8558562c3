package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/JonMunkholm/csvsql/internal/store"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	service *core.Service
	db      store.DB
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	db, err := store.OpenSQLite(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := core.NewService(db, cfg.Import)
	require.NoError(t, err)

	srv := NewServer(svc, db, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, service: svc, db: db}
}

func (ts *testServer) do(t *testing.T, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (ts *testServer) importCSV(t *testing.T, target, body string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, target, []byte(body), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp map[string]string
	decode(t, rec, &resp)
	id := resp["import_id"]
	require.NotEmpty(t, id)
	assert.Equal(t, "/imports/"+id, rec.Header().Get("Location"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := ts.service.Wait(ctx, id)
	require.NoError(t, err)
	return id
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body struct {
		Status  string                   `json:"status"`
		Driver  string                   `json:"driver"`
		Imports core.ImportLimiterStatus `json:"imports"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, store.DriverSQLite, body.Driver)
	assert.Equal(t, 4, body.Imports.MaxConcurrent)
}

func TestImportLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	id := ts.importCSV(t, "/imports?table=people&sample_size=2", "Name,Age\nBob,10\nRob,25\nAnn,x\n")

	rec := ts.do(t, http.MethodGet, "/imports/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st core.ImportStatus
	decode(t, rec, &st)
	assert.True(t, st.Done)
	require.NotNil(t, st.Result)
	assert.Equal(t, "people", st.Result.Table)
	assert.Equal(t, int64(2), st.Result.RowsLoaded)
	assert.Equal(t, int64(1), st.Result.RowsRejected)
	assert.Equal(t, core.PhaseComplete, st.Progress.Phase)

	rec = ts.do(t, http.MethodGet, "/imports", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = ts.do(t, http.MethodGet, "/tables", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tables map[string][]string
	decode(t, rec, &tables)
	assert.Equal(t, []string{"people"}, tables["tables"])

	rec = ts.do(t, http.MethodGet, "/tables/people?page=2&page_size=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page store.PageResult
	decode(t, rec, &page)
	assert.Equal(t, []string{"Name", "Age"}, page.Columns)
	assert.Equal(t, int64(2), page.TotalRows)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Rob", page.Rows[0][0])
}

func TestImportTableFromFilename(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.importCSV(t, "/imports?filename=dir/scores.tsv", "a\tb\n1\t2\n")

	n, err := ts.db.Count(context.Background(), "scores")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestImportErrors(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Import.MaxFileSize = 64 })

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"no table", http.MethodPost, "/imports", "a,b\n1,2\n", http.StatusBadRequest, "IMP005"},
		{"bad policy", http.MethodPost, "/imports?table=t&invalid=maybe", "a,b\n", http.StatusBadRequest, "PARAM001"},
		{"bad delimiter", http.MethodPost, "/imports?table=t&delimiters=ab", "a,b\n", http.StatusBadRequest, "PARAM001"},
		{"too large", http.MethodPost, "/imports?table=t", strings.Repeat("a,b\n", 40), http.StatusRequestEntityTooLarge, "SRC001"},
		{"unknown import", http.MethodGet, "/imports/nope", "", http.StatusNotFound, "IMP002"},
		{"cancel unknown", http.MethodDelete, "/imports/nope", "", http.StatusNotFound, "IMP002"},
		{"unknown table", http.MethodGet, "/tables/nope", "", http.StatusNotFound, "DB009"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, []byte(tt.body), nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestImportFailureReported(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/imports?table=t&invalid=fail&sample_size=1", []byte("a,b\n1,2\n3,x\n"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	decode(t, rec, &resp)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := ts.service.Wait(ctx, resp["import_id"])
	require.Error(t, err)

	rec = ts.do(t, http.MethodGet, "/imports/"+resp["import_id"], nil, nil)
	var st core.ImportStatus
	decode(t, rec, &st)
	assert.True(t, st.Done)
	assert.Equal(t, core.PhaseFailed, st.Progress.Phase)
	assert.Equal(t, "ROW002", st.Code)
}

func TestPreviewMultipart(t *testing.T) {
	ts := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "grades.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Name;Grade\nAl;3.5\nBo;4\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := ts.do(t, http.MethodPost, "/preview", buf.Bytes(), http.Header{"Content-Type": {mw.FormDataContentType()}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp core.PreviewResponse
	decode(t, rec, &resp)
	assert.Equal(t, "grades", resp.Table)
	assert.Equal(t, "semicolon", resp.Delimiter)
	assert.True(t, resp.Header)
	assert.False(t, resp.TableExists)
	assert.Equal(t, 2, resp.Summary.ValidRows)

	tables, err := ts.db.Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables, "preview writes nothing")
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Server.APIKeys = []string{"secret"} })

	rec := ts.do(t, http.MethodGet, "/tables", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/tables", nil, http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/tables", nil, http.Header{"X-Api-Key": {"secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is not behind auth")
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Server.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil, nil).Code)
	}
	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(&core.SchemaConflictError{Table: "t"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&core.AmbiguousDelimiterError{Source: "f"}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrTooManyImports))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
