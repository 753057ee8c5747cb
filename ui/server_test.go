package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"entitlements/adapters/document"
	"entitlements/adapters/relational"
	"entitlements/domain/table"
	"entitlements/internal"
	"entitlements/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quiet() *internal.Logger {
	return internal.NewLogger(internal.LogLevelError)
}

type fixture struct {
	dir     string
	docPath string
	db      *relational.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	tbl := testkit.EntitlementTable()
	meta := table.NewMetadata(tbl, "ents.xlsx", time.Date(2024, 2, 2, 2, 2, 2, 0, time.Local))

	docPath := filepath.Join(dir, "data", "entitlements.json")
	_, err := document.NewWriter(docPath, quiet()).Materialize(context.Background(), tbl, meta)
	require.NoError(t, err)

	dbCfg := &relational.Config{Driver: relational.DriverSQLite, Path: filepath.Join(dir, "data", "entitlements.db"), Atomic: true}
	m, err := relational.NewMaterializer(*dbCfg, quiet())
	require.NoError(t, err)
	_, err = m.Materialize(context.Background(), tbl, meta)
	require.NoError(t, err)

	return fixture{dir: dir, docPath: docPath, db: dbCfg}
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := NewServer(Options{DocumentPath: "missing.json"}, quiet())
	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServesDocument(t *testing.T) {
	f := newFixture(t)
	s := NewServer(Options{DocumentPath: f.docPath}, quiet())

	w := get(t, s, "/data/entitlements.json")
	require.Equal(t, http.StatusOK, w.Code)

	raw, err := os.ReadFile(f.docPath)
	require.NoError(t, err)
	assert.Equal(t, string(raw), w.Body.String())
}

func TestMissingDocument(t *testing.T) {
	s := NewServer(Options{DocumentPath: filepath.Join(t.TempDir(), "entitlements.json")}, quiet())

	assert.Equal(t, http.StatusNotFound, get(t, s, "/data/entitlements.json").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/metadata").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/database/metadata").Code)
}

func TestMetadataEndpoints(t *testing.T) {
	f := newFixture(t)
	s := NewServer(Options{DocumentPath: f.docPath, Database: f.db}, quiet())

	w := get(t, s, "/api/metadata")
	require.Equal(t, http.StatusOK, w.Code)
	var meta struct {
		GeneratedAt  string   `json:"generated_at"`
		TotalRecords int      `json:"total_records"`
		SourceFile   string   `json:"source_file"`
		Columns      []string `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, "2024-02-02T02:02:02.000000", meta.GeneratedAt)
	assert.Equal(t, 3, meta.TotalRecords)
	assert.Equal(t, "ents.xlsx", meta.SourceFile)
	assert.Contains(t, meta.Columns, "S&S end date")

	w = get(t, s, "/api/database/metadata")
	require.Equal(t, http.StatusOK, w.Code)
	var dbMeta map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dbMeta))
	assert.Equal(t, "3", dbMeta["total_records"])
	assert.Contains(t, dbMeta["columns"], "SandS_end_date")
}

func TestDashboardStaticFiles(t *testing.T) {
	f := newFixture(t)
	dash := filepath.Join(f.dir, "dashboard")
	require.NoError(t, os.MkdirAll(dash, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dash, "index.html"), []byte("<h1>Entitlements</h1>"), 0644))

	s := NewServer(Options{DocumentPath: f.docPath, DashboardDir: dash}, quiet())

	w := get(t, s, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard/", w.Header().Get("Location"))

	w = get(t, s, "/dashboard/index.html")
	// http.FileServer redirects /index.html to the directory
	if w.Code == http.StatusMovedPermanently {
		w = get(t, s, "/dashboard/")
	}
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Entitlements")
}

func TestIndexWithoutDashboard(t *testing.T) {
	s := NewServer(Options{DocumentPath: "data/entitlements.json", DashboardDir: filepath.Join(t.TempDir(), "nope")}, quiet())

	w := get(t, s, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/data/entitlements.json")
}

func TestStartStopsOnCancel(t *testing.T) {
	s := NewServer(Options{DocumentPath: "entitlements.json"}, quiet())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
