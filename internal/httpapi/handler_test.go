package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cx-go/internal/config"
	"cx-go/internal/cx"
	cxfs "cx-go/internal/fs"
	"cx-go/internal/httpapi"
	"cx-go/internal/testutil"
)

type apiFixture struct {
	server *httptest.Server
	fs     *testutil.MockFilesystem
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	clock := testutil.FixedClock()
	logger := cx.NewNopLogger()

	st := testutil.NewTestStore(t)
	mfs := testutil.NewMockFilesystem()
	history := testutil.NewTestHistory(t)
	writer := cx.NewArtifactWriter(testutil.NewTestSink(), nil, clock, logger)

	h := httpapi.NewHandler(
		cx.NewProjectService(st, clock, testutil.NewPrefixedIDGenerator("project"), logger),
		cx.NewExportService(st, cxfs.NewFSCollector(mfs), writer, history, clock, logger),
		history,
		logger,
	)
	srv := httpapi.NewServer(config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}}, h, logger)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return &apiFixture{server: ts, fs: mfs}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *apiFixture) createProject(t *testing.T, codebase string) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/projects",
		`{"name":"web","codebasePath":"`+codebase+`","exportPath":"exports","exportFileName":"out.md"}`)
	require.Equal(t, http.StatusOK, status, body)
	return body["project"].(map[string]any)["id"].(string)
}

func TestProjects(t *testing.T) {
	t.Run("create and list", func(t *testing.T) {
		f := newAPIFixture(t)
		id := f.createProject(t, "web")
		assert.Equal(t, "project-1", id)

		status, body := f.do(t, http.MethodGet, "/api/projects", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.Len(t, body["projects"], 1)
	})

	t.Run("create rejects blank fields", func(t *testing.T) {
		f := newAPIFixture(t)
		status, body := f.do(t, http.MethodPost, "/api/projects", `{"name":"  ","codebasePath":"a","exportPath":"b","exportFileName":"c"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, float64(400), body["status"])
		assert.Contains(t, body["detail"], "validation failed")
	})

	t.Run("create rejects malformed JSON", func(t *testing.T) {
		f := newAPIFixture(t)
		status, _ := f.do(t, http.MethodPost, "/api/projects", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("get unknown", func(t *testing.T) {
		f := newAPIFixture(t)
		status, body := f.do(t, http.MethodGet, "/api/projects/nope", "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Not Found", body["title"])
	})

	t.Run("update ignores null fields", func(t *testing.T) {
		f := newAPIFixture(t)
		id := f.createProject(t, "web")

		status, body := f.do(t, http.MethodPut, "/api/projects/"+id, `{"name":"renamed","exportPath":null}`)
		require.Equal(t, http.StatusOK, status, body)

		project := body["project"].(map[string]any)
		assert.Equal(t, "renamed", project["name"])
		assert.Equal(t, "exports", project["exportPath"])
		assert.Equal(t, "web", project["codebasePath"])
	})

	t.Run("delete cascades to rules", func(t *testing.T) {
		f := newAPIFixture(t)
		id := f.createProject(t, "web")
		status, _ := f.do(t, http.MethodPut, "/api/codebase-rules/"+id, `{"ignoredFolders":["vendor"]}`)
		require.Equal(t, http.StatusOK, status)

		status, body := f.do(t, http.MethodDelete, "/api/projects/"+id, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, id, body["deletedProject"].(map[string]any)["id"])

		_, body = f.do(t, http.MethodGet, "/api/codebase-rules/"+id, "")
		assert.Equal(t, "", body["rules"].(map[string]any)["id"])

		status, _ = f.do(t, http.MethodDelete, "/api/projects/"+id, "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestRules(t *testing.T) {
	t.Run("defaults for unknown project", func(t *testing.T) {
		f := newAPIFixture(t)
		status, body := f.do(t, http.MethodGet, "/api/codebase-rules/never-saved", "")
		require.Equal(t, http.StatusOK, status)

		rules := body["rules"].(map[string]any)
		assert.Equal(t, "", rules["id"])
		assert.Equal(t, "", rules["rootFolder"])
		assert.Equal(t, []any{"node_modules", ".git", "dist", "build"}, rules["ignoredFolders"])
		assert.Equal(t, []any{".DS_Store", ".gitignore"}, rules["ignoredFiles"])
		assert.Equal(t, []any{"log", "tmp", "cache"}, rules["ignoredFileTypes"])
	})

	t.Run("put requires project", func(t *testing.T) {
		f := newAPIFixture(t)
		status, _ := f.do(t, http.MethodPut, "/api/codebase-rules/missing", `{"ignoredFolders":[]}`)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("put then get", func(t *testing.T) {
		f := newAPIFixture(t)
		id := f.createProject(t, "web")

		status, body := f.do(t, http.MethodPut, "/api/codebase-rules/"+id, `{"rootFolder":"web/app","ignoredFileTypes":[".md"]}`)
		require.Equal(t, http.StatusOK, status)
		saved := body["rules"].(map[string]any)

		_, body = f.do(t, http.MethodGet, "/api/codebase-rules/"+id, "")
		got := body["rules"].(map[string]any)
		assert.Equal(t, saved["id"], got["id"])
		assert.Equal(t, "web/app", got["rootFolder"])
		assert.Equal(t, []any{}, got["ignoredFiles"])
	})
}

func TestExport(t *testing.T) {
	t.Run("explicit request", func(t *testing.T) {
		f := newAPIFixture(t)
		f.fs.AddFile("tree/src/a.ts", []byte("a"))
		f.fs.AddFile("tree/src/b.log", []byte("b"))
		f.fs.AddFile("tree/node_modules/x.js", []byte("x"))

		status, body := f.do(t, http.MethodPost, "/api/export-codebase", `{
			"rootFolder": "tree",
			"exportPath": "out",
			"exportFileName": "out.md",
			"ignoredFolders": ["node_modules"],
			"ignoredFileTypes": [".log"]
		}`)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(1), body["filesCount"])
		assert.Equal(t, "out/out_2025-01-02_03-04-05.md", body["exportPath"])
		assert.Equal(t, "Codebase exported successfully to out/out_2025-01-02_03-04-05.md", body["message"])
		assert.Equal(t, "2025-01-02_03-04-05", body["timestamp"])
	})

	t.Run("missing parameters", func(t *testing.T) {
		f := newAPIFixture(t)
		status, body := f.do(t, http.MethodPost, "/api/export-codebase", `{"rootFolder":"tree"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["detail"], "missing required parameters")
	})

	t.Run("missing root", func(t *testing.T) {
		f := newAPIFixture(t)
		status, _ := f.do(t, http.MethodPost, "/api/export-codebase", `{"rootFolder":"gone","exportPath":"out","exportFileName":"x.md"}`)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("stored project", func(t *testing.T) {
		f := newAPIFixture(t)
		f.fs.AddFile("web/main.go", []byte("package main"))
		f.fs.AddFile("web/debug.log", []byte("x"))
		id := f.createProject(t, "web")

		status, body := f.do(t, http.MethodPost, "/api/projects/"+id+"/export", "")
		require.Equal(t, http.StatusOK, status, body)
		// Default rules list "log" without a dot, which does not match debug.log.
		assert.Equal(t, float64(2), body["filesCount"])

		status, body = f.do(t, http.MethodGet, "/api/export-runs?limit=5", "")
		require.Equal(t, http.StatusOK, status)
		runs := body["runs"].([]any)
		require.Len(t, runs, 1)
		assert.Equal(t, cx.RunStatusSuccess, runs[0].(map[string]any)["status"])
	})

	t.Run("bad limit", func(t *testing.T) {
		f := newAPIFixture(t)
		status, _ := f.do(t, http.MethodGet, "/api/export-runs?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestCORS(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	h := httpapi.Recovery(cx.NewNopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
