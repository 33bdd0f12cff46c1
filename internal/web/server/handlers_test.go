package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conduit-lang/catalog/internal/discovery"
	"github.com/conduit-lang/catalog/internal/metrics"
	"github.com/conduit-lang/catalog/internal/tooling/extract"
	"github.com/conduit-lang/catalog/internal/watch"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveRegistry struct {
	registry *metadata.Registry
}

func (l *liveRegistry) Watching() bool               { return true }
func (l *liveRegistry) Registry() *metadata.Registry { return l.registry }

func seededAPI(t *testing.T) *catalog.API {
	t.Helper()
	ctx := context.Background()
	reg := metadata.NewRegistry()

	records := []metadata.ComponentMetadata{
		{Path: "/src/atoms/Button.tsx", SourceFile: "/src/atoms/Button.tsx", Name: "Button", Category: metadata.CategoryAtom, Description: "Clickable"},
		{Path: "/src/atoms/Button.tsx#ButtonIcon", SourceFile: "/src/atoms/Button.tsx", Name: "ButtonIcon", Category: metadata.CategoryAtom},
		{
			Path: "/src/molecules/Card.tsx", SourceFile: "/src/molecules/Card.tsx", Name: "Card", Category: metadata.CategoryMolecule,
			Dependencies: []string{"../atoms/Button"}, ResolvedDependencies: []string{"/src/atoms/Button.tsx"},
		},
	}
	for _, r := range records {
		_, err := reg.Upsert(ctx, r)
		require.NoError(t, err)
	}

	api := catalog.New(catalog.Config{}, catalog.WithLiveSource(&liveRegistry{registry: reg}))
	t.Cleanup(func() { api.Close() })
	return api
}

func get(t *testing.T, h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListComponents(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	rec := get(t, h, "/api/components")
	require.Equal(t, http.StatusOK, rec.Code)
	var page catalog.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Button", page.Items[0].Name)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = get(t, h, "/api/components", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = get(t, h, "/api/components?category=molecule")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Card", page.Items[0].Name)

	rec = get(t, h, "/api/components?sortBy=name&sortDirection=desc&limit=1&offset=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "ButtonIcon", page.Items[0].Name)
}

func TestListComponents_BadParams(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	for _, target := range []string{"/api/components?limit=abc", "/api/components?offset=-1"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "non-negative integer")
	}
}

func TestListComponents_EmptyRegistry(t *testing.T) {
	api := catalog.New(catalog.Config{})
	defer api.Close()
	h := NewHandler(HandlerConfig{API: api})

	rec := get(t, h, "/api/components")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"hasMore":false}`, rec.Body.String())
}

func TestGetComponent(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	rec := get(t, h, "/api/components/src/atoms/Button.tsx")
	require.Equal(t, http.StatusOK, rec.Code)
	var c metadata.ComponentMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "Button", c.Name)

	rec = get(t, h, "/api/components/src/atoms/Button.tsx%23ButtonIcon")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "ButtonIcon", c.Name)

	rec = get(t, h, "/api/components/src/atoms/Missing.tsx")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangesAndDependents(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	rec := get(t, h, "/api/changes?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var changes []metadata.ChangeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	require.Len(t, changes, 2)
	assert.Equal(t, "/src/molecules/Card.tsx", changes[0].Path, "newest first")

	rec = get(t, h, "/api/changes?path=/src/atoms/Button.tsx")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, metadata.ChangeTypeAdd, changes[0].ChangeType)

	rec = get(t, h, "/api/dependents?path=/src/atoms/Button.tsx")
	require.Equal(t, http.StatusOK, rec.Code)
	var deps []metadata.ComponentMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deps))
	require.Len(t, deps, 1)
	assert.Equal(t, "Card", deps[0].Name)

	rec = get(t, h, "/api/dependents?path=/src/molecules/Card.tsx")
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/dependents").Code)
}

func TestDependencies(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	rec := get(t, h, "/api/dependencies?path=/src/molecules/Card.tsx")
	require.Equal(t, http.StatusOK, rec.Code)
	var graph metadata.DependencyGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	assert.Contains(t, graph.Nodes, "/src/molecules/Card.tsx")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/dependencies?path=/nope.tsx").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/dependencies?path=/src/molecules/Card.tsx&depth=x").Code)
}

func TestPerformanceAndRegressions(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	post := func(path, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/performance?path="+path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, post("/src/atoms/Button.tsx", `{"renderTime":10}`))
	assert.Equal(t, http.StatusNoContent, post("/src/atoms/Button.tsx", `{"renderTime":15}`))
	assert.Equal(t, http.StatusNotFound, post("/src/atoms/Missing.tsx", `{"renderTime":1}`))
	assert.Equal(t, http.StatusBadRequest, post("/src/atoms/Button.tsx", `not json`))

	rec := get(t, h, "/api/regressions?threshold=20")
	require.Equal(t, http.StatusOK, rec.Code)
	var regs []metadata.Regression
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regs))
	require.Len(t, regs, 1)
	assert.InDelta(t, 50.0, regs[0].IncreasePercent, 0.001)

	rec = get(t, h, "/api/regressions?threshold=60")
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/regressions?threshold=-1").Code)
}

func TestRescan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Button.tsx"),
		[]byte(`export function Button() { return <button/> }`), 0644))

	loc, err := discovery.New(discovery.Config{Roots: []string{root}})
	require.NoError(t, err)
	x, err := extract.New(extract.DefaultConfig())
	require.NoError(t, err)
	api := catalog.New(catalog.Config{}, catalog.WithRuntime(loc, x))
	defer api.Close()

	h := NewHandler(HandlerConfig{API: api})
	rescan := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rescan", nil))
		return rec
	}

	rec := rescan()
	require.Equal(t, http.StatusOK, rec.Code)
	var summary RescanSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.Components)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 1, api.Registry().Len())

	rec = rescan()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestRescan_Unavailable(t *testing.T) {
	h := NewHandler(HandlerConfig{API: seededAPI(t)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rescan", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New(metrics.Config{})
	h := NewHandler(HandlerConfig{API: seededAPI(t), Metrics: m})

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","components":3}`, rec.Body.String())

	get(t, h, "/api/components")
	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `catalog_http_requests_total{method="GET",route="/api/components",status="200"} 1`)

	bare := NewHandler(HandlerConfig{API: seededAPI(t)})
	assert.Equal(t, http.StatusNotFound, get(t, bare, "/metrics").Code)
}

func TestEventsStream(t *testing.T) {
	api := seededAPI(t)
	hub := watch.NewHub(nil)
	defer hub.Close()
	hub.Attach(api.Registry())

	srv := httptest.NewServer(NewHandler(HandlerConfig{API: api, Events: hub}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	io.Copy(io.Discard, resp.Body)

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = api.Registry().Upsert(context.Background(), metadata.ComponentMetadata{
		Path: "/src/atoms/Badge.tsx", Name: "Badge", Category: metadata.CategoryAtom,
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg watch.EventMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "/src/atoms/Badge.tsx", msg.Path)
	assert.Equal(t, "Badge", msg.Name)
}
