package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric %v", m.Desc())
	return 0
}

func TestObserveTier(t *testing.T) {
	m := New(Config{Registry: prometheus.NewRegistry()})

	m.ObserveTier("static", OutcomeHit, 10*time.Millisecond)
	m.ObserveTier("static", OutcomeHit, 5*time.Millisecond)
	m.ObserveTier("dev", OutcomeError, time.Millisecond)

	assert.Equal(t, 2.0, value(t, m.tierFetches.WithLabelValues("static", OutcomeHit)))
	assert.Equal(t, 1.0, value(t, m.tierFetches.WithLabelValues("dev", OutcomeError)))
}

func TestObserveScan(t *testing.T) {
	m := New(Config{Registry: prometheus.NewRegistry()})
	m.ObserveScan(12, 2, time.Second)

	assert.Equal(t, 12.0, value(t, m.scannedFiles))
	assert.Equal(t, 2.0, value(t, m.extractFailures))
}

func TestAttachRegistry(t *testing.T) {
	m := New(Config{Registry: prometheus.NewRegistry()})
	reg := metadata.NewRegistry()
	id := m.AttachRegistry(reg)
	ctx := context.Background()

	_, err := reg.Upsert(ctx, metadata.ComponentMetadata{Path: "/a/Button.tsx", Name: "Button"})
	require.NoError(t, err)
	_, err = reg.Upsert(ctx, metadata.ComponentMetadata{Path: "/a/Card.tsx", Name: "Card"})
	require.NoError(t, err)
	_, err = reg.Remove(ctx, "/a/Card.tsx")
	require.NoError(t, err)

	assert.Equal(t, 2.0, value(t, m.registryEvents.WithLabelValues("add")))
	assert.Equal(t, 1.0, value(t, m.registryEvents.WithLabelValues("delete")))
	assert.Equal(t, 1.0, value(t, m.components))
	assert.True(t, reg.RemoveChangeListener(id))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(Config{})

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/components", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/components", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, value(t, m.httpRequests.WithLabelValues("GET", "/api/components", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "catalog_http_requests_total"))
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveTier("static", OutcomeHit, 0)
	m.ObserveScan(1, 0, 0)
	assert.Zero(t, m.AttachRegistry(metadata.NewRegistry()))
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
