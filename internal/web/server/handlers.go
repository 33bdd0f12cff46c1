package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/conduit-lang/catalog/internal/tooling/scan"
	"github.com/conduit-lang/catalog/internal/web/cache"
	"github.com/conduit-lang/catalog/internal/web/response"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultRegressionThreshold is the render-time increase, in percent, that
// counts as a regression when the request gives none.
const DefaultRegressionThreshold = 10.0

type handlers struct {
	api    *catalog.API
	logger *zap.Logger
}

// RescanSummary is the body of a successful POST /api/rescan
type RescanSummary struct {
	Files      int             `json:"files"`
	Components int             `json:"components"`
	Failures   []RescanFailure `json:"failures"`
	DurationMs int64           `json:"durationMs"`
}

// RescanFailure is one file that could not be extracted
type RescanFailure struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"components": h.api.Registry().Len(),
	})
}

func (h *handlers) listComponents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	offset, err := intParam(q, "offset")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	page := h.api.GetComponents(r.Context(), catalog.Options{
		Category:      metadata.Category(q.Get("category")),
		Search:        q.Get("search"),
		SortBy:        catalog.ParseSortBy(q.Get("sortBy")),
		SortDirection: catalog.ParseSortDirection(q.Get("sortDirection")),
		Limit:         limit,
		Offset:        offset,
	})
	renderCached(w, r, page)
}

func (h *handlers) getComponent(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")
	path, err := url.PathUnescape(raw)
	if err != nil || path == "" {
		response.RenderBadRequest(w, "invalid component path")
		return
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	c, ok := h.api.GetComponent(r.Context(), path)
	if !ok {
		response.RenderNotFound(w, fmt.Sprintf("component not found: %s", path))
		return
	}
	renderCached(w, r, c)
}

func (h *handlers) changes(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	history := h.api.Registry().GetChangeHistory(r.URL.Query().Get("path"), limit)
	response.RenderJSON(w, http.StatusOK, history)
}

func (h *handlers) dependents(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		response.RenderBadRequest(w, "path is required")
		return
	}
	deps := h.api.Registry().FindDependents(path)
	if deps == nil {
		deps = []*metadata.ComponentMetadata{}
	}
	response.RenderJSON(w, http.StatusOK, deps)
}

func (h *handlers) dependencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		response.RenderBadRequest(w, "path is required")
		return
	}
	depth, err := intParam(q, "depth")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	reverse, _ := strconv.ParseBool(q.Get("reverse"))

	graph, err := h.api.Registry().QueryDependencies(path, metadata.DependencyOptions{Depth: depth, Reverse: reverse})
	if err != nil {
		response.RenderNotFound(w, err.Error())
		return
	}
	response.RenderJSON(w, http.StatusOK, graph)
}

func (h *handlers) regressions(w http.ResponseWriter, r *http.Request) {
	threshold := DefaultRegressionThreshold
	if s := r.URL.Query().Get("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			response.RenderBadRequest(w, "threshold must be a non-negative number")
			return
		}
		threshold = v
	}
	regs := h.api.Registry().DetectPerformanceRegressions(threshold)
	if regs == nil {
		regs = []metadata.Regression{}
	}
	response.RenderJSON(w, http.StatusOK, regs)
}

func (h *handlers) recordPerformance(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		response.RenderBadRequest(w, "path is required")
		return
	}
	var pm metadata.PerformanceMetrics
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&pm); err != nil {
		response.RenderBadRequest(w, "invalid performance metrics")
		return
	}
	if err := h.api.Registry().RecordPerformance(path, pm); err != nil {
		response.RenderNotFound(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) rescan(w http.ResponseWriter, r *http.Request) {
	res, err := h.api.RescanComponents(r.Context())
	if errors.Is(err, catalog.ErrRescanUnavailable) {
		response.RenderServiceUnavailable(w, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("rescan failed", zap.Error(err))
		response.RenderInternalError(w)
		return
	}

	response.RenderJSON(w, http.StatusOK, NewRescanSummary(res))
}

// NewRescanSummary condenses a scan result.
func NewRescanSummary(res *scan.Result) RescanSummary {
	summary := RescanSummary{
		Files:      res.Files,
		Components: len(res.Components),
		Failures:   make([]RescanFailure, 0, len(res.Failures)),
		DurationMs: res.Duration.Milliseconds(),
	}
	for _, f := range res.Failures {
		summary.Failures = append(summary.Failures, RescanFailure{File: f.File, Message: f.Message})
	}
	return summary
}

// renderCached writes v with an ETag and answers 304 when the client
// already has it.
func renderCached(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		response.RenderInternalError(w)
		return
	}
	if cache.NotModified(w, r, cache.GenerateETag(body)) {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func intParam(q url.Values, name string) (int, error) {
	s := q.Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}
