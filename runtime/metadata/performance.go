package metadata

import (
	"fmt"
	"sort"
)

const defaultPerformanceHistory = 50

// Regression flags a component whose latest render time grew past the
// threshold relative to the previous sample.
type Regression struct {
	Path            string  `json:"path"`
	Name            string  `json:"name"`
	PreviousRender  float64 `json:"previousRenderTime"`
	CurrentRender   float64 `json:"currentRenderTime"`
	IncreasePercent float64 `json:"increasePercent"`
}

// RecordPerformance stores a new metrics sample for path. Samples are not
// version-affecting and produce no change entries.
func (r *Registry) RecordPerformance(path string, pm PerformanceMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.components[path]
	if !ok {
		return fmt.Errorf("component not found: %s", path)
	}
	latest := pm
	m.PerformanceMetrics = &latest
	m.PerformanceHistory = append(m.PerformanceHistory, PerformanceSample{
		PerformanceMetrics: pm,
		RecordedAt:         r.now(),
	})
	if over := len(m.PerformanceHistory) - r.perfCapacity; over > 0 {
		m.PerformanceHistory = append([]PerformanceSample(nil), m.PerformanceHistory[over:]...)
	}
	r.invalidateLocked()
	return nil
}

// DetectPerformanceRegressions returns components whose latest renderTime
// exceeds the previous sample by more than thresholdPercent, largest
// increase first.
func (r *Registry) DetectPerformanceRegressions(thresholdPercent float64) []Regression {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Regression
	for _, m := range r.components {
		n := len(m.PerformanceHistory)
		if n < 2 {
			continue
		}
		prev := m.PerformanceHistory[n-2].RenderTime
		cur := m.PerformanceHistory[n-1].RenderTime
		if prev <= 0 {
			continue
		}
		if cur > prev*(1+thresholdPercent/100) {
			out = append(out, Regression{
				Path:            m.Path,
				Name:            m.Name,
				PreviousRender:  prev,
				CurrentRender:   cur,
				IncreasePercent: (cur - prev) / prev * 100,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IncreasePercent != out[j].IncreasePercent {
			return out[i].IncreasePercent > out[j].IncreasePercent
		}
		return out[i].Path < out[j].Path
	})
	return out
}
