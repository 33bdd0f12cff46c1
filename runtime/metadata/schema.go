package metadata

import (
	"strings"
	"sync"
	"time"
)

// Category is the coarse compositional taxonomy of a component.
type Category string

const (
	CategoryAtom     Category = "atom"
	CategoryMolecule Category = "molecule"
	CategoryOrganism Category = "organism"
)

var (
	categoryMu      sync.RWMutex
	knownCategories = map[Category]bool{
		CategoryAtom:     true,
		CategoryMolecule: true,
		CategoryOrganism: true,
	}
)

// RegisterCategory adds a category to the set of accepted values.
func RegisterCategory(c Category) {
	c = Category(strings.ToLower(strings.TrimSpace(string(c))))
	if c == "" {
		return
	}
	categoryMu.Lock()
	knownCategories[c] = true
	categoryMu.Unlock()
}

// ParseCategory maps free-form input onto a known category. Plural forms are
// accepted ("atoms"). Anything unresolved becomes CategoryAtom.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	if knownCategories[c] {
		return c
	}
	if trimmed := Category(strings.TrimSuffix(string(c), "s")); knownCategories[trimmed] {
		return trimmed
	}
	return CategoryAtom
}

// Valid reports whether c is a registered category.
func (c Category) Valid() bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return knownCategories[c]
}

// ComponentMetadata is the unit of record in the registry.
type ComponentMetadata struct {
	Path                 string               `json:"path"`                           // Registry key
	SourceFile           string               `json:"sourceFile,omitempty"`           // File the component was extracted from
	Name                 string               `json:"name"`                           // Component identifier
	Category             Category             `json:"category"`                       // atom, molecule, organism
	Description          string               `json:"description,omitempty"`          // Leading JSDoc text
	Exports              []string             `json:"exports"`                        // Exported identifiers, declaration order
	Props                []PropDefinition     `json:"props"`                          // Props in declaration order
	Examples             []string             `json:"examples"`                       // @example snippets
	Dependencies         []string             `json:"dependencies"`                   // Component import specifiers
	ResolvedDependencies []string             `json:"resolvedDependencies,omitempty"` // Absolute paths of Dependencies
	ExternalDependencies []string             `json:"externalDependencies,omitempty"` // Non-component imports
	Version              string               `json:"version"`                        // Semver without the "v" prefix
	ChangeHistory        []Change             `json:"changeHistory"`                  // Ascending by date
	LastUpdated          time.Time            `json:"lastUpdated"`                    // File mtime at extraction
	PerformanceMetrics   *PerformanceMetrics  `json:"performanceMetrics,omitempty"`   // Latest externally supplied sample
	PerformanceHistory   []PerformanceSample  `json:"performanceHistory,omitempty"`   // Bounded sample history
	ContentHash          string               `json:"contentHash,omitempty"`          // Hash of the structural content
}

// PropDefinition describes one prop of a component.
type PropDefinition struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"defaultValue,omitempty"`
	Description  string `json:"description,omitempty"`
}

// HasDefault reports whether the prop carries a default value.
func (p PropDefinition) HasDefault() bool {
	return p.DefaultValue != ""
}

// Change is one entry of a component's own version history.
type Change struct {
	Version     string    `json:"version"`
	Date        time.Time `json:"date"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	IsBreaking  bool      `json:"isBreaking"`
}

// PerformanceMetrics are externally measured figures for a component.
type PerformanceMetrics struct {
	RenderTime      float64 `json:"renderTime"`      // Milliseconds
	BundleSize      int64   `json:"bundleSize"`      // Bytes
	ComplexityScore float64 `json:"complexityScore"` // Tool specific
}

// PerformanceSample is a timestamped PerformanceMetrics entry.
type PerformanceSample struct {
	PerformanceMetrics
	RecordedAt time.Time `json:"recordedAt"`
}

// ChangeType classifies an entry of the system-wide change log.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "ADD"
	ChangeTypeUpdate ChangeType = "UPDATE"
	ChangeTypeDelete ChangeType = "DELETE"
)

// ChangeRecord is an entry of the system-wide change log. Unlike Change it
// survives deletion of the component it describes.
type ChangeRecord struct {
	ID          string     `json:"id"`
	Path        string     `json:"path"`
	Name        string     `json:"name"`
	ChangeType  ChangeType `json:"changeType"`
	Version     string     `json:"version,omitempty"`
	IsBreaking  bool       `json:"isBreaking"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// EventType is the kind of mutation delivered to change listeners.
type EventType string

const (
	EventAdd    EventType = "add"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is delivered to change listeners whenever the registry mutates.
// For EventDelete, Component holds the last known record.
type ChangeEvent struct {
	Type      EventType          `json:"type"`
	Component *ComponentMetadata `json:"component,omitempty"`
	Path      string             `json:"path"`
	Timestamp time.Time          `json:"timestamp"`
}

// Clone returns a deep copy of m.
func (m *ComponentMetadata) Clone() *ComponentMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Exports = cloneStrings(m.Exports)
	c.Props = append([]PropDefinition(nil), m.Props...)
	c.Examples = cloneStrings(m.Examples)
	c.Dependencies = cloneStrings(m.Dependencies)
	c.ResolvedDependencies = cloneStrings(m.ResolvedDependencies)
	c.ExternalDependencies = cloneStrings(m.ExternalDependencies)
	c.ChangeHistory = append([]Change(nil), m.ChangeHistory...)
	c.PerformanceHistory = append([]PerformanceSample(nil), m.PerformanceHistory...)
	if m.PerformanceMetrics != nil {
		pm := *m.PerformanceMetrics
		c.PerformanceMetrics = &pm
	}
	return &c
}

// Normalize enforces the record invariants in place: a known category,
// non-nil slices, and required=false for every defaulted prop.
func (m *ComponentMetadata) Normalize() {
	m.Category = ParseCategory(string(m.Category))
	if m.SourceFile == "" {
		m.SourceFile = SourceFileOf(m.Path)
	}
	for i := range m.Props {
		if m.Props[i].HasDefault() {
			m.Props[i].Required = false
		}
	}
	if m.Exports == nil {
		m.Exports = []string{}
	}
	if m.Props == nil {
		m.Props = []PropDefinition{}
	}
	if m.Examples == nil {
		m.Examples = []string{}
	}
	if m.Dependencies == nil {
		m.Dependencies = []string{}
	}
	if m.ChangeHistory == nil {
		m.ChangeHistory = []Change{}
	}
}

// SecondaryPath is the registry key of a component that is not the primary
// export of its file.
func SecondaryPath(file, name string) string {
	return file + "#" + name
}

// SourceFileOf strips the "#Name" suffix of a secondary component path.
func SourceFileOf(path string) string {
	if i := strings.LastIndex(path, "#"); i >= 0 {
		return path[:i]
	}
	return path
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
