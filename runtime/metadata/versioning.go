package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// InitialVersion is assigned to a component on first registration.
const InitialVersion = "1.0.0"

type bump int

const (
	bumpNone bump = iota
	bumpPatch
	bumpMinor
	bumpMajor
)

// hashedContent is the part of a record that participates in change detection.
type hashedContent struct {
	Path                 string           `json:"path"`
	Name                 string           `json:"name"`
	Category             Category         `json:"category"`
	Description          string           `json:"description"`
	Exports              []string         `json:"exports"`
	Props                []PropDefinition `json:"props"`
	Examples             []string         `json:"examples"`
	Dependencies         []string         `json:"dependencies"`
	ResolvedDependencies []string         `json:"resolvedDependencies"`
	ExternalDependencies []string         `json:"externalDependencies"`
}

// ContentHash returns a stable digest of the structural content of m.
// LastUpdated, Version, ChangeHistory and performance data are excluded.
func ContentHash(m *ComponentMetadata) string {
	data, err := json.Marshal(hashedContent{
		Path:                 m.Path,
		Name:                 m.Name,
		Category:             m.Category,
		Description:          m.Description,
		Exports:              m.Exports,
		Props:                m.Props,
		Examples:             m.Examples,
		Dependencies:         m.Dependencies,
		ResolvedDependencies: m.ResolvedDependencies,
		ExternalDependencies: m.ExternalDependencies,
	})
	if err != nil {
		// Only plain strings and bools are marshaled above.
		panic(fmt.Sprintf("metadata: hash content: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidVersion reports whether v is a plain MAJOR.MINOR.PATCH version.
func ValidVersion(v string) bool {
	return semver.IsValid("v"+v) && semver.Prerelease("v"+v) == "" && strings.Count(v, ".") == 2
}

// CompareVersions compares two versions the way semver.Compare does.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

func nextVersion(current string, b bump) string {
	if !ValidVersion(current) {
		return InitialVersion
	}
	parts := strings.SplitN(strings.TrimPrefix(semver.Canonical("v"+current), "v"), ".", 3)
	major, _ := strconv.Atoi(parts[0])
	minor, _ := strconv.Atoi(parts[1])
	patch, _ := strconv.Atoi(parts[2])

	switch b {
	case bumpMajor:
		major, minor, patch = major+1, 0, 0
	case bumpMinor:
		minor, patch = minor+1, 0
	case bumpPatch:
		patch++
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// classifyChange compares two records and returns the version bump it
// warrants, whether it is breaking, and a short human summary.
func classifyChange(prev, next *ComponentMetadata) (bump, bool, string) {
	if prev.ContentHash == next.ContentHash {
		return bumpNone, false, ""
	}

	prevProps := make(map[string]PropDefinition, len(prev.Props))
	for _, p := range prev.Props {
		prevProps[p.Name] = p
	}
	nextProps := make(map[string]PropDefinition, len(next.Props))
	for _, p := range next.Props {
		nextProps[p.Name] = p
	}

	var breaking, additive, other []string
	for _, p := range prev.Props {
		n, ok := nextProps[p.Name]
		switch {
		case !ok:
			breaking = append(breaking, fmt.Sprintf("removed prop %q", p.Name))
		case n.Type != p.Type:
			breaking = append(breaking, fmt.Sprintf("prop %q type %s -> %s", p.Name, p.Type, n.Type))
		case n.Required && !p.Required:
			breaking = append(breaking, fmt.Sprintf("prop %q is now required", p.Name))
		case n != p:
			other = append(other, fmt.Sprintf("prop %q updated", p.Name))
		}
	}
	for _, p := range next.Props {
		if _, ok := prevProps[p.Name]; !ok {
			additive = append(additive, fmt.Sprintf("added prop %q", p.Name))
		}
	}
	for _, e := range missing(prev.Exports, next.Exports) {
		breaking = append(breaking, fmt.Sprintf("removed export %q", e))
	}
	for _, e := range missing(next.Exports, prev.Exports) {
		additive = append(additive, fmt.Sprintf("added export %q", e))
	}
	if prev.Description != next.Description {
		other = append(other, "description updated")
	}
	if !equalStrings(prev.Examples, next.Examples) {
		other = append(other, "examples updated")
	}
	if !equalStrings(prev.Dependencies, next.Dependencies) ||
		!equalStrings(prev.ResolvedDependencies, next.ResolvedDependencies) ||
		!equalStrings(prev.ExternalDependencies, next.ExternalDependencies) {
		other = append(other, "dependencies updated")
	}
	if prev.Name != next.Name || prev.Category != next.Category {
		other = append(other, "identity updated")
	}

	summary := strings.Join(append(append(breaking, additive...), other...), "; ")
	switch {
	case len(breaking) > 0:
		return bumpMajor, true, summary
	case len(additive) > 0:
		return bumpMinor, false, summary
	default:
		if summary == "" {
			summary = "content updated"
		}
		return bumpPatch, false, summary
	}
}

// missing returns the entries of a that are absent from b, sorted.
func missing(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if !set[s] {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
