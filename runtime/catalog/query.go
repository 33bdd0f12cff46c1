package catalog

import (
	"sort"
	"strings"

	"github.com/conduit-lang/catalog/runtime/metadata"
)

// SortBy selects the ordering key of GetComponents.
type SortBy string

const (
	SortByName        SortBy = "name"
	SortByLastUpdated SortBy = "lastUpdated"
	SortByPath        SortBy = "path"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Options filter, sort and paginate GetComponents. Zero values select
// everything sorted by name ascending.
type Options struct {
	Category      metadata.Category `json:"category,omitempty"`
	Search        string            `json:"search,omitempty"`
	SortBy        SortBy            `json:"sortBy,omitempty"`
	SortDirection SortDirection     `json:"sortDirection,omitempty"`
	Limit         int               `json:"limit,omitempty"` // 0 means no limit
	Offset        int               `json:"offset,omitempty"`
}

// Page is one page of GetComponents.
type Page struct {
	Items   []metadata.ComponentMetadata `json:"items"`
	Total   int                          `json:"total"`
	HasMore bool                         `json:"hasMore"`
}

// ParseSortBy maps query input onto a SortBy, defaulting to name.
func ParseSortBy(s string) SortBy {
	switch strings.ToLower(s) {
	case "lastupdated", "last_updated", "updated":
		return SortByLastUpdated
	case "path":
		return SortByPath
	default:
		return SortByName
	}
}

// ParseSortDirection maps query input onto a SortDirection, defaulting to asc.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(s, string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// apply filters, sorts and slices components.
func apply(components []metadata.ComponentMetadata, opts Options) Page {
	filtered := make([]metadata.ComponentMetadata, 0, len(components))
	query := strings.ToLower(strings.TrimSpace(opts.Search))
	for i := range components {
		c := &components[i]
		if opts.Category != "" && c.Category != opts.Category {
			continue
		}
		if query != "" && !metadata.Matches(c, query) {
			continue
		}
		filtered = append(filtered, *c)
	}

	sortComponents(filtered, opts.SortBy, opts.SortDirection)

	total := len(filtered)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && opts.Limit < total-offset {
		end = offset + opts.Limit
	}

	items := make([]metadata.ComponentMetadata, end-offset)
	copy(items, filtered[offset:end])
	return Page{Items: items, Total: total, HasMore: end < total}
}

// sortComponents orders by the key, then by path for a stable result.
func sortComponents(components []metadata.ComponentMetadata, by SortBy, dir SortDirection) {
	less := func(a, b *metadata.ComponentMetadata) int {
		switch by {
		case SortByLastUpdated:
			if c := a.LastUpdated.Compare(b.LastUpdated); c != 0 {
				return c
			}
		case SortByPath:
		default:
			if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
				return c
			}
		}
		return strings.Compare(a.Path, b.Path)
	}
	sort.SliceStable(components, func(i, j int) bool {
		c := less(&components[i], &components[j])
		if dir == SortDesc {
			return c > 0
		}
		return c < 0
	})
}
