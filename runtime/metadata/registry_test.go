package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRegistry(opts ...Option) *Registry {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewRegistry(append([]Option{WithClock(clock.now)}, opts...)...)
}

func button() ComponentMetadata {
	return ComponentMetadata{
		Path:     "/app/components/atoms/Button.tsx",
		Name:     "Button",
		Category: CategoryAtom,
		Exports:  []string{"Button"},
		Props: []PropDefinition{
			{Name: "variant", Type: "string", DefaultValue: "'primary'"},
			{Name: "size", Type: "string"},
		},
		LastUpdated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRegistry_UpsertNew(t *testing.T) {
	reg := newTestRegistry()

	res, err := reg.Upsert(context.Background(), button())
	require.NoError(t, err)
	assert.Equal(t, EventAdd, res.Type)
	assert.True(t, res.Changed)
	assert.Equal(t, InitialVersion, res.Version)

	got, ok := reg.Get("/app/components/atoms/Button.tsx")
	require.True(t, ok)
	assert.Equal(t, "Button", got.Name)
	assert.Equal(t, "/app/components/atoms/Button.tsx", got.SourceFile)
	require.Len(t, got.ChangeHistory, 1)
	assert.Equal(t, "Initial version", got.ChangeHistory[0].Description)
	assert.NotEmpty(t, got.ContentHash)
}

func TestRegistry_UpsertRequiresPath(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Upsert(context.Background(), ComponentMetadata{Name: "Orphan"})
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestRegistry_UpsertIdempotent(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	var events []ChangeEvent
	reg.AddChangeListener(func(ev ChangeEvent) { events = append(events, ev) })

	_, err := reg.Upsert(ctx, button())
	require.NoError(t, err)
	first, _ := reg.Get(button().Path)

	again := button()
	again.LastUpdated = again.LastUpdated.Add(time.Hour)
	res, err := reg.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	second, _ := reg.Get(button().Path)
	assert.Len(t, second.ChangeHistory, 1)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, again.LastUpdated, second.LastUpdated)

	second.LastUpdated = first.LastUpdated
	assert.Equal(t, first, second)
	assert.Len(t, events, 1)
	assert.Len(t, reg.GetChangeHistory("", 0), 1)
}

func TestRegistry_UpsertVersionBumps(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m *ComponentMetadata)
		version  string
		breaking bool
	}{
		{
			name: "optional prop becomes required",
			mutate: func(m *ComponentMetadata) {
				m.Props[1].Required = true
			},
			version:  "2.0.0",
			breaking: true,
		},
		{
			name: "prop removed",
			mutate: func(m *ComponentMetadata) {
				m.Props = m.Props[:1]
			},
			version:  "2.0.0",
			breaking: true,
		},
		{
			name: "prop type changed",
			mutate: func(m *ComponentMetadata) {
				m.Props[1].Type = "'sm' | 'lg'"
			},
			version:  "2.0.0",
			breaking: true,
		},
		{
			name: "prop added",
			mutate: func(m *ComponentMetadata) {
				m.Props = append(m.Props, PropDefinition{Name: "disabled", Type: "boolean"})
			},
			version: "1.1.0",
		},
		{
			name: "description only",
			mutate: func(m *ComponentMetadata) {
				m.Description = "A clickable button"
			},
			version: "1.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			ctx := context.Background()
			_, err := reg.Upsert(ctx, button())
			require.NoError(t, err)

			next := button()
			tt.mutate(&next)
			res, err := reg.Upsert(ctx, next)
			require.NoError(t, err)
			assert.Equal(t, EventUpdate, res.Type)
			assert.Equal(t, tt.version, res.Version)
			assert.Equal(t, tt.breaking, res.Breaking)

			got, _ := reg.Get(next.Path)
			require.Len(t, got.ChangeHistory, 2)
			assert.Equal(t, tt.version, got.ChangeHistory[1].Version)
			assert.True(t, got.ChangeHistory[1].Date.After(got.ChangeHistory[0].Date))
			assert.Equal(t, 1, reg.Len())
		})
	}
}

func TestRegistry_DefaultedPropIsNeverRequired(t *testing.T) {
	reg := newTestRegistry()
	m := button()
	m.Props[0].Required = true

	_, err := reg.Upsert(context.Background(), m)
	require.NoError(t, err)

	got, _ := reg.Get(m.Path)
	for _, p := range got.Props {
		if p.HasDefault() {
			assert.False(t, p.Required, p.Name)
		}
	}
}

func TestRegistry_UnknownCategoryDefaultsToAtom(t *testing.T) {
	reg := newTestRegistry()
	m := button()
	m.Category = "widget"

	_, err := reg.Upsert(context.Background(), m)
	require.NoError(t, err)

	got, _ := reg.Get(m.Path)
	assert.Equal(t, CategoryAtom, got.Category)
}

func TestRegistry_Search(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	for _, m := range []ComponentMetadata{
		{Path: "/c/Button.tsx", Name: "Button"},
		{Path: "/c/ButtonGroup.tsx", Name: "ButtonGroup"},
		{Path: "/c/Card.tsx", Name: "Card", Description: "Surface for grouped content"},
	} {
		_, err := reg.Upsert(ctx, m)
		require.NoError(t, err)
	}

	t.Run("case insensitive substring", func(t *testing.T) {
		got := reg.Search("BUTT")
		require.Len(t, got, 2)
		assert.Equal(t, "Button", got[0].Name)
		assert.Equal(t, "ButtonGroup", got[1].Name)
	})

	t.Run("matches description", func(t *testing.T) {
		got := reg.Search("grouped")
		require.Len(t, got, 1)
		assert.Equal(t, "Card", got[0].Name)
	})

	t.Run("no match is empty", func(t *testing.T) {
		got := reg.Search("zzz")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("results are copies", func(t *testing.T) {
		got := reg.Search("card")
		got[0].Name = "Mutated"
		again := reg.Search("card")
		assert.Equal(t, "Card", again[0].Name)
	})
}

func TestRegistry_GetByCategory(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/a/Button.tsx", Name: "Button", Category: CategoryAtom})
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/m/Field.tsx", Name: "Field", Category: CategoryMolecule})

	assert.Len(t, reg.GetByCategory(CategoryAtom), 1)
	assert.Len(t, reg.GetByCategory(CategoryMolecule), 1)
	assert.Empty(t, reg.GetByCategory(CategoryOrganism))

	// Moving a component updates the index.
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/a/Button.tsx", Name: "Button", Category: CategoryOrganism})
	assert.Empty(t, reg.GetByCategory(CategoryAtom))
	assert.Len(t, reg.GetByCategory(CategoryOrganism), 1)
}

func TestRegistry_Remove(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	_, err := reg.Upsert(ctx, button())
	require.NoError(t, err)

	var deleted []ChangeEvent
	reg.AddChangeListener(func(ev ChangeEvent) {
		if ev.Type == EventDelete {
			deleted = append(deleted, ev)
		}
	})

	ok, err := reg.Remove(ctx, button().Path)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found := reg.Get(button().Path)
	assert.False(t, found)
	require.Len(t, deleted, 1)
	assert.Equal(t, "Button", deleted[0].Component.Name)

	history := reg.GetChangeHistory(button().Path, 0)
	require.Len(t, history, 2)
	assert.Equal(t, ChangeTypeDelete, history[0].ChangeType)
	assert.Equal(t, ChangeTypeAdd, history[1].ChangeType)

	ok, err = reg.Remove(ctx, button().Path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_RemoveSource(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	file := "/app/Dialog.tsx"
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: file, Name: "Dialog"})
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: SecondaryPath(file, "DialogTitle"), Name: "DialogTitle"})
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/app/Other.tsx", Name: "Other"})

	removed := reg.RemoveSource(ctx, file)
	assert.Equal(t, []string{file, file + "#DialogTitle"}, removed)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ChangeListeners(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	var order []string
	first := reg.AddChangeListener(func(ev ChangeEvent) { order = append(order, "first:"+string(ev.Type)) })
	reg.AddChangeListener(func(ev ChangeEvent) { panic("boom") })
	reg.AddChangeListener(func(ev ChangeEvent) { order = append(order, "third:"+string(ev.Type)) })

	_, err := reg.Upsert(ctx, button())
	require.NoError(t, err)
	assert.Equal(t, []string{"first:add", "third:add"}, order)

	assert.True(t, reg.RemoveChangeListener(first))
	assert.False(t, reg.RemoveChangeListener(first))

	m := button()
	m.Description = "changed"
	_, err = reg.Upsert(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"first:add", "third:add", "third:update"}, order)
}

func TestRegistry_GetChangeHistory(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m := button()
		m.Description = string(rune('a' + i))
		_, err := reg.Upsert(ctx, m)
		require.NoError(t, err)
	}
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/c/Card.tsx", Name: "Card"})

	all := reg.GetChangeHistory("", 0)
	require.Len(t, all, 6)
	assert.Equal(t, "/c/Card.tsx", all[0].Path)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp), "newest first")
	}

	limited := reg.GetChangeHistory(button().Path, 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "1.0.4", limited[0].Version)
	assert.Equal(t, "1.0.3", limited[1].Version)

	rec := reg.AppendChange(ctx, ChangeRecord{Path: "/c/Card.tsx", ChangeType: ChangeTypeUpdate, Description: "manual"})
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "manual", reg.GetChangeHistory("", 1)[0].Description)
}

func TestRegistry_FindDependents(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/c/atoms/Button.tsx", Name: "Button"})
	_, _ = reg.Upsert(ctx, ComponentMetadata{
		Path:                 "/c/molecules/Toolbar.tsx",
		Name:                 "Toolbar",
		Dependencies:         []string{"../atoms/Button"},
		ResolvedDependencies: []string{"/c/atoms/Button.tsx"},
	})
	_, _ = reg.Upsert(ctx, ComponentMetadata{Path: "/c/organisms/Header.tsx", Name: "Header"})

	deps := reg.FindDependents("/c/atoms/Button.tsx")
	require.Len(t, deps, 1)
	assert.Equal(t, "Toolbar", deps[0].Name)
	assert.Empty(t, reg.FindDependents("/c/organisms/Header.tsx"))
}

func TestRegistry_ResolvedDependencyChange(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	toolbar := ComponentMetadata{
		Path:                 "/c/molecules/Toolbar.tsx",
		Name:                 "Toolbar",
		Dependencies:         []string{"./Button"},
		ResolvedDependencies: []string{"/c/molecules/Button.tsx"},
	}
	_, err := reg.Upsert(ctx, toolbar)
	require.NoError(t, err)

	// Same import specifier now resolving to a different file.
	toolbar.ResolvedDependencies = []string{"/c/atoms/Button.tsx"}
	res, err := reg.Upsert(ctx, toolbar)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, EventUpdate, res.Type)
	assert.Equal(t, "1.0.1", res.Version)

	got, ok := reg.Get(toolbar.Path)
	require.True(t, ok)
	assert.Equal(t, []string{"/c/atoms/Button.tsx"}, got.ResolvedDependencies)
	assert.Equal(t, "dependencies updated", got.ChangeHistory[len(got.ChangeHistory)-1].Description)

	assert.Empty(t, reg.FindDependents("/c/molecules/Button.tsx"))
	require.Len(t, reg.FindDependents("/c/atoms/Button.tsx"), 1)
}

func TestRegistry_Load(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	writer := newTestRegistry(WithStore(store))
	_, err := writer.Upsert(ctx, button())
	require.NoError(t, err)

	reader := newTestRegistry(WithStore(store))
	require.NoError(t, reader.Load(ctx))

	got, ok := reader.Get(button().Path)
	require.True(t, ok)
	assert.Equal(t, "Button", got.Name)
	assert.Len(t, reader.GetChangeHistory("", 0), 1)
}
