// Package metadata provides the component registry: the records extracted
// from UI component source files, their version and change history, and the
// read models derived from them.
//
// # Overview
//
// A Registry is an addressable table of ComponentMetadata keyed by path. It is
// the single piece of mutable shared state of a catalog process. The file
// watcher and the rescan command write to it; everything else reads through
// copies. Every mutation appends to a system-wide change log and is delivered
// to registered change listeners.
//
// # Core Structures
//
//   - ComponentMetadata: name, category, props, examples, dependencies, version
//   - PropDefinition: one prop with its rendered type and default value
//   - Change: an entry of a component's own history, ascending by date
//   - ChangeRecord: an entry of the system-wide log (ADD, UPDATE, DELETE)
//   - ChangeEvent: what change listeners receive
//   - DependencyGraph: the import graph between components
//
// # Versioning
//
// A component enters the registry at version 1.0.0 with a single "Initial
// version" change. Re-registering a record whose structural content hash is
// unchanged is a no-op: no version bump, no change, no event. Otherwise the
// version is bumped and exactly one Change is appended:
//
//   - major: a prop was removed, changed type, or became required, or an
//     export disappeared
//   - minor: props or exports were added
//   - patch: anything else (description, examples, dependencies)
//
// # Example Usage
//
// Registering and querying components:
//
//	reg := metadata.NewRegistry(metadata.WithLogger(logger))
//
//	_, err := reg.Upsert(ctx, metadata.ComponentMetadata{
//		Path:     "/app/components/atoms/Button.tsx",
//		Name:     "Button",
//		Category: metadata.CategoryAtom,
//		Props: []metadata.PropDefinition{
//			{Name: "variant", Type: "string", DefaultValue: "'primary'"},
//		},
//	})
//
//	buttons := reg.Search("butt")
//	atoms := reg.GetByCategory(metadata.CategoryAtom)
//	users := reg.FindDependents("/app/components/atoms/Button.tsx")
//
// Listening for changes:
//
//	id := reg.AddChangeListener(func(ev metadata.ChangeEvent) {
//		log.Printf("%s %s", ev.Type, ev.Path)
//	})
//	defer reg.RemoveChangeListener(id)
//
// # Persistence
//
// WithStore makes the registry write through to a Store after each in-memory
// mutation. Store failures are logged and never roll back the in-memory
// table. Stores that also implement ChangeLogStore receive every ChangeRecord.
// Load hydrates the table from the store at startup.
//
// # Concurrency
//
// All methods are safe for concurrent use. Upserts and removals of the same
// path are serialized by a per-path lock held across the persistence write,
// so a path's stored state and its change records follow completion order.
// Writes to different paths proceed independently apart from the short
// table lock.
//
// # Performance Data
//
// RecordPerformance stores externally measured samples. They never affect
// versions. DetectPerformanceRegressions compares the two most recent samples
// of every component:
//
//	latest.RenderTime > previous.RenderTime * (1 + threshold/100)
package metadata
