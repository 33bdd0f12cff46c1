package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// NewShowCommand creates the show command
func NewShowCommand(opts *globalOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <path|name>",
		Short: "Show the metadata of one component",
		Long: `Show everything recorded for a component: props, examples, dependencies,
version history and performance figures.

The argument is a file path (relative to the project directory, with an
optional #Name suffix for secondary components) or a component name.

Examples:
  catalog show src/components/atoms/Button.tsx
  catalog show src/components/atoms/Button.tsx#ButtonIcon
  catalog show Button --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ws.Close()

			api := ws.newAPI()
			c, ok := api.GetComponent(ctx, resolveArg(ws.cfg.Dir, args[0]))
			if !ok {
				all := api.GetComponents(ctx, catalog.Options{}).Items
				matches := byName(all, args[0])
				switch len(matches) {
				case 1:
					c, ok = matches[0], true
				case 0:
					var candidates []string
					for _, m := range all {
						candidates = append(candidates, m.Name)
					}
					ui.ComponentNotFound(args[0], ui.Suggest(args[0], candidates), opts.noColor).Write(cmd.ErrOrStderr())
					return &reportedError{err: fmt.Errorf("component %q not found", args[0])}
				default:
					paths := make([]string, len(matches))
					for i, m := range matches {
						paths[i] = relPath(ws.cfg.Dir, m.Path)
					}
					return fmt.Errorf("%d components are named %s, use a path: %s", len(matches), args[0], strings.Join(paths, ", "))
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			renderComponent(cmd.OutOrStdout(), ws.cfg.Dir, c, opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the record as JSON")
	return cmd
}

// resolveArg turns a path argument into a registry key. Names are returned
// unchanged.
func resolveArg(dir, arg string) string {
	file, name, secondary := strings.Cut(arg, "#")
	if !strings.ContainsAny(file, `/\`) && filepath.Ext(file) == "" {
		return arg
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	file = filepath.Clean(file)
	if secondary {
		return metadata.SecondaryPath(file, name)
	}
	return file
}

func byName(components []metadata.ComponentMetadata, name string) []metadata.ComponentMetadata {
	var out []metadata.ComponentMetadata
	for _, c := range components {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func renderComponent(w io.Writer, dir string, c metadata.ComponentMetadata, noColor bool) {
	ui.Header(w, c.Name, noColor)
	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("Path", relPath(dir, c.Path))
	if c.SourceFile != "" && c.SourceFile != c.Path {
		kv.AddRow("Source", relPath(dir, c.SourceFile))
	}
	kv.AddRow("Category", string(c.Category))
	kv.AddRow("Version", c.Version)
	kv.AddRow("Updated", formatTime(c.LastUpdated))
	kv.AddRow("Exports", orDash(strings.Join(c.Exports, ", ")))
	if c.Description != "" {
		kv.AddRow("Description", c.Description)
	}
	kv.Render()

	if len(c.Props) > 0 {
		fmt.Fprintln(w)
		ui.Header(w, "Props", noColor)
		table := ui.NewTable(w, []string{"Name", "Type", "Required", "Default", "Description"}, &ui.TableOptions{NoColor: noColor})
		for _, p := range c.Props {
			table.AddRow(p.Name, truncate(p.Type, 40), yesNo(p.Required), orDash(p.DefaultValue), truncate(p.Description, 60))
		}
		table.Render()
	}

	if len(c.Examples) > 0 {
		fmt.Fprintln(w)
		ui.Header(w, "Examples", noColor)
		for i, ex := range c.Examples {
			if i > 0 {
				fmt.Fprintln(w)
			}
			for _, line := range strings.Split(ex, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	if len(c.Dependencies) > 0 || len(c.ExternalDependencies) > 0 {
		fmt.Fprintln(w)
		ui.Header(w, "Dependencies", noColor)
		items := append([]string(nil), c.Dependencies...)
		for _, d := range c.ExternalDependencies {
			items = append(items, d+" (external)")
		}
		ui.List(w, items, noColor)
	}

	if len(c.ChangeHistory) > 0 {
		fmt.Fprintln(w)
		ui.Header(w, "History", noColor)
		table := ui.NewTable(w, []string{"Version", "Date", "Breaking", "Description"}, &ui.TableOptions{NoColor: noColor})
		for i := len(c.ChangeHistory) - 1; i >= 0; i-- {
			ch := c.ChangeHistory[i]
			table.AddRow(ch.Version, formatTime(ch.Date), yesNo(ch.IsBreaking), truncate(ch.Description, 60))
		}
		table.Render()
	}

	if pm := c.PerformanceMetrics; pm != nil {
		fmt.Fprintln(w)
		ui.Header(w, "Performance", noColor)
		perf := ui.NewKeyValueTable(w, noColor)
		perf.AddRow("Render time", fmt.Sprintf("%.2f ms", pm.RenderTime))
		perf.AddRow("Bundle size", fmt.Sprintf("%d B", pm.BundleSize))
		perf.AddRow("Complexity", fmt.Sprintf("%.1f", pm.ComplexityScore))
		perf.Render()
	}
}
