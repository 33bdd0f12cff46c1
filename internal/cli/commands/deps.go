package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// DepsReport is the JSON output of the deps command
type DepsReport struct {
	Component  string                    `json:"component"`
	Graph      *metadata.DependencyGraph `json:"graph"`
	Dependents []string                  `json:"dependents"`
	Cycles     [][]string                `json:"cycles"`
}

// NewDepsCommand creates the deps command
func NewDepsCommand(opts *globalOptions) *cobra.Command {
	var (
		depth   int
		reverse bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "deps <path|name>",
		Short: "Show the dependency graph of a component",
		Long: `Show what a component imports, transitively up to --depth levels, and
which components import it. With --reverse the graph is walked from the
importing side instead. Import cycles involving the component are reported.

Examples:
  catalog deps Card
  catalog deps src/components/atoms/Button.tsx --reverse
  catalog deps Card --depth 1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 0 {
				return fmt.Errorf("--depth must not be negative")
			}
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.ensureRegistry(ctx); err != nil {
				return err
			}
			c, err := findComponent(cmd, ws, args[0])
			if err != nil {
				return err
			}

			graph, err := ws.registry.QueryDependencies(c.Path, metadata.DependencyOptions{Depth: depth, Reverse: reverse})
			if err != nil {
				return err
			}
			report := DepsReport{
				Component:  c.Path,
				Graph:      graph,
				Dependents: []string{},
				Cycles:     [][]string{},
			}
			for _, d := range ws.registry.FindDependents(c.Path) {
				report.Dependents = append(report.Dependents, d.Path)
			}
			for _, cycle := range metadata.DetectCycles(metadata.BuildDependencyGraph(ws.registry.GetAll())) {
				for _, id := range cycle {
					if id == c.Path {
						report.Cycles = append(report.Cycles, cycle)
						break
					}
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			renderDeps(cmd.OutOrStdout(), ws.cfg.Dir, c, report, reverse, opts.noColor)
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "Maximum traversal depth (0 = unlimited)")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "Walk the graph from the importing side")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")

	return cmd
}

// findComponent resolves a path or name argument against the registry.
func findComponent(cmd *cobra.Command, ws *workspace, arg string) (*metadata.ComponentMetadata, error) {
	if c, ok := ws.registry.Get(resolveArg(ws.cfg.Dir, arg)); ok {
		return c, nil
	}

	var matches []*metadata.ComponentMetadata
	var names []string
	for _, c := range ws.registry.GetAll() {
		names = append(names, c.Name)
		if strings.EqualFold(c.Name, arg) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		ui.ComponentNotFound(arg, ui.Suggest(arg, names), ws.noColor).Write(cmd.ErrOrStderr())
		return nil, &reportedError{err: fmt.Errorf("component %q not found", arg)}
	default:
		return nil, fmt.Errorf("%d components are named %s, use a path", len(matches), arg)
	}
}

func renderDeps(w io.Writer, dir string, c *metadata.ComponentMetadata, report DepsReport, reverse, noColor bool) {
	ui.Header(w, fmt.Sprintf("%s (%s)", c.Name, relPath(dir, c.Path)), noColor)

	label := func(id string) string {
		if n, ok := report.Graph.Nodes[id]; ok && n.Type == "component" {
			return fmt.Sprintf("%s (%s)", n.Name, relPath(dir, id))
		}
		return id
	}

	edges := append([]metadata.DependencyEdge(nil), report.Graph.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	title := "Imports"
	if reverse {
		title = "Imported by (transitive)"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, title+":")
	if len(edges) == 0 {
		fmt.Fprintln(w, "  none")
	} else {
		table := ui.NewTable(w, []string{"From", "To", "Relationship"}, &ui.TableOptions{NoColor: noColor})
		for _, e := range edges {
			table.AddRow(label(e.From), label(e.To), e.Relationship)
		}
		table.Render()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Used by:")
	if len(report.Dependents) == 0 {
		fmt.Fprintln(w, "  none")
	} else {
		items := make([]string, len(report.Dependents))
		for i, d := range report.Dependents {
			items[i] = relPath(dir, d)
		}
		ui.List(w, items, noColor)
	}

	for _, cycle := range report.Cycles {
		fmt.Fprintln(w)
		parts := make([]string, len(cycle))
		for i, id := range cycle {
			parts[i] = relPath(dir, id)
		}
		ui.Message{
			Level:   ui.LevelWarning,
			Context: "import cycle",
			Problem: strings.Join(parts, " → "),
			NoColor: noColor,
		}.Write(w)
	}
}
