package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// queryFlags are the filter, sort and paging flags of list and search
type queryFlags struct {
	category string
	sortBy   string
	desc     bool
	limit    int
	offset   int
	jsonOut  bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Only show components of this category")
	cmd.Flags().StringVar(&f.sortBy, "sort", "name", "Sort by name, path or lastUpdated")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort descending")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum number of components (0 = all)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Number of components to skip")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the page as JSON")
}

func (f *queryFlags) options(search string) (catalog.Options, error) {
	if f.limit < 0 || f.offset < 0 {
		return catalog.Options{}, fmt.Errorf("--limit and --offset must not be negative")
	}
	opts := catalog.Options{
		Search:        search,
		SortBy:        catalog.ParseSortBy(f.sortBy),
		SortDirection: catalog.SortAsc,
		Limit:         f.limit,
		Offset:        f.offset,
	}
	if f.category != "" {
		opts.Category = metadata.ParseCategory(f.category)
	}
	if f.desc {
		opts.SortDirection = catalog.SortDesc
	}
	return opts, nil
}

// NewListCommand creates the list command
func NewListCommand(opts *globalOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered components",
		Long: `List components from the first registry tier that has any: the static
snapshot when one is configured, otherwise an on-demand scan.

Examples:
  catalog list
  catalog list --category molecule --sort lastUpdated --desc
  catalog list --limit 20 --offset 20 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, flags, "")
		},
	}
	flags.register(cmd)
	return cmd
}

// NewSearchCommand creates the search command
func NewSearchCommand(opts *globalOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search components by name, description or path",
		Long: `Search matches the query case-insensitively against component names,
descriptions and paths.

Examples:
  catalog search button
  catalog search "date picker" --category organism`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, flags, args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

func runQuery(cmd *cobra.Command, opts *globalOptions, flags *queryFlags, search string) error {
	query, err := flags.options(search)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer ws.Close()

	page := ws.newAPI().GetComponents(cmd.Context(), query)
	if flags.jsonOut {
		return writeJSON(cmd.OutOrStdout(), page)
	}

	out := cmd.OutOrStdout()
	if page.Total == 0 {
		if search != "" {
			fmt.Fprintf(out, "No components match %q\n", search)
		} else {
			fmt.Fprintln(out, "No components found")
		}
		return nil
	}

	table := ui.NewTable(out, []string{"Name", "Category", "Props", "Version", "Path"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, c := range page.Items {
		table.AddRow(c.Name, string(c.Category), strconv.Itoa(len(c.Props)), c.Version, relPath(ws.cfg.Dir, c.Path))
	}
	table.Render()

	fmt.Fprintf(out, "\nShowing %d of %s", len(page.Items), plural(page.Total, "component"))
	if page.HasMore {
		fmt.Fprintf(out, " (next: --offset %d)", query.Offset+len(page.Items))
	}
	fmt.Fprintln(out)
	return nil
}
