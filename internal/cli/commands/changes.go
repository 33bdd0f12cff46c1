package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// NewChangesCommand creates the changes command
func NewChangesCommand(opts *globalOptions) *cobra.Command {
	var (
		path    string
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show the registry change log",
		Long: `Show additions, updates and deletions recorded by the registry, newest
first. With a persistent storage driver the log spans every scan; with the
memory driver it only covers the scan this command performs.

Examples:
  catalog changes
  catalog changes --path src/components/atoms/Button.tsx --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
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

			if path != "" {
				path = resolveArg(ws.cfg.Dir, path)
			}
			history := ws.registry.GetChangeHistory(path, limit)
			if jsonOut {
				if history == nil {
					history = []metadata.ChangeRecord{}
				}
				return writeJSON(cmd.OutOrStdout(), history)
			}

			out := cmd.OutOrStdout()
			if len(history) == 0 {
				fmt.Fprintln(out, "No changes recorded")
				return nil
			}
			table := ui.NewTable(out, []string{"Time", "Change", "Name", "Version", "Breaking", "Path"}, &ui.TableOptions{NoColor: opts.noColor})
			for _, rec := range history {
				table.AddRow(formatTime(rec.Timestamp), string(rec.ChangeType), rec.Name, orDash(rec.Version), yesNo(rec.IsBreaking), relPath(ws.cfg.Dir, rec.Path))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Only show changes of this component")
	cmd.Flags().IntVarP(&limit, "limit", "n", metadata.DefaultChangeLimit, "Maximum number of entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the entries as JSON")

	return cmd
}
