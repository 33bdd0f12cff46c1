package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/internal/web/server"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// NewRegressionsCommand creates the regressions command
func NewRegressionsCommand(opts *globalOptions) *cobra.Command {
	var (
		threshold float64
		fail      bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "regressions",
		Short: "Report components whose render time regressed",
		Long: `Compare the two most recent performance samples of every component and
report those whose render time grew by more than --threshold percent.

Samples are posted to the HTTP API (POST /api/performance) and need a
persistent storage driver to survive between runs.

Examples:
  catalog regressions
  catalog regressions --threshold 25 --fail`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 {
				return fmt.Errorf("--threshold must not be negative")
			}
			ws, err := openWorkspace(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ws.Close()

			regs := ws.registry.DetectPerformanceRegressions(threshold)
			if regs == nil {
				regs = []metadata.Regression{}
			}

			out := cmd.OutOrStdout()
			switch {
			case jsonOut:
				if err := writeJSON(out, regs); err != nil {
					return err
				}
			case len(regs) == 0:
				ui.Success(out, fmt.Sprintf("No render time regressions above %.0f%%", threshold), opts.noColor)
			default:
				table := ui.NewTable(out, []string{"Name", "Previous", "Current", "Increase", "Path"}, &ui.TableOptions{NoColor: opts.noColor})
				for _, r := range regs {
					table.AddRow(r.Name,
						fmt.Sprintf("%.2f ms", r.PreviousRender),
						fmt.Sprintf("%.2f ms", r.CurrentRender),
						fmt.Sprintf("+%.1f%%", r.IncreasePercent),
						relPath(ws.cfg.Dir, r.Path))
				}
				table.Render()
			}

			if fail && len(regs) > 0 {
				return fmt.Errorf("%s regressed", plural(len(regs), "component"))
			}
			return nil
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", server.DefaultRegressionThreshold, "Render time increase in percent that counts as a regression")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with an error when regressions are found")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the regressions as JSON")

	return cmd
}
