package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/internal/tooling/scan"
	"github.com/conduit-lang/catalog/internal/web/server"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// NewScanCommand creates the scan command
func NewScanCommand(opts *globalOptions) *cobra.Command {
	var (
		jsonOut bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the source tree and update the registry",
		Long: `Locate every component file under the configured roots, extract its
metadata and make the registry match the result. New components are added,
changed ones get a version bump and components whose file is gone are removed.

Files that fail to parse keep their previous records.

Examples:
  catalog scan
  catalog scan --verbose
  catalog scan --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ws.Close()

			var bar *ui.ProgressBar
			var extra []catalog.Option
			if !jsonOut {
				bar = ui.NewProgressBar(cmd.ErrOrStderr(), ui.ProgressBarOptions{
					Total:   len(ws.locator.Locate(ctx)),
					Message: "extracting",
					NoColor: opts.noColor,
				})
				extra = append(extra, catalog.WithRuntime(ws.locator, &progressExtractor{FileExtractor: ws.extractor, bar: bar}))
			}
			api := ws.newAPI(extra...)

			res, err := api.RescanComponents(ctx)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			if bar != nil {
				bar.Finish()
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), server.NewRescanSummary(res))
			}
			renderScan(cmd, ws, res, verbose)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the scan summary as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List components and extraction failures")

	return cmd
}

func renderScan(cmd *cobra.Command, ws *workspace, res *scan.Result, verbose bool) {
	out := cmd.OutOrStdout()
	ui.Success(out, fmt.Sprintf("Scanned %s, found %s in %s",
		plural(res.Files, "file"), plural(len(res.Components), "component"),
		res.Duration.Round(time.Millisecond)), ws.noColor)

	if verbose && len(res.Components) > 0 {
		fmt.Fprintln(out)
		table := ui.NewTable(out, []string{"Name", "Category", "Version", "Path"}, &ui.TableOptions{NoColor: ws.noColor})
		for _, c := range ws.registry.GetAll() {
			table.AddRow(c.Name, string(c.Category), c.Version, relPath(ws.cfg.Dir, c.Path))
		}
		table.Render()
	}

	if len(res.Failures) == 0 {
		return
	}
	fmt.Fprintln(out)
	if !verbose {
		ui.ExtractFailures(len(res.Failures), ws.noColor).Write(out)
		return
	}
	table := ui.NewTable(out, []string{"File", "Phase", "Line", "Message"}, &ui.TableOptions{NoColor: ws.noColor})
	for _, f := range res.Failures {
		line := "-"
		if f.Line > 0 {
			line = strconv.Itoa(f.Line)
		}
		table.AddRow(relPath(ws.cfg.Dir, f.File), f.Phase, line, truncate(f.Message, 80))
	}
	table.Render()
}

// progressExtractor advances a progress bar once per extracted file
type progressExtractor struct {
	scan.FileExtractor
	bar *ui.ProgressBar
}

func (p *progressExtractor) ExtractFile(ctx context.Context, path string) ([]metadata.ComponentMetadata, error) {
	defer p.bar.Increment()
	return p.FileExtractor.ExtractFile(ctx, path)
}
