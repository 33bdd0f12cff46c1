package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	dir      string
	logLevel string
	noColor  bool
}

// reportedError is returned once a command has already rendered its own
// diagnostic, so Execute does not print it a second time.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "catalog",
		Short: "UI component discovery and registry",
		Long: color.CyanString(`catalog - UI component discovery and registry

catalog scans a source tree for React component files, extracts their
name, category, props, examples, dependencies and documentation, and keeps
a versioned registry of them.

Features:
  • Static extraction from the syntax tree, no bundler required
  • Version and change history per component
  • Live registry updates while you edit
  • HTTP API with static, live and on-demand tiers`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.dir, "dir", "C", ".", "Project directory containing catalog.yaml")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInitCommand(opts))
	rootCmd.AddCommand(NewScanCommand(opts))
	rootCmd.AddCommand(NewListCommand(opts))
	rootCmd.AddCommand(NewSearchCommand(opts))
	rootCmd.AddCommand(NewShowCommand(opts))
	rootCmd.AddCommand(NewChangesCommand(opts))
	rootCmd.AddCommand(NewDepsCommand(opts))
	rootCmd.AddCommand(NewRegressionsCommand(opts))
	rootCmd.AddCommand(NewSnapshotCommand(opts))
	rootCmd.AddCommand(NewServeCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the catalog version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)
			for _, kv := range [][2]string{
				{"catalog version", Version},
				{"Git commit", GitCommit},
				{"Build date", BuildDate},
				{"Go version", goVer},
			} {
				title.Fprintf(out, "%s: ", kv[0])
				fmt.Fprintln(out, kv[1])
			}
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
