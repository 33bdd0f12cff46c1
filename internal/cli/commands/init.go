package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/config"
	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/internal/storage"
)

var storageDrivers = []string{storage.DriverMemory, storage.DriverSQLite, storage.DriverPostgres, storage.DriverRedis}

// NewInitCommand creates the init command
func NewInitCommand(opts *globalOptions) *cobra.Command {
	var (
		yes     bool
		force   bool
		roots   []string
		driver  string
		dsn     string
		address string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a catalog.yaml for the project",
		Long: `Create catalog.yaml in the project directory. Values not given as flags
are asked for interactively unless --yes is set.

Examples:
  catalog init
  catalog init --yes --roots src/components --storage sqlite --dsn catalog.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Exists(opts.dir) && !force {
				return fmt.Errorf("%s already exists in %s (use --force to overwrite)", config.FileName, opts.dir)
			}

			cfg, err := loadConfig(&globalOptions{dir: opts.dir, noColor: opts.noColor}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			flags := cmd.Flags()

			if !flags.Changed("roots") && !yes {
				answer := strings.Join(cfg.Roots, ", ")
				prompt := &survey.Input{
					Message: "Component directories (comma separated):",
					Default: answer,
				}
				if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
				roots = splitList(answer)
			}
			if len(roots) > 0 {
				cfg.Roots = roots
			}

			if !flags.Changed("storage") && !yes {
				prompt := &survey.Select{
					Message: "Where should the registry be stored?",
					Options: storageDrivers,
					Default: cfg.Storage.Driver,
				}
				if err := survey.AskOne(prompt, &driver); err != nil {
					return err
				}
			}
			if driver != "" {
				cfg.Storage.Driver = driver
			}

			if cfg.Storage.Driver != storage.DriverMemory && dsn == "" {
				if yes {
					if cfg.Storage.Driver != storage.DriverSQLite {
						return fmt.Errorf("--dsn is required for the %s driver", cfg.Storage.Driver)
					}
					dsn = "catalog.db"
				} else {
					prompt := &survey.Input{
						Message: "Connection string:",
						Default: defaultDSN(cfg.Storage.Driver),
					}
					if err := survey.AskOne(prompt, &dsn, survey.WithValidator(survey.Required)); err != nil {
						return err
					}
				}
			}
			cfg.Storage.DSN = dsn

			if !flags.Changed("address") && !yes {
				address = cfg.Server.Address
				prompt := &survey.Input{
					Message: "HTTP listen address:",
					Default: address,
				}
				if err := survey.AskOne(prompt, &address, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if address != "" {
				cfg.Server.Address = address
			}

			path := filepath.Join(opts.dir, config.FileName)
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			if _, err := loadConfig(opts, cmd.ErrOrStderr()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ui.Success(out, "Created "+path, opts.noColor)
			fmt.Fprintln(out, "\nNext steps:")
			ui.List(out, []string{
				"catalog scan      build the registry",
				"catalog list      browse components",
				"catalog serve     serve the registry over HTTP",
			}, opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing catalog.yaml")
	cmd.Flags().StringSliceVar(&roots, "roots", nil, "Component directories")
	cmd.Flags().StringVar(&driver, "storage", "", "Storage driver (memory, sqlite, postgres, redis)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Storage connection string")
	cmd.Flags().StringVar(&address, "address", "", "HTTP listen address")

	return cmd
}

func defaultDSN(driver string) string {
	switch driver {
	case storage.DriverSQLite:
		return "catalog.db"
	case storage.DriverPostgres, storage.DriverLibPQ:
		return "postgres://localhost:5432/catalog?sslmode=disable"
	case storage.DriverRedis:
		return "redis://localhost:6379/0"
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
