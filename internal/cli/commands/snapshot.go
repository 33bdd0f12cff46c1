package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/runtime/catalog"
)

// newObjectPutter creates the S3 client used by --upload
var newObjectPutter = func(region string) catalog.ObjectPutter {
	return catalog.NewS3Client(region)
}

// NewSnapshotCommand creates the snapshot command
func NewSnapshotCommand(opts *globalOptions) *cobra.Command {
	var (
		output string
		upload string
		region string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a static registry snapshot",
		Long: `Scan the source tree and write the registry as a static snapshot, the
{"components": [...]} document served by the static tier. Point
snapshot.location at the published file to let consumers skip scanning.

Examples:
  catalog snapshot > registry.json
  catalog snapshot --output public/registry.json
  catalog snapshot --upload s3://assets/catalog/registry.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if upload != "" {
				if _, _, ok := catalog.ParseS3Location(upload); !ok {
					return fmt.Errorf("--upload expects s3://bucket/key, got %q", upload)
				}
			}

			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ws.Close()

			res, err := ws.newAPI().RescanComponents(ctx)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			if len(res.Failures) > 0 {
				ui.ExtractFailures(len(res.Failures), opts.noColor).Write(cmd.ErrOrStderr())
			}
			snap := catalog.NewSnapshot(ws.registry.GetAll())

			status := cmd.ErrOrStderr()
			switch {
			case output != "":
				if err := writeSnapshotFile(output, snap); err != nil {
					return err
				}
				ui.Success(status, fmt.Sprintf("Wrote %s to %s", plural(len(snap.Components), "component"), output), opts.noColor)
			case upload == "":
				if err := snap.Write(cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			if upload != "" {
				if region == "" {
					region = ws.cfg.Snapshot.Region
				}
				if err := catalog.UploadSnapshot(ctx, newObjectPutter(region), upload, snap); err != nil {
					return err
				}
				ui.Success(status, fmt.Sprintf("Uploaded %s to %s", plural(len(snap.Components), "component"), upload), opts.noColor)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the snapshot to this file instead of stdout")
	cmd.Flags().StringVar(&upload, "upload", "", "Upload the snapshot to s3://bucket/key")
	cmd.Flags().StringVar(&region, "region", "", "AWS region for --upload (default: snapshot.region)")

	return cmd
}

// writeSnapshotFile replaces path atomically.
func writeSnapshotFile(path string, snap catalog.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := snap.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
