package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	internaldb "vidstats/internal/db"
)

func newImportCmd(rt *runtime) *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the videos dataset into Postgres",
		Long: "Load the videos JSON dataset in one transaction. The import is skipped when\n" +
			"videos already has rows; --force truncates both tables and reloads.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.VideosJSONPath
			}

			pool, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := internaldb.RunMigrations(ctx, pool); err != nil {
				return err
			}
			stats, err := internaldb.ImportFile(ctx, pool, file, force)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"file": file, "skipped": stats.Skipped,
					"videos": stats.Videos, "snapshots": stats.Snapshots,
				})
			}
			if stats.Skipped {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "videos already loaded, nothing imported (use --force to reload)\n")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d videos and %d snapshots from %s\n", stats.Videos, stats.Snapshots, file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Dataset path (default VIDEOS_JSON_PATH)")
	cmd.Flags().BoolVar(&force, "force", false, "Truncate existing data and reload")
	return cmd
}
