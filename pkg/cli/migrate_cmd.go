package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	internaldb "vidstats/internal/db"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations and the answer log migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := internaldb.RunMigrations(ctx, pool); err != nil {
				return err
			}
			auditDB, err := rt.openAnswerLog(ctx)
			if err != nil {
				return err
			}
			if auditDB != nil {
				_ = auditDB.Close()
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"migrated": true, "answer_log": auditDB != nil})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
