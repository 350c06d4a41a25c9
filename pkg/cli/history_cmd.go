package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vidstats/internal/db/repository"
	"vidstats/internal/domain"
)

var errAnswerLogDisabled = errors.New("answer log is disabled: set AUDIT_DB_PATH")

func newHistoryCmd(rt *runtime) *cobra.Command {
	var (
		status string
		limit  int
		stats  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered questions from the answer log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter := domain.AnswerFilter{Limit: limit}
			if status != "" {
				if status != domain.AnswerStatusOK && status != domain.AnswerStatusFailed {
					return fmt.Errorf("--status must be %s or %s", domain.AnswerStatusOK, domain.AnswerStatusFailed)
				}
				filter.Status = &status
			}

			auditDB, err := rt.openAnswerLog(ctx)
			if err != nil {
				return err
			}
			if auditDB == nil {
				return errAnswerLogDisabled
			}
			defer auditDB.Close() //nolint:errcheck
			repo := repository.NewAnswerLogRepo(auditDB)

			if stats {
				counts, err := repo.CountByStatus(ctx)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), counts)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "OK: %d\nFAILED: %d\n",
					counts[domain.AnswerStatusOK], counts[domain.AnswerStatusFailed])
				return nil
			}

			recs, err := repo.List(ctx, filter)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "CREATED\tSTATUS\tPATH\tANSWER\tMS\tQUESTION")
			for _, r := range recs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.Path, r.Answer, r.DurationMs, r.Question)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only OK or FAILED answers")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print counts per status instead of rows")
	return cmd
}
