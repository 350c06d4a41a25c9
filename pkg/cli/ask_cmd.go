package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidstats/internal/app"
	"vidstats/internal/domain"
)

func newAskCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the number",
		Example: `  vidstats ask "Сколько всего видео есть в системе?"
  vidstats ask -o json "Сколько видео набрало больше 100 000 просмотров за всё время?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			pool, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			auditDB, err := rt.openAnswerLog(ctx)
			if err != nil {
				return err
			}
			if auditDB != nil {
				defer auditDB.Close() //nolint:errcheck
			}

			a, err := app.New(app.Deps{Cfg: cfg, DB: pool, AuditDB: auditDB, Logger: rt.logger})
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			answer := a.Answers.Answer(domain.WithRequestID(ctx, domain.NewID()), question)
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"question": question, "answer": answer})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}
