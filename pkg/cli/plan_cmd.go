package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidstats/internal/domain"
	"vidstats/internal/heuristic"
	"vidstats/internal/llm"
	"vidstats/internal/plan"
)

// errNoShape is returned by "plan" when no heuristic matches and the model
// was not requested.
var errNoShape = errors.New("no built-in question shape matches; rerun with --model to ask the model")

type planOutput struct {
	Path  string            `json:"path"`
	Shape string            `json:"shape,omitempty"`
	Plan  *domain.QueryPlan `json:"plan"`
	SQL   string            `json:"sql"`
	Args  []any             `json:"args"`
}

func newPlanCmd(rt *runtime) *cobra.Command {
	var useModel bool
	cmd := &cobra.Command{
		Use:   "plan <question>",
		Short: "Show the query plan and SQL for a question without running it",
		Long: "Show how a question would be answered: the query plan and the compiled SQL\n" +
			"with its bound arguments. The database is never contacted. Questions outside\n" +
			"the built-in shapes need --model, which calls the configured model.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			out, err := planHeuristic(question)
			if errors.Is(err, errNoShape) && useModel {
				out, err = planWithModel(cmd, rt, question)
			}
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			planJSON, err := json.Marshal(out.Plan)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "path:  %s\n", out.Path)
			if out.Shape != "" {
				_, _ = fmt.Fprintf(w, "shape: %s\n", out.Shape)
			}
			_, _ = fmt.Fprintf(w, "plan:  %s\n", planJSON)
			_, _ = fmt.Fprintf(w, "sql:   %s\n", out.SQL)
			_, _ = fmt.Fprintf(w, "args:  %v\n", out.Args)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useModel, "model", false, "Ask the configured model when no built-in shape matches")
	return cmd
}

func planHeuristic(question string) (planOutput, error) {
	hit, ok := heuristic.Parse(question)
	if !ok {
		return planOutput{}, errNoShape
	}
	q, err := plan.Compile(hit.Plan)
	if err != nil {
		return planOutput{}, err
	}
	return planOutput{Path: "heuristic", Shape: hit.Shape, Plan: hit.Plan, SQL: q.SQL, Args: q.Args}, nil
}

func planWithModel(cmd *cobra.Command, rt *runtime, question string) (planOutput, error) {
	cfg, err := rt.config()
	if err != nil {
		return planOutput{}, err
	}
	client := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		SiteURL:     cfg.LLM.SiteURL,
		SiteName:    cfg.LLM.SiteName,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxRetries,
		BaseDelay:   cfg.LLM.RetryBaseDelay,
		MaxDelay:    cfg.LLM.RetryMaxDelay,
	}, nil, rt.logger)
	res, err := llm.NewPlanner(client).Plan(cmd.Context(), question)
	if err != nil {
		return planOutput{}, err
	}
	return planOutput{Path: "model", Plan: res.Plan, SQL: res.Query.SQL, Args: res.Query.Args}, nil
}
