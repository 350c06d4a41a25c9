package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidstats/internal/domain"
	"vidstats/internal/plan"
)

const planMaxTokens = 220

// PlanResult is a model-produced plan together with its compiled query.
type PlanResult struct {
	Plan  *domain.QueryPlan
	Query domain.CompiledQuery
}

// Planner asks the model for a structured plan and compiles it.
type Planner struct {
	model Completer
	now   func() time.Time
}

// NewPlanner creates a Planner over the given model.
func NewPlanner(model Completer) *Planner {
	return &Planner{model: model, now: time.Now}
}

// Plan makes one JSON-mode call and, on any failure, one plain call. The
// first top-level object in the reply is decoded and compiled; a plan that
// does not compile counts as a failure of that call.
func (p *Planner) Plan(ctx context.Context, question string) (*PlanResult, error) {
	system := PlanPrompt(p.now())

	var errs []error
	for _, jsonMode := range []bool{true, false} {
		res, err := p.try(ctx, Request{
			System:    system,
			User:      question,
			JSONMode:  jsonMode,
			MaxTokens: planMaxTokens,
		})
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil || errors.Is(err, ErrNotConfigured) {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (p *Planner) try(ctx context.Context, req Request) (*PlanResult, error) {
	text, err := p.model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, &domain.PlanError{Message: "model reply", Err: err}
	}
	qp, err := plan.Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	q, err := plan.Compile(qp)
	if err != nil {
		return nil, fmt.Errorf("compile model plan: %w", err)
	}
	return &PlanResult{Plan: qp, Query: q}, nil
}
