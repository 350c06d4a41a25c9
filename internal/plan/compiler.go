// Package plan compiles structured query plans into parameterized SQL.
//
// The compiler is the strong half of the safety story: every identifier in
// the emitted text comes from the catalog and every literal is bound as a
// positional argument, never interpolated.
package plan

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vidstats/internal/catalog"
	"vidstats/internal/domain"
)

// Compile validates a plan against the catalog and emits one SELECT with a
// single aggregate aliased to "value". Any violation yields a
// *domain.PlanError and no SQL.
func Compile(p *domain.QueryPlan) (domain.CompiledQuery, error) {
	if p == nil {
		return domain.CompiledQuery{}, domain.ErrPlan("plan is required")
	}

	// 1. Source
	src, ok := catalog.Lookup(p.Source)
	if !ok {
		return domain.CompiledQuery{}, domain.ErrPlan("source must be %s or %s, got %q",
			domain.SourceVideos, domain.SourceSnapshots, p.Source)
	}

	// 2. Aggregation
	agg, ok := catalog.CanonicalAggregation(p.Aggregation)
	if !ok {
		return domain.CompiledQuery{}, domain.ErrPlan("unsupported aggregation %q", p.Aggregation)
	}

	field := strings.TrimSpace(p.Field)
	if field == "" {
		field = domain.WildcardField
	}

	if p.Hours != nil && agg != domain.AggSumDeltaInWindow {
		return domain.CompiledQuery{}, domain.ErrPlan("hours is only allowed for %s", domain.AggSumDeltaInWindow)
	}

	b := &builder{src: src}
	if agg == domain.AggSumDeltaInWindow {
		if err := b.window(field, p.Hours); err != nil {
			return domain.CompiledQuery{}, err
		}
	} else {
		// 3. Field vs aggregation
		if err := b.aggregate(agg, field); err != nil {
			return domain.CompiledQuery{}, err
		}
	}

	// 4. Filters
	for i, f := range p.Filters {
		if err := b.filter(f); err != nil {
			return domain.CompiledQuery{}, fmt.Errorf("filter %d: %w", i, err)
		}
	}

	return b.build(), nil
}

type builder struct {
	src        *catalog.Source
	selectExpr string
	from       string
	qualifier  string // "s." inside the windowed join
	conditions []string
	args       []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) aggregate(agg domain.Aggregation, field string) error {
	b.from = string(b.src.Name)
	switch agg {
	case domain.AggCountRows:
		if field != domain.WildcardField {
			if _, ok := b.src.Field(field); !ok {
				return domain.ErrPlan("field %q is not allowed for %s", field, b.src.Name)
			}
		}
		b.selectExpr = "COUNT(*)::bigint"
	case domain.AggCountDistinct:
		if field == domain.WildcardField {
			return domain.ErrPlan("field is required for %s", agg)
		}
		if _, ok := b.src.Field(field); !ok {
			return domain.ErrPlan("field %q is not allowed for %s", field, b.src.Name)
		}
		b.selectExpr = "COUNT(DISTINCT " + field + ")::bigint"
	case domain.AggSum:
		f, ok := b.src.Field(field)
		if field == domain.WildcardField || !ok {
			return domain.ErrPlan("field %q is not a numeric metric of %s", field, b.src.Name)
		}
		if f.Class != catalog.ClassNumeric {
			return domain.ErrPlan("field %q must be numeric for %s, it is %s", field, agg, f.Class)
		}
		b.selectExpr = "COALESCE(SUM(" + field + "), 0)::bigint"
	default:
		return domain.ErrPlan("unsupported aggregation %q", agg)
	}
	return nil
}

func (b *builder) window(field string, hours *int64) error {
	if b.src.Name != domain.SourceSnapshots {
		return domain.ErrPlan("%s requires source=%s", domain.AggSumDeltaInWindow, domain.SourceSnapshots)
	}
	f, ok := b.src.Field(field)
	if !ok || !f.Delta {
		return domain.ErrPlan("field must be a delta_* metric for %s, got %q", domain.AggSumDeltaInWindow, field)
	}
	if hours == nil {
		return domain.ErrPlan("hours is required for %s", domain.AggSumDeltaInWindow)
	}
	if *hours <= 0 {
		return domain.ErrPlan("hours must be > 0, got %d", *hours)
	}
	b.qualifier = "s."
	b.selectExpr = "COALESCE(SUM(s." + field + "), 0)::bigint"
	b.from = "video_snapshots s JOIN videos v ON v.id = s.video_id"
	b.conditions = append(b.conditions,
		"s.created_at >= v.video_created_at",
		"s.created_at <= v.video_created_at + ("+b.bind(*hours)+"::int * INTERVAL '1 hour')",
	)
	return nil
}

func (b *builder) filter(f domain.Filter) error {
	name := strings.TrimSpace(f.Field)
	field, ok := b.src.Field(name)
	if !ok {
		return domain.ErrPlan("field %q is not allowed for %s", name, b.src.Name)
	}
	col := b.qualifier + field.Name

	sqlOp, ok := catalog.ComparisonSQL(f.Op)
	if !ok {
		return domain.ErrPlan("unsupported operator %q", f.Op)
	}

	if catalog.IsDateOperator(f.Op) {
		if field.Class != catalog.ClassDate {
			return domain.ErrPlan("operator %s is allowed only for date fields, %q is %s", f.Op, name, field.Class)
		}
		return b.dateFilter(col, f)
	}

	switch field.Class {
	case catalog.ClassNumeric:
		n, err := NormalizeNumber(f.Value)
		if err != nil {
			return planValueError(name, err)
		}
		b.conditions = append(b.conditions, col+" "+sqlOp+" "+b.bind(n))
	case catalog.ClassIdentifier:
		s, err := identifierValue(f.Value)
		if err != nil {
			return planValueError(name, err)
		}
		b.conditions = append(b.conditions, col+" "+sqlOp+" "+b.bind(s))
	case catalog.ClassDate:
		d, err := NormalizeDate(f.Value)
		if err != nil {
			return planValueError(name, err)
		}
		b.conditions = append(b.conditions, col+"::date "+sqlOp+" "+b.bind(d)+"::date")
	}
	return nil
}

func (b *builder) dateFilter(col string, f domain.Filter) error {
	switch f.Op {
	case domain.OpDateOn:
		if isBlank(f.Value) {
			return domain.ErrPlan("%s requires value", f.Op)
		}
		d, err := NormalizeDate(f.Value)
		if err != nil {
			return planValueError(f.Field, err)
		}
		b.conditions = append(b.conditions, col+"::date = "+b.bind(d)+"::date")
	case domain.OpDateBetween:
		if isBlank(f.From) || isBlank(f.To) {
			return domain.ErrPlan("%s requires from and to", f.Op)
		}
		from, err := NormalizeDate(f.From)
		if err != nil {
			return planValueError(f.Field, err)
		}
		to, err := NormalizeDate(f.To)
		if err != nil {
			return planValueError(f.Field, err)
		}
		if to.Before(from) {
			return domain.ErrPlan("%s range is reversed: %s > %s", f.Op, from.Format(time.DateOnly), to.Format(time.DateOnly))
		}
		first, second := b.bind(from), b.bind(to)
		b.conditions = append(b.conditions, col+"::date BETWEEN "+first+"::date AND "+second+"::date")
	}
	return nil
}

func (b *builder) build() domain.CompiledQuery {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.selectExpr)
	sb.WriteString(" AS value FROM ")
	sb.WriteString(b.from)
	if len(b.conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conditions, " AND "))
	}
	args := b.args
	if args == nil {
		args = []any{}
	}
	return domain.CompiledQuery{SQL: sb.String(), Args: args}
}

func identifierValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return s, nil
		}
	case fmt.Stringer:
		return x.String(), nil
	case int, int32, int64:
		return fmt.Sprint(x), nil
	}
	return "", domain.ErrInvalidValue("identifier", v)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func planValueError(field string, err error) error {
	var iv *domain.InvalidValueError
	if errors.As(err, &iv) {
		return &domain.PlanError{Message: fmt.Sprintf("field %q", field), Err: err}
	}
	return err
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Placeholders returns the highest positional placeholder index in text,
// which for compiler output equals the number of bound arguments.
func Placeholders(text string) int {
	highest := 0
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}
