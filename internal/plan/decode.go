package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"vidstats/internal/domain"
)

// Decode parses an untyped JSON plan, typically produced by a model, into a
// QueryPlan. It rejects anything that is not an object of the expected
// shape rather than trusting field presence; catalog checks happen later in
// Compile.
func Decode(raw []byte) (*domain.QueryPlan, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, &domain.PlanError{Message: "plan is not valid JSON", Err: err}
	}
	obj, ok := top.(map[string]any)
	if !ok {
		return nil, domain.ErrPlan("plan must be an object, got %s", jsonKind(top))
	}

	p := &domain.QueryPlan{}
	source, err := stringField(obj, "source", true)
	if err != nil {
		return nil, err
	}
	p.Source = domain.Source(source)

	agg, err := stringField(obj, "aggregation", true)
	if err != nil {
		return nil, err
	}
	p.Aggregation = domain.Aggregation(agg)

	if p.Field, err = stringField(obj, "field", false); err != nil {
		return nil, err
	}

	if h, present := obj["hours"]; present && h != nil {
		n, err := NormalizeNumber(h)
		if err != nil {
			return nil, &domain.PlanError{Message: "hours", Err: err}
		}
		p.Hours = &n
	}

	filters, err := filterList(obj["filters"])
	if err != nil {
		return nil, err
	}
	p.Filters = filters
	return p, nil
}

func filterList(v any) ([]domain.Filter, error) {
	if v == nil {
		return []domain.Filter{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, domain.ErrPlan("filters must be a list, got %s", jsonKind(v))
	}
	out := make([]domain.Filter, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, domain.ErrPlan("filter %d must be an object, got %s", i, jsonKind(item))
		}
		field, err := stringField(obj, "field", true)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		op, err := stringField(obj, "op", true)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		out = append(out, domain.Filter{
			Field: field,
			Op:    domain.Operator(op),
			Value: scalar(obj["value"]),
			From:  scalar(obj["from"]),
			To:    scalar(obj["to"]),
		})
	}
	return out, nil
}

// scalar drops nested objects and arrays so they fail normalization later
// instead of being stringified into a literal.
func scalar(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return struct{}{}
	default:
		return v
	}
}

func stringField(obj map[string]any, key string, required bool) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		if required {
			return "", domain.ErrPlan("%s is required", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", domain.ErrPlan("%s must be a string, got %s", key, jsonKind(v))
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", domain.ErrPlan("%s is required", key)
	}
	return s, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
