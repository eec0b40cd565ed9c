package schema

import (
	"context"
	"encoding/json"
	"fmt"
)

// Problem is a binding an upstream cannot serve as declared.
type Problem struct {
	Upstream  string
	Field     string
	Operation string
	Message   string
}

func (p Problem) String() string {
	if p.Field == "" {
		return fmt.Sprintf("%s: %s", p.Upstream, p.Message)
	}
	return fmt.Sprintf("%s: %s -> %s: %s", p.Upstream, p.Field, p.Operation, p.Message)
}

// Verify introspects every upstream the bindings target and checks that each
// bound operation exists on the right root type with the arguments its
// template passes. It only reads; nothing is changed on failure.
func (d *Dispatcher) Verify(ctx context.Context, bindings []Binding) []Problem {
	var problems []Problem

	byUpstream := make(map[string][]Binding)
	var order []string
	for _, b := range bindings {
		if _, seen := byUpstream[b.Upstream]; !seen {
			order = append(order, b.Upstream)
		}
		byUpstream[b.Upstream] = append(byUpstream[b.Upstream], b)
	}

	for _, name := range order {
		definition, err := d.introspect(ctx, name)
		if err != nil {
			problems = append(problems, Problem{Upstream: name, Message: err.Error()})
			continue
		}

		for _, b := range byUpstream[name] {
			problems = append(problems, d.check(definition, b)...)
		}
	}

	return problems
}

func (d *Dispatcher) introspect(ctx context.Context, name string) (Definition, error) {
	result := d.executor.Execute(ctx, name, "__schema", IntrospectionQuery)
	if !result.OK() {
		return Definition{}, fmt.Errorf("introspection failed: %s", result.Reason())
	}

	raw, err := json.Marshal(result.Data)
	if err != nil {
		return Definition{}, err
	}

	var data ResponseData
	if err := json.Unmarshal(raw, &data); err != nil {
		return Definition{}, fmt.Errorf("introspection reply: %w", err)
	}

	return data.Schema, nil
}

func (d *Dispatcher) check(definition Definition, b Binding) []Problem {
	problem := func(format string, args ...interface{}) Problem {
		return Problem{Upstream: b.Upstream, Field: b.Field, Operation: b.Operation, Message: fmt.Sprintf(format, args...)}
	}

	root, ok := definition.RootType(b.Kind)
	if !ok {
		return []Problem{problem("upstream has no %s type", b.Kind)}
	}

	field, ok := root.Field(b.Operation)
	if !ok {
		return []Problem{problem("%s.%s is not declared upstream", root.Name, b.Operation)}
	}

	var problems []Problem
	if tmpl, ok := d.builder.Template(b.Operation); ok {
		for _, param := range tmpl.Params() {
			if !field.HasArg(param) {
				problems = append(problems, problem("argument %q is not declared upstream", param))
			}
		}
	}

	return problems
}
