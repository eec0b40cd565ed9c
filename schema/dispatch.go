package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphql-go/graphql"

	"github.com/Svandze/Spring-Graphql/query"
	"github.com/Svandze/Spring-Graphql/upstream"
)

type Kind int

const (
	Query Kind = iota
	Mutation
)

func (k Kind) String() string {
	if k == Mutation {
		return "mutation"
	}
	return "query"
}

// Binding ties one root field of the unified schema to one upstream
// operation.
type Binding struct {
	Field       string
	Kind        Kind
	Type        graphql.Output
	Args        graphql.FieldConfigArgument
	Description string

	Upstream  string
	Operation string
	// Encode turns the field's resolved arguments into template arguments.
	// Nil means the operation takes none.
	Encode func(args map[string]interface{}) (query.Args, error)
	// Path is walked into the envelope's data object.
	Path []string
	// Project reshapes the extracted value. Nil returns it verbatim.
	Project func(value interface{}) interface{}
	// Fallback is what a failed mutation resolves to.
	Fallback func() interface{}
	// Hidden bindings are callable through the dispatcher but are not exposed
	// as schema fields.
	Hidden bool
}

// Executor runs one upstream document. *upstream.Client implements it.
type Executor interface {
	Execute(ctx context.Context, upstream, operation, document string) upstream.Result
}

// SoftFailureObserver is told about every mutation that degraded.
type SoftFailureObserver interface {
	ObserveSoftFailure(field, kind string)
}

// Dispatcher executes bindings: build the document, call the upstream,
// extract the field.
type Dispatcher struct {
	builder  *query.Builder
	executor Executor
	types    *Types
	logger   *slog.Logger
	observer SoftFailureObserver
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithSoftFailureObserver(observer SoftFailureObserver) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

func NewDispatcher(builder *query.Builder, executor Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		builder:  builder,
		executor: executor,
		types:    NewTypes(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Dispatcher) Types() *Types {
	return d.types
}

func (d *Dispatcher) Builder() *query.Builder {
	return d.builder
}

// Execute runs b with the given field arguments. The returned error is only
// set when the document could not be built; upstream outcomes are reported
// through the Result.
func (d *Dispatcher) Execute(ctx context.Context, b Binding, args map[string]interface{}) (interface{}, upstream.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var templateArgs query.Args
	if b.Encode != nil {
		encoded, err := b.Encode(args)
		if err != nil {
			return nil, upstream.Result{}, fmt.Errorf("%s: %w", b.Field, err)
		}
		templateArgs = encoded
	}

	document, err := d.builder.Build(b.Operation, templateArgs)
	if err != nil {
		return nil, upstream.Result{}, fmt.Errorf("%s: %w", b.Field, err)
	}

	result := d.executor.Execute(ctx, b.Upstream, b.Operation, document)
	if !result.OK() {
		return nil, result, nil
	}

	value := extract(result.Data, b.Path)
	if b.Project != nil {
		value = b.Project(value)
	}

	return value, result, nil
}

// Resolver returns the graphql-go resolve function for b.
//
// Queries surface any upstream failure as a field error. Mutations never do:
// they log the failure and resolve to the binding's fallback value.
func (d *Dispatcher) Resolver(b Binding) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		value, result, err := d.Execute(p.Context, b, p.Args)
		if err != nil {
			return nil, err
		}

		if result.OK() {
			return value, nil
		}

		if b.Kind == Query {
			return nil, result.Err()
		}

		d.degrade(b, result)
		return b.fallback(), nil
	}
}

func (d *Dispatcher) degrade(b Binding, result upstream.Result) {
	d.logger.Warn("mutation failed upstream, returning empty result",
		"field", b.Field,
		"upstream", result.Upstream,
		"kind", result.Kind.String(),
		"error", result.Reason())

	if d.observer != nil {
		d.observer.ObserveSoftFailure(b.Field, result.Kind.String())
	}
}

func (b Binding) fallback() interface{} {
	if b.Fallback == nil {
		return nil
	}
	return b.Fallback()
}

// extract walks path into data. A missing key yields nil.
func extract(data map[string]interface{}, path []string) interface{} {
	var current interface{} = data

	for _, key := range path {
		object, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = object[key]
	}

	return current
}
