package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"go.opentelemetry.io/otel/trace"

	"github.com/Svandze/Spring-Graphql/config"
	"github.com/Svandze/Spring-Graphql/metrics"
	"github.com/Svandze/Spring-Graphql/query"
	"github.com/Svandze/Spring-Graphql/schema"
	"github.com/Svandze/Spring-Graphql/upstream"
)

// Gateway owns the unified schema and everything needed to serve it.
type Gateway struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	client     *upstream.Client
	dispatcher *schema.Dispatcher
	schema     SchemaProvider
}

type GatewayOption func(*gatewayOptions)

type gatewayOptions struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	httpClient *http.Client
}

func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(o *gatewayOptions) {
		o.logger = logger
	}
}

func WithGatewayMetrics(m *metrics.Metrics) GatewayOption {
	return func(o *gatewayOptions) {
		o.metrics = m
	}
}

func WithGatewayTracer(tracer trace.Tracer) GatewayOption {
	return func(o *gatewayOptions) {
		o.tracer = tracer
	}
}

func WithUpstreamHTTPClient(httpClient *http.Client) GatewayOption {
	return func(o *gatewayOptions) {
		o.httpClient = httpClient
	}
}

// NewGateway wires the upstream client, the query builder and the dispatch
// table into one executable schema.
func NewGateway(cfg *config.Config, opts ...GatewayOption) (*Gateway, error) {
	o := gatewayOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}

	clientOpts := []upstream.Option{
		upstream.WithLogger(o.logger),
		upstream.WithObserver(o.metrics),
	}
	if o.tracer != nil {
		clientOpts = append(clientOpts, upstream.WithTracer(o.tracer))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, upstream.WithHTTPClient(o.httpClient))
	}

	client := upstream.NewClient(cfg.Endpoints(), clientOpts...)
	dispatcher := schema.NewDispatcher(query.NewBuilder(), client,
		schema.WithLogger(o.logger),
		schema.WithSoftFailureObserver(o.metrics),
	)

	unified, err := schema.New(dispatcher)
	if err != nil {
		return nil, err
	}

	return &Gateway{
		cfg:        cfg,
		logger:     o.logger,
		metrics:    o.metrics,
		client:     client,
		dispatcher: dispatcher,
		schema:     staticSchema{schema: unified},
	}, nil
}

// VerifyUpstreams checks the upstream schemas against the dispatch table and
// logs every mismatch. It reports how many problems were found.
func (g *Gateway) VerifyUpstreams(ctx context.Context) int {
	problems := g.dispatcher.Verify(ctx, schema.DefaultBindings(g.dispatcher.Types()))
	for _, problem := range problems {
		g.logger.Warn("upstream schema mismatch",
			"upstream", problem.Upstream,
			"field", problem.Field,
			"operation", problem.Operation,
			"problem", problem.Message)
	}

	if len(problems) == 0 {
		g.logger.Info("upstream schemas verified", "upstreams", g.client.Upstreams())
	}

	return len(problems)
}

// Handler returns the gateway's routes wrapped in the request middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	routes := []string{g.cfg.GraphQLPath, "/health"}

	mux.Handle(g.cfg.GraphQLPath, NewGraphQLHandler(g.schema, g.logger))
	if g.cfg.SocketPath != "" {
		mux.Handle(g.cfg.SocketPath, NewSocketHandler(g.schema, g.logger, g.metrics))
		routes = append(routes, g.cfg.SocketPath)
	}
	if g.cfg.Metrics.Enabled {
		mux.Handle(g.cfg.Metrics.Path, g.metrics.Handler())
		routes = append(routes, g.cfg.Metrics.Path)
	}
	mux.HandleFunc("/health", g.health)
	if g.cfg.Playground {
		mux.Handle("/{$}", playground.Handler("Pokemon Gateway", g.cfg.GraphQLPath))
		routes = append(routes, "/")
	}

	return chain(mux,
		RequestID(),
		AccessLog(g.logger, g.metrics, routes...),
	)
}

func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"upstreams": g.client.Upstreams(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}
