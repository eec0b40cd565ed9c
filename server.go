package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	"github.com/Svandze/Spring-Graphql/config"
	"github.com/Svandze/Spring-Graphql/metrics"
	"github.com/Svandze/Spring-Graphql/tracing"
	"github.com/Svandze/Spring-Graphql/upstream"
)

const maxRequestBytes = 1 << 20

// GraphQLHandler executes client documents against the unified schema.
type GraphQLHandler struct {
	schemaProvider SchemaProvider
	logger         *slog.Logger
}

func NewGraphQLHandler(schemaProvider SchemaProvider, logger *slog.Logger) *GraphQLHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphQLHandler{schemaProvider: schemaProvider, logger: logger}
}

func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var opts upstream.Request

	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		defer r.Body.Close()
		if err != nil {
			writeRequestError(w, http.StatusBadRequest, "reading request body: "+err.Error())
			return
		}
		if err := json.Unmarshal(body, &opts); err != nil {
			writeRequestError(w, http.StatusBadRequest, "request body is not a GraphQL request: "+err.Error())
			return
		}
	case http.MethodGet:
		values := r.URL.Query()
		opts.Query = values.Get("query")
		opts.OperationName = values.Get("operationName")
		if variables := values.Get("variables"); variables != "" {
			if err := json.Unmarshal([]byte(variables), &opts.Variables); err != nil {
				writeRequestError(w, http.StatusBadRequest, "variables is not a JSON object: "+err.Error())
				return
			}
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeRequestError(w, http.StatusMethodNotAllowed, "method "+r.Method+" is not supported")
		return
	}

	if strings.TrimSpace(opts.Query) == "" {
		writeRequestError(w, http.StatusBadRequest, "query is required")
		return
	}

	if r.Method == http.MethodGet {
		if operation := operationType(opts.Query, opts.OperationName); operation != "" && operation != ast.OperationTypeQuery {
			w.Header().Set("Allow", "POST")
			writeRequestError(w, http.StatusMethodNotAllowed, operation+" operations must be sent with POST")
			return
		}
	}

	ctx := upstream.WithAuth(r.Context(), GetAuthValue(r))

	result := graphql.Do(graphql.Params{
		Schema:         h.schemaProvider.GetSchema(),
		RequestString:  opts.Query,
		VariableValues: opts.Variables,
		OperationName:  opts.OperationName,
		Context:        ctx,
	})
	if result.HasErrors() {
		h.logger.Debug("graphql request finished with errors",
			"request_id", RequestIDFrom(r.Context()),
			"errors", len(result.Errors))
	}

	writeJSON(w, http.StatusOK, result)
}

// operationType returns the type of the operation a request selects, or ""
// when the document does not parse or names no operation.
func operationType(document, operationName string) string {
	doc, err := parser.Parse(parser.ParseParams{Source: document})
	if err != nil {
		return ""
	}

	var operations []*ast.OperationDefinition
	for _, definition := range doc.Definitions {
		if op, ok := definition.(*ast.OperationDefinition); ok {
			operations = append(operations, op)
		}
	}

	for _, op := range operations {
		if operationName == "" && len(operations) == 1 {
			return op.Operation
		}
		if op.Name != nil && op.Name.Value == operationName {
			return op.Operation
		}
	}

	return ""
}

func writeRequestError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"errors": []map[string]interface{}{
			{"message": message},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}

	gateway, err := NewGateway(cfg,
		WithGatewayLogger(logger),
		WithGatewayMetrics(metrics.New()),
		WithGatewayTracer(tracer.Tracer()),
	)
	if err != nil {
		return fmt.Errorf("building schema: %w", err)
	}

	if cfg.VerifyUpstreams {
		go func() {
			verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			gateway.VerifyUpstreams(verifyCtx)
		}()
	}

	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           tracer.Middleware()(gateway.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			"address", cfg.Address,
			"graphql", cfg.GraphQLPath,
			"trainers", cfg.Upstreams[upstream.Trainers].URL,
			"battles", cfg.Upstreams[upstream.Battles].URL)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ParseDuration(cfg.ShutdownTimeout, 15*time.Second))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", "error", err)
	}

	return nil
}
