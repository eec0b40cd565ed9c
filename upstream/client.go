// Package upstream executes GraphQL operations against the services the
// gateway fronts and classifies their replies.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Logical upstream names.
const (
	// Trainers owns trainers and pokemons.
	Trainers = "trainers"
	// Battles runs battles.
	Battles = "battles"
)

const (
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
	tracerName   = "github.com/Svandze/Spring-Graphql/upstream"
)

// Endpoint is the address of one upstream GraphQL service.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// Observer receives one sample per upstream call.
type Observer interface {
	ObserveUpstream(upstream, operation, outcome string, duration time.Duration)
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// Client sends GraphQL documents to named upstreams. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	endpoints map[string]Endpoint
	http      *http.Client
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
}

// NewClient creates a client for the given upstream name to endpoint mapping.
func NewClient(endpoints map[string]Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoints: make(map[string]Endpoint, len(endpoints)),
		http:      &http.Client{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}

	for name, endpoint := range endpoints {
		c.endpoints[name] = endpoint
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the endpoint registered under name.
func (c *Client) Endpoint(name string) (Endpoint, bool) {
	endpoint, ok := c.endpoints[name]
	return endpoint, ok
}

// Upstreams returns the registered upstream names in sorted order.
func (c *Client) Upstreams() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute posts document to the named upstream exactly once and classifies the
// reply. It never returns an error: failures are reported through Result.Kind.
func (c *Client) Execute(ctx context.Context, upstream, operation, document string) (result Result) {
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "upstream "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.name", upstream),
			attribute.String("graphql.operation.name", operation),
		),
	)
	defer func() {
		c.finish(span, result, time.Since(start))
	}()

	endpoint, ok := c.endpoints[upstream]
	if !ok {
		return transportFailure(upstream, operation, fmt.Errorf("%w %q", ErrUnknownUpstream, upstream))
	}

	if endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, endpoint.Timeout)
		defer cancel()
	}

	jsonValue, err := json.Marshal(Request{Query: document})
	if err != nil {
		return transportFailure(upstream, operation, err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint.URL, jsonValue)
	if err != nil {
		return transportFailure(upstream, operation, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(upstream, operation, resp)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	setJSONHeaders(request)
	setAuthHeaders(ctx, request)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))

	return c.http.Do(request)
}

func decodeEnvelope(upstream, operation string, resp *http.Response) Result {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportFailure(upstream, operation, err)
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return transportFailure(upstream, operation, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status))
		}
		return transportFailure(upstream, operation, fmt.Errorf("%w: %v", ErrMalformedBody, err))
	}

	// errors wins over data, whatever data holds.
	if len(envelope.Errors) > 0 {
		return softFailure(upstream, operation, envelope.Errors)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transportFailure(upstream, operation, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status))
	}

	if envelope.Data == nil {
		return transportFailure(upstream, operation, fmt.Errorf("%w: neither data nor errors", ErrMalformedBody))
	}

	return success(upstream, operation, envelope.Data)
}

func (c *Client) finish(span trace.Span, result Result, duration time.Duration) {
	outcome := result.Kind.String()

	span.SetAttributes(attribute.String("upstream.outcome", outcome))
	if !result.OK() {
		span.SetStatus(codes.Error, result.Reason())
	}
	span.End()

	if c.observer != nil {
		c.observer.ObserveUpstream(result.Upstream, result.Operation, outcome, duration)
	}

	c.logger.Debug("upstream call",
		"upstream", result.Upstream,
		"operation", result.Operation,
		"outcome", outcome,
		"duration", duration)
}

// Listing fetches the plain, non-GraphQL listing of an upstream and returns
// its results array. No gateway field exposes it.
func (c *Client) Listing(ctx context.Context, upstream string) ([]interface{}, error) {
	endpoint, ok := c.endpoints[upstream]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownUpstream, upstream)
	}

	if endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, endpoint.Timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint.URL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	var listing struct {
		Results []interface{} `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	return listing.Results, nil
}

func setJSONHeaders(request *http.Request) {
	request.Header.Add("Accept", "application/json")
	if request.Method != http.MethodGet {
		request.Header.Add("Content-Type", "application/json")
	}
}

func setAuthHeaders(ctx context.Context, request *http.Request) {
	authValue := AuthFrom(ctx)

	if authValue != "" {
		request.Header.Add("Authentication", authValue)
		request.Header.Add("Authorization", authValue)
	}
}
