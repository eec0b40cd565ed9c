package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestDisabledProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "pokemon-gateway"})
	require.NoError(t, err)

	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestMiddlewarePassesThrough(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "pokemon-gateway"})
	require.NoError(t, err)

	var sawSpan bool
	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.SpanFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	assert.True(t, sawSpan)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStatusWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusBadGateway)

	assert.Equal(t, http.StatusBadGateway, sw.status)
	assert.Same(t, rec, sw.Unwrap())
}
