package upstream

import (
	"context"
	"encoding/json"
)

// Request is the JSON body of a GraphQL call.
type Request struct {
	Query         string                 `json:"query,omitempty" url:"query" schema:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty" url:"variables" schema:"variables"`
	OperationName string                 `json:"operationName,omitempty" url:"operationName" schema:"operationName"`
}

// GraphQLError is one entry of an envelope's errors array.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// UnmarshalJSON also accepts a bare string, which some services send instead
// of an error object.
func (e *GraphQLError) UnmarshalJSON(data []byte) error {
	var message string
	if err := json.Unmarshal(data, &message); err == nil {
		*e = GraphQLError{Message: message}
		return nil
	}

	type plain GraphQLError
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*e = GraphQLError(decoded)

	return nil
}

// Envelope is the standard GraphQL HTTP response wrapper.
type Envelope struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []GraphQLError         `json:"errors,omitempty"`
}

type authKey struct{}

// WithAuth attaches the client's credential so it is forwarded upstream.
func WithAuth(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, authKey{}, value)
}

// AuthFrom returns the credential stored by WithAuth.
func AuthFrom(ctx context.Context) string {
	value, _ := ctx.Value(authKey{}).(string)
	return value
}
