package main

import (
	"net/http"

	"github.com/graphql-go/graphql"
)

type SchemaProvider interface {
	GetSchema() graphql.Schema
}

// staticSchema serves a schema that is built once at startup.
type staticSchema struct {
	schema graphql.Schema
}

func (s staticSchema) GetSchema() graphql.Schema {
	return s.schema
}

// GetAuthValue returns the credential the client sent, looking at the
// Authentication and Authorization cookies before the Authentication header.
func GetAuthValue(r *http.Request) string {
	authCookie, _ := r.Cookie("Authentication")
	if authCookie != nil {
		return authCookie.Value
	}

	authCookie, _ = r.Cookie("Authorization")
	if authCookie != nil {
		return authCookie.Value
	}

	return r.Header.Get("Authentication")
}
