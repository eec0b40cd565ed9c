// Package query builds the GraphQL documents sent to upstream services.
//
// Documents are declared as templates: static operation text with $name
// placeholders. Arguments are substituted as typed Values, so every piece of
// client input is encoded as a GraphQL literal and can never change the shape
// of the document around it.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/parser"
)

var (
	ErrMissingArgument  = errors.New("missing template argument")
	ErrUnknownArgument  = errors.New("unknown template argument")
	ErrUnknownOperation = errors.New("unknown upstream operation")
	ErrInvalidTemplate  = errors.New("invalid document template")
)

// Args maps placeholder names to their values.
type Args map[string]Value

type segment struct {
	text string
	arg  string
}

// Template is a parsed upstream document with named placeholders.
type Template struct {
	name     string
	text     string
	segments []segment
	params   map[string]bool
}

// NewTemplate parses text and checks that it is a valid GraphQL document once
// its placeholders are filled.
func NewTemplate(name, text string) (*Template, error) {
	t := &Template{
		name:   name,
		text:   text,
		params: make(map[string]bool),
	}
	t.segments = t.scan(text)

	sample := make(Args, len(t.params))
	for param := range t.params {
		sample[param] = placeholderValue{}
	}

	doc, err := t.Render(sample)
	if err != nil {
		return nil, err
	}

	if _, err := parser.Parse(parser.ParseParams{Source: doc}); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTemplate, name, err)
	}

	return t, nil
}

// MustTemplate is like NewTemplate but panics on error. It is meant for
// package-level template declarations.
func MustTemplate(name, text string) *Template {
	t, err := NewTemplate(name, text)
	if err != nil {
		panic(err)
	}

	return t
}

func (t *Template) Name() string {
	return t.name
}

// Params returns the placeholder names in sorted order.
func (t *Template) Params() []string {
	params := make([]string, 0, len(t.params))
	for param := range t.params {
		params = append(params, param)
	}
	sort.Strings(params)

	return params
}

// Render substitutes args into the template. Every placeholder must be
// supplied and every supplied argument must be used.
func (t *Template) Render(args Args) (string, error) {
	for name := range args {
		if !t.params[name] {
			return "", fmt.Errorf("%w %q for %s", ErrUnknownArgument, name, t.name)
		}
	}

	var b strings.Builder
	b.Grow(len(t.text))

	for _, seg := range t.segments {
		if seg.arg == "" {
			b.WriteString(seg.text)
			continue
		}

		value, ok := args[seg.arg]
		if !ok || value == nil {
			return "", fmt.Errorf("%w %q for %s", ErrMissingArgument, seg.arg, t.name)
		}
		b.WriteString(value.Literal())
	}

	return b.String(), nil
}

// scan splits text into literal runs and placeholders. String literals in the
// static text are copied as-is.
func (t *Template) scan(text string) []segment {
	var segments []segment
	start := 0
	inString := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
		case c == '$' && i+1 < len(text) && isNameStart(text[i+1]):
			end := i + 2
			for end < len(text) && isNameContinue(text[end]) {
				end++
			}

			if start < i {
				segments = append(segments, segment{text: text[start:i]})
			}
			name := text[i+1 : end]
			segments = append(segments, segment{arg: name})
			t.params[name] = true

			start = end
			i = end - 1
		}
	}

	if start < len(text) {
		segments = append(segments, segment{text: text[start:]})
	}

	return segments
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameContinue(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// placeholderValue stands in for every argument while a template is checked.
// graphql-go's parser has no null literal, so an empty string is used.
type placeholderValue struct{}

func (placeholderValue) Literal() string {
	return `""`
}
