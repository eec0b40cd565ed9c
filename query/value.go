package query

import (
	"strconv"
	"strings"
)

// Value is an argument that can be substituted into a Template.
// Values know how to print themselves as GraphQL literals, which is the only
// way client input reaches an upstream document.
type Value interface {
	Literal() string
}

type stringValue string

func (v stringValue) Literal() string {
	return quote(string(v))
}

type intValue int

func (v intValue) Literal() string {
	return strconv.Itoa(int(v))
}

type boolValue bool

func (v boolValue) Literal() string {
	return strconv.FormatBool(bool(v))
}

type listValue []Value

func (v listValue) Literal() string {
	items := make([]string, 0, len(v))
	for _, item := range v {
		items = append(items, item.Literal())
	}

	return "[" + strings.Join(items, ",") + "]"
}

// String returns a quoted GraphQL string literal.
func String(s string) Value {
	return stringValue(s)
}

// ID returns an ID literal. Upstream IDs are always sent in their string form.
func ID(id string) Value {
	return stringValue(id)
}

// Int returns an unquoted integer literal.
func Int(n int) Value {
	return intValue(n)
}

func Bool(b bool) Value {
	return boolValue(b)
}

// IDList returns a bracketed list of quoted IDs. A nil or empty slice renders as [].
func IDList(ids []string) Value {
	list := make(listValue, 0, len(ids))
	for _, id := range ids {
		list = append(list, ID(id))
	}

	return list
}

// quote renders s as a GraphQL StringValue. Invalid UTF-8 bytes become U+FFFD.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[r>>4])
				b.WriteByte(hexDigits[r&0xF])
				continue
			}
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')
	return b.String()
}

const hexDigits = "0123456789abcdef"
