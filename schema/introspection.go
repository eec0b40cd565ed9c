package schema

// IntrospectionQuery asks an upstream for its root types and the fields and
// arguments they declare.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      name
      kind
      fields {
        name
        args { name type { kind name ofType { kind name ofType { kind name } } } }
        type { kind name ofType { kind name ofType { kind name } } }
      }
    }
  }
}`

type FieldType struct {
	Kind   string     `json:"kind,omitempty"`
	Name   *string    `json:"name,omitempty"`
	OfType *FieldType `json:"ofType,omitempty"`
}

// NamedType unwraps NON_NULL and LIST wrappers.
func (t *FieldType) NamedType() string {
	for current := t; current != nil; current = current.OfType {
		if current.Name != nil {
			return *current.Name
		}
	}
	return ""
}

type FieldArg struct {
	DefaultValue *string   `json:"defaultValue,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Name         string    `json:"name,omitempty"`
	Type         FieldType `json:"type,omitempty"`
}

type TypeField struct {
	Name string     `json:"name,omitempty"`
	Type FieldType  `json:"type,omitempty"`
	Args []FieldArg `json:"args,omitempty"`
}

func (f TypeField) HasArg(name string) bool {
	for _, arg := range f.Args {
		if arg.Name == name {
			return true
		}
	}
	return false
}

type Type struct {
	Name   string      `json:"name,omitempty"`
	Kind   string      `json:"kind,omitempty"`
	Fields []TypeField `json:"fields,omitempty"`
}

func (t Type) Field(name string) (TypeField, bool) {
	for _, field := range t.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return TypeField{}, false
}

type RootType struct {
	Name string `json:"name,omitempty"`
}

type Definition struct {
	QueryType        *RootType `json:"queryType,omitempty"`
	MutationType     *RootType `json:"mutationType,omitempty"`
	SubscriptionType *RootType `json:"subscriptionType,omitempty"`
	Types            []Type    `json:"types,omitempty"`
}

// RootType returns the Query or Mutation type of the introspected schema.
func (d Definition) RootType(kind Kind) (Type, bool) {
	root := d.QueryType
	if kind == Mutation {
		root = d.MutationType
	}
	if root == nil {
		return Type{}, false
	}

	for _, t := range d.Types {
		if t.Name == root.Name {
			return t, true
		}
	}
	return Type{}, false
}

type ResponseData struct {
	Schema Definition `json:"__schema"`
}
