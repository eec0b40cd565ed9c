package schema

import (
	"github.com/graphql-go/graphql"
)

// Types holds the gateway's own object types. They are independent of the
// upstream schemas; resolvers only hand them maps shaped like the selections
// requested by the query package.
type Types struct {
	Entrenador     *graphql.Object
	Pokemon        *graphql.Object
	BatallaPokemon *graphql.Object
}

func NewTypes() *Types {
	t := &Types{}

	t.Entrenador = graphql.NewObject(graphql.ObjectConfig{
		Name: "Entrenador",
		Fields: graphql.Fields{
			"entrenadorId": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"nombre":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"apellido":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	t.Pokemon = graphql.NewObject(graphql.ObjectConfig{
		Name: "Pokemon",
		Fields: graphql.Fields{
			"pokemonId": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"nombre":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"tipo":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"nivel":     &graphql.Field{Type: graphql.Int},
		},
	})

	// Entrenador and Pokemon reference each other, so the edges are added
	// once both objects exist.
	t.Entrenador.AddFieldConfig("pokemons", &graphql.Field{
		Name:    "pokemons",
		Type:    graphql.NewNonNull(graphql.NewList(t.Pokemon)),
		Resolve: projectPokemons,
	})
	t.Pokemon.AddFieldConfig("entrenador", &graphql.Field{
		Name: "entrenador",
		Type: t.Entrenador,
	})

	t.BatallaPokemon = graphql.NewObject(graphql.ObjectConfig{
		Name: "BatallaPokemon",
		Fields: graphql.Fields{
			"batallaId": &graphql.Field{Type: graphql.ID},
			"ganador":   &graphql.Field{Type: graphql.NewNonNull(t.Pokemon)},
			"pokemon1":  &graphql.Field{Type: graphql.NewNonNull(t.Pokemon)},
			"pokemon2":  &graphql.Field{Type: graphql.NewNonNull(t.Pokemon)},
		},
	})

	return t
}

// projectPokemons returns the pokemons already embedded in the parent trainer.
// It never calls upstream; a trainer fetched without its pokemons (for
// example one nested under a pokemon) yields an empty list.
func projectPokemons(p graphql.ResolveParams) (interface{}, error) {
	source, ok := p.Source.(map[string]interface{})
	if !ok {
		return []interface{}{}, nil
	}

	pokemons, ok := source["pokemons"].([]interface{})
	if !ok {
		return []interface{}{}, nil
	}

	return pokemons, nil
}

// New builds the unified schema, binding every root field to d.
func New(d *Dispatcher) (graphql.Schema, error) {
	return NewWithBindings(d, DefaultBindings(d.Types()))
}

// NewWithBindings builds a schema whose Query and Mutation fields are the
// given bindings.
func NewWithBindings(d *Dispatcher, bindings []Binding) (graphql.Schema, error) {
	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}

	for i := range bindings {
		binding := bindings[i]
		if binding.Hidden {
			continue
		}

		field := &graphql.Field{
			Name:        binding.Field,
			Type:        binding.Type,
			Args:        binding.Args,
			Description: binding.Description,
			Resolve:     d.Resolver(binding),
		}

		if binding.Kind == Mutation {
			mutationFields[binding.Field] = field
		} else {
			queryFields[binding.Field] = field
		}
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields})
	}

	return graphql.NewSchema(schemaConfig)
}
