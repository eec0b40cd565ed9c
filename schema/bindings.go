package schema

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql"

	"github.com/Svandze/Spring-Graphql/query"
	"github.com/Svandze/Spring-Graphql/upstream"
)

var ErrInvalidArgument = errors.New("invalid argument")

// DefaultBindings is the gateway's dispatch table.
func DefaultBindings(t *Types) []Binding {
	pokemonList := graphql.NewNonNull(graphql.NewList(t.Pokemon))

	return []Binding{
		{
			Field:     "findAllEntrenadores",
			Kind:      Query,
			Type:      graphql.NewNonNull(graphql.NewList(t.Entrenador)),
			Upstream:  upstream.Trainers,
			Operation: query.FindAllEntrenadores,
			Path:      []string{"findAllEntrenadores"},
		},
		{
			Field:     "countEntrenadores",
			Kind:      Query,
			Type:      graphql.NewNonNull(graphql.Int),
			Upstream:  upstream.Trainers,
			Operation: query.CountEntrenadores,
			Path:      []string{"countEntrenadores"},
		},
		{
			Field:     "findAllPokemons",
			Kind:      Query,
			Type:      pokemonList,
			Upstream:  upstream.Trainers,
			Operation: query.FindAllPokemons,
			Path:      []string{"findAllPokemons"},
		},
		{
			Field: "findAllPokemonsById",
			Kind:  Query,
			Type:  pokemonList,
			Args: graphql.FieldConfigArgument{
				"pokemonIds": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.ID))},
			},
			Upstream:  upstream.Trainers,
			Operation: query.FindAllPokemonsById,
			Encode:    encodeArgs(idListArg("pokemonIds")),
			Path:      []string{"findAllPokemonsById"},
		},
		{
			Field:     "countPokemons",
			Kind:      Query,
			Type:      graphql.NewNonNull(graphql.Int),
			Upstream:  upstream.Trainers,
			Operation: query.CountPokemons,
			Path:      []string{"countPokemons"},
		},
		{
			Field:     "findEntrenadorById",
			Kind:      Query,
			Type:      t.Entrenador,
			Upstream:  upstream.Trainers,
			Operation: query.FindEntrenadorById,
			Encode:    encodeArgs(idArg("entrenadorId")),
			Path:      []string{"findEntrenadorById"},
			Hidden:    true,
		},
		{
			Field: "newEntrenador",
			Kind:  Mutation,
			Type:  t.Entrenador,
			Args: graphql.FieldConfigArgument{
				"nombre":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"apellido": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Upstream:  upstream.Trainers,
			Operation: query.NewEntrenador,
			Encode:    encodeArgs(stringArg("nombre"), stringArg("apellido")),
			Path:      []string{"newEntrenador"},
		},
		{
			Field:     "findRandomPokemons",
			Kind:      Mutation,
			Type:      pokemonList,
			Upstream:  upstream.Battles,
			Operation: query.FindRandomPokemons,
			Path:      []string{"findRandomPokemons"},
			Fallback:  emptyList,
		},
		{
			Field:     "batallaPokemon",
			Kind:      Mutation,
			Type:      t.BatallaPokemon,
			Upstream:  upstream.Battles,
			Operation: query.BatallaPokemon,
			Path:      []string{"batallaPokemon"},
		},
		{
			Field: "newPokemon",
			Kind:  Mutation,
			Type:  t.Pokemon,
			Args: graphql.FieldConfigArgument{
				"nombre":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"tipo":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"nivel":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"entrenador": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Upstream:  upstream.Trainers,
			Operation: query.NewPokemon,
			Encode:    encodeArgs(stringArg("nombre"), stringArg("tipo"), intArg("nivel"), idArg("entrenador")),
			Path:      []string{"newPokemon"},
		},
		{
			Field: "borrarPokemon",
			Kind:  Mutation,
			Type:  graphql.Boolean,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Upstream:  upstream.Trainers,
			Operation: query.BorrarPokemon,
			Encode:    encodeArgs(idArg("id")),
			Path:      []string{"borrarPokemon"},
			Project:   deleted,
			Fallback:  falseValue,
		},
		{
			Field: "actualizarNivel",
			Kind:  Mutation,
			Type:  t.Pokemon,
			Args: graphql.FieldConfigArgument{
				"nivel": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Upstream:  upstream.Trainers,
			Operation: query.ActualizarNivel,
			Encode:    encodeArgs(idArg("id"), intArg("nivel")),
			Path:      []string{"actualizarNivel"},
		},
	}
}

// FindBinding returns the binding for a gateway field.
func FindBinding(bindings []Binding, field string) (Binding, bool) {
	for _, b := range bindings {
		if b.Field == field {
			return b, true
		}
	}
	return Binding{}, false
}

// TrainerByID looks a trainer up on the trainers service. No schema field
// exposes it.
func (d *Dispatcher) TrainerByID(ctx context.Context, id string) (interface{}, upstream.Result, error) {
	b, _ := FindBinding(DefaultBindings(d.types), "findEntrenadorById")
	return d.Execute(ctx, b, map[string]interface{}{"entrenadorId": id})
}

func emptyList() interface{} {
	return []interface{}{}
}

func falseValue() interface{} {
	return false
}

// deleted reports a successful delete. The upstream's own payload is not
// consulted; an answer without errors means the pokemon is gone.
func deleted(interface{}) interface{} {
	return true
}

type argSpec struct {
	name   string
	encode func(value interface{}) (query.Value, error)
}

func encodeArgs(specs ...argSpec) func(map[string]interface{}) (query.Args, error) {
	return func(args map[string]interface{}) (query.Args, error) {
		encoded := make(query.Args, len(specs))

		for _, spec := range specs {
			value, err := spec.encode(args[spec.name])
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrInvalidArgument, spec.name, err)
			}
			encoded[spec.name] = value
		}

		return encoded, nil
	}
}

func stringArg(name string) argSpec {
	return argSpec{name: name, encode: func(value interface{}) (query.Value, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return query.String(s), nil
	}}
}

func idArg(name string) argSpec {
	return argSpec{name: name, encode: func(value interface{}) (query.Value, error) {
		id, err := idString(value)
		if err != nil {
			return nil, err
		}
		return query.ID(id), nil
	}}
}

func intArg(name string) argSpec {
	return argSpec{name: name, encode: func(value interface{}) (query.Value, error) {
		switch n := value.(type) {
		case int:
			return query.Int(n), nil
		case int32:
			return query.Int(int(n)), nil
		case int64:
			return query.Int(int(n)), nil
		default:
			return nil, fmt.Errorf("expected int, got %T", value)
		}
	}}
}

// idListArg treats a null or absent list as empty.
func idListArg(name string) argSpec {
	return argSpec{name: name, encode: func(value interface{}) (query.Value, error) {
		if value == nil {
			return query.IDList(nil), nil
		}

		items, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", value)
		}

		ids := make([]string, 0, len(items))
		for _, item := range items {
			id, err := idString(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}

		return query.IDList(ids), nil
	}}
}

func idString(value interface{}) (string, error) {
	switch id := value.(type) {
	case string:
		return id, nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	default:
		return "", fmt.Errorf("expected id, got %T", value)
	}
}
