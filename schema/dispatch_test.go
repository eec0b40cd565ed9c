package schema

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Svandze/Spring-Graphql/query"
	"github.com/Svandze/Spring-Graphql/upstream"
)

type executedCall struct {
	upstream  string
	operation string
	document  string
}

// fakeExecutor answers by operation name and records every call.
type fakeExecutor struct {
	mu      sync.Mutex
	replies map[string]upstream.Result
	calls   []executedCall
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{replies: make(map[string]upstream.Result)}
}

func (f *fakeExecutor) succeed(operation string, data map[string]interface{}) {
	f.replies[operation] = upstream.Result{Kind: upstream.Success, Data: data}
}

func (f *fakeExecutor) softFail(operation, message string) {
	f.replies[operation] = upstream.Result{Kind: upstream.SoftFailure, Errors: []upstream.GraphQLError{{Message: message}}}
}

func (f *fakeExecutor) transportFail(operation string, cause error) {
	f.replies[operation] = upstream.Result{Kind: upstream.TransportFailure, Cause: cause}
}

func (f *fakeExecutor) Execute(_ context.Context, name, operation, document string) upstream.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, executedCall{upstream: name, operation: operation, document: document})

	reply, ok := f.replies[operation]
	if !ok {
		reply = upstream.Result{Kind: upstream.TransportFailure, Cause: upstream.ErrUnknownUpstream}
	}
	reply.Upstream = name
	reply.Operation = operation

	return reply
}

func (f *fakeExecutor) Calls() []executedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executedCall(nil), f.calls...)
}

type softFailureCounter struct {
	fields []string
}

func (c *softFailureCounter) ObserveSoftFailure(field, kind string) {
	c.fields = append(c.fields, field+":"+kind)
}

func newTestSchema(t *testing.T, exec Executor, opts ...DispatcherOption) (graphql.Schema, *Dispatcher) {
	t.Helper()

	d := NewDispatcher(query.NewBuilder(), exec, opts...)
	s, err := New(d)
	require.NoError(t, err)

	return s, d
}

func run(s graphql.Schema, request string, variables map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s,
		RequestString:  request,
		VariableValues: variables,
		Context:        context.Background(),
	})
}

func ash() map[string]interface{} {
	return map[string]interface{}{"entrenadorId": "1", "nombre": "Ash", "apellido": "Ketchum"}
}

func pikachu() map[string]interface{} {
	return map[string]interface{}{
		"pokemonId":  "25",
		"nombre":     "Pikachu",
		"tipo":       "Electrico",
		"nivel":      float64(12),
		"entrenador": ash(),
	}
}

func TestQueryReturnsUpstreamFieldVerbatim(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.FindAllPokemons, map[string]interface{}{
		"findAllPokemons": []interface{}{pikachu()},
	})
	s, _ := newTestSchema(t, exec)

	result := run(s, `{ findAllPokemons { pokemonId nombre tipo nivel entrenador { entrenadorId nombre apellido } } }`, nil)

	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{
		"findAllPokemons": []interface{}{
			map[string]interface{}{
				"pokemonId":  "25",
				"nombre":     "Pikachu",
				"tipo":       "Electrico",
				"nivel":      12,
				"entrenador": map[string]interface{}{"entrenadorId": "1", "nombre": "Ash", "apellido": "Ketchum"},
			},
		},
	}, result.Data)

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, upstream.Trainers, calls[0].upstream)
	assert.Contains(t, calls[0].document, "entrenador { entrenadorId nombre apellido }")
}

func TestCountQueries(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.CountPokemons, map[string]interface{}{"countPokemons": float64(151)})
	exec.succeed(query.CountEntrenadores, map[string]interface{}{"countEntrenadores": float64(3)})
	s, _ := newTestSchema(t, exec)

	result := run(s, `{ countPokemons countEntrenadores }`, nil)

	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{"countPokemons": 151, "countEntrenadores": 3}, result.Data)
	assert.Len(t, exec.Calls(), 2)
}

func TestFindAllPokemonsByIdEmptyList(t *testing.T) {
	tests := []struct {
		name      string
		request   string
		variables map[string]interface{}
	}{
		{name: "literal", request: `{ findAllPokemonsById(pokemonIds: []) { pokemonId } }`},
		{name: "omitted", request: `{ findAllPokemonsById { pokemonId } }`},
		{
			name:      "variable",
			request:   `query($ids: [ID!]) { findAllPokemonsById(pokemonIds: $ids) { pokemonId } }`,
			variables: map[string]interface{}{"ids": []interface{}{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			exec.succeed(query.FindAllPokemonsById, map[string]interface{}{
				"findAllPokemonsById": []interface{}{},
			})
			s, _ := newTestSchema(t, exec)

			result := run(s, tt.request, tt.variables)

			require.Empty(t, result.Errors)
			assert.Equal(t, map[string]interface{}{"findAllPokemonsById": []interface{}{}}, result.Data)

			calls := exec.Calls()
			require.Len(t, calls, 1)
			assert.Contains(t, calls[0].document, "findAllPokemonsById(pokemonIds: [])")
		})
	}
}

func TestFindAllPokemonsByIdQuotesEachID(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.FindAllPokemonsById, map[string]interface{}{
		"findAllPokemonsById": []interface{}{pikachu()},
	})
	s, _ := newTestSchema(t, exec)

	result := run(s, `{ findAllPokemonsById(pokemonIds: ["25", 4]) { nombre } }`, nil)

	require.Empty(t, result.Errors)
	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].document, `findAllPokemonsById(pokemonIds: ["25","4"])`)
}

func TestNewEntrenadorReturnsUpstreamObjectUnchanged(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.NewEntrenador, map[string]interface{}{"newEntrenador": ash()})
	_, d := newTestSchema(t, exec)

	b, ok := FindBinding(DefaultBindings(d.Types()), "newEntrenador")
	require.True(t, ok)

	value, err := d.Resolver(b)(graphql.ResolveParams{
		Context: context.Background(),
		Args:    map[string]interface{}{"nombre": "Ash", "apellido": "Ketchum"},
	})

	require.NoError(t, err)
	assert.Equal(t, ash(), value)
}

func TestMutationSoftFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	counter := &softFailureCounter{}

	exec := newFakeExecutor()
	exec.softFail(query.NewPokemon, "x")
	exec.softFail(query.BorrarPokemon, "x")
	exec.softFail(query.ActualizarNivel, "x")
	exec.softFail(query.NewEntrenador, "x")
	exec.transportFail(query.BatallaPokemon, upstream.ErrBadStatus)
	exec.transportFail(query.FindRandomPokemons, upstream.ErrMalformedBody)

	s, _ := newTestSchema(t, exec, WithLogger(logger), WithSoftFailureObserver(counter))

	result := run(s, `mutation {
		newPokemon(nombre: "Mew", tipo: "Psiquico", nivel: 50, entrenador: "1") { pokemonId }
		borrarPokemon(id: "9")
		actualizarNivel(nivel: 3, id: "9") { nivel }
		newEntrenador(nombre: "Gary", apellido: "Oak") { entrenadorId }
		batallaPokemon { batallaId }
		findRandomPokemons { pokemonId }
	}`, nil)

	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{
		"newPokemon":         nil,
		"borrarPokemon":      false,
		"actualizarNivel":    nil,
		"newEntrenador":      nil,
		"batallaPokemon":     nil,
		"findRandomPokemons": []interface{}{},
	}, result.Data)

	assert.Len(t, counter.fields, 6)
	assert.Contains(t, counter.fields, "newPokemon:soft_failure")
	assert.Contains(t, counter.fields, "batallaPokemon:transport_failure")
	assert.Contains(t, logs.String(), "field=newPokemon")
	assert.Contains(t, logs.String(), "error=x")
}

func TestResolverSoftFailureValues(t *testing.T) {
	exec := newFakeExecutor()
	exec.softFail(query.NewPokemon, "x")
	exec.softFail(query.BorrarPokemon, "x")
	_, d := newTestSchema(t, exec, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	bindings := DefaultBindings(d.Types())

	newPokemon, _ := FindBinding(bindings, "newPokemon")
	value, err := d.Resolver(newPokemon)(graphql.ResolveParams{
		Context: context.Background(),
		Args:    map[string]interface{}{"nombre": "Mew", "tipo": "Psiquico", "nivel": 50, "entrenador": "1"},
	})
	require.NoError(t, err)
	assert.Nil(t, value)

	borrar, _ := FindBinding(bindings, "borrarPokemon")
	value, err = d.Resolver(borrar)(graphql.ResolveParams{
		Context: context.Background(),
		Args:    map[string]interface{}{"id": "9"},
	})
	require.NoError(t, err)
	assert.Equal(t, false, value)
}

func TestBorrarPokemonSuccess(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.BorrarPokemon, map[string]interface{}{"borrarPokemon": nil})
	s, _ := newTestSchema(t, exec)

	result := run(s, `mutation { borrarPokemon(id: "9") }`, nil)

	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{"borrarPokemon": true}, result.Data)

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, `mutation { borrarPokemon(id: "9") }`, calls[0].document)
}

func TestQueryFailureIsFieldError(t *testing.T) {
	exec := newFakeExecutor()
	exec.transportFail(query.CountPokemons, upstream.ErrBadStatus)
	exec.softFail(query.FindAllPokemons, "database down")
	s, _ := newTestSchema(t, exec)

	result := run(s, `{ countPokemons }`, nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "countPokemons")
	assert.Equal(t, "TRANSPORT_FAILURE", result.Errors[0].Extensions["code"])
	assert.Equal(t, upstream.Trainers, result.Errors[0].Extensions["upstream"])

	result = run(s, `{ findAllPokemons { pokemonId } }`, nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "database down")
	assert.Equal(t, "UPSTREAM_ERROR", result.Errors[0].Extensions["code"])
}

func TestBatallaPokemonRoutesToBattles(t *testing.T) {
	battle := map[string]interface{}{
		"batallaId": "100",
		"ganador":   map[string]interface{}{"pokemonId": "25", "nombre": "Pikachu", "tipo": "Electrico", "nivel": float64(12)},
		"pokemon1":  map[string]interface{}{"pokemonId": "25", "nombre": "Pikachu", "tipo": "Electrico", "nivel": float64(12)},
		"pokemon2":  map[string]interface{}{"pokemonId": "7", "nombre": "Squirtle", "tipo": "Agua", "nivel": float64(9)},
	}

	exec := newFakeExecutor()
	exec.succeed(query.BatallaPokemon, map[string]interface{}{"batallaPokemon": battle})
	s, d := newTestSchema(t, exec)

	result := run(s, `mutation { batallaPokemon { batallaId ganador { nombre } pokemon1 { nombre nivel } pokemon2 { nombre entrenador { nombre } } } }`, nil)

	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{
		"batallaPokemon": map[string]interface{}{
			"batallaId": "100",
			"ganador":   map[string]interface{}{"nombre": "Pikachu"},
			"pokemon1":  map[string]interface{}{"nombre": "Pikachu", "nivel": 12},
			"pokemon2":  map[string]interface{}{"nombre": "Squirtle", "entrenador": nil},
		},
	}, result.Data)

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, upstream.Battles, calls[0].upstream)

	b, _ := FindBinding(DefaultBindings(d.Types()), "batallaPokemon")
	value, _, err := d.Execute(context.Background(), b, nil)
	require.NoError(t, err)
	assert.Equal(t, battle, value)
}

func TestEveryMutationRoutesToItsUpstream(t *testing.T) {
	want := map[string]string{
		"newEntrenador":      upstream.Trainers,
		"newPokemon":         upstream.Trainers,
		"borrarPokemon":      upstream.Trainers,
		"actualizarNivel":    upstream.Trainers,
		"batallaPokemon":     upstream.Battles,
		"findRandomPokemons": upstream.Battles,
	}

	for _, b := range DefaultBindings(NewTypes()) {
		if b.Kind != Mutation {
			assert.Equal(t, upstream.Trainers, b.Upstream, b.Field)
			continue
		}
		assert.Equal(t, want[b.Field], b.Upstream, b.Field)
	}
}

func TestTrainerPokemonsAreProjectedWithoutUpstreamCalls(t *testing.T) {
	exec := newFakeExecutor()
	trainer := ash()
	trainer["pokemons"] = []interface{}{
		map[string]interface{}{"pokemonId": "25", "nombre": "Pikachu", "tipo": "Electrico", "nivel": float64(12)},
	}
	exec.succeed(query.FindAllEntrenadores, map[string]interface{}{
		"findAllEntrenadores": []interface{}{trainer},
	})
	exec.succeed(query.FindAllPokemons, map[string]interface{}{
		"findAllPokemons": []interface{}{pikachu()},
	})
	s, _ := newTestSchema(t, exec)

	result := run(s, `{
		findAllEntrenadores { nombre pokemons { nombre } }
		findAllPokemons { entrenador { nombre pokemons { nombre } } }
	}`, nil)

	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{
		"findAllEntrenadores": []interface{}{
			map[string]interface{}{
				"nombre":   "Ash",
				"pokemons": []interface{}{map[string]interface{}{"nombre": "Pikachu"}},
			},
		},
		"findAllPokemons": []interface{}{
			map[string]interface{}{
				"entrenador": map[string]interface{}{"nombre": "Ash", "pokemons": []interface{}{}},
			},
		},
	}, result.Data)

	assert.Len(t, exec.Calls(), 2)
}

func TestTrainerNameIsEncodedSafely(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.NewEntrenador, map[string]interface{}{"newEntrenador": ash()})
	s, _ := newTestSchema(t, exec)

	nombre := `Ash") { entrenadorId } borrarPokemon(id: "1`
	apellido := "Ketchum \\ \"Jr\"\n"

	result := run(s, `mutation($n: String!, $a: String!) { newEntrenador(nombre: $n, apellido: $a) { entrenadorId } }`,
		map[string]interface{}{"n": nombre, "a": apellido})
	require.Empty(t, result.Errors)

	calls := exec.Calls()
	require.Len(t, calls, 1)

	doc, err := parser.Parse(parser.ParseParams{Source: calls[0].document})
	require.NoError(t, err)

	op := doc.Definitions[0].(*ast.OperationDefinition)
	require.Len(t, op.SelectionSet.Selections, 1, "the document must still hold a single field")

	field := op.SelectionSet.Selections[0].(*ast.Field)
	assert.Equal(t, "newEntrenador", field.Name.Value)

	got := map[string]string{}
	for _, arg := range field.Arguments {
		got[arg.Name.Value] = arg.Value.(*ast.StringValue).Value
	}
	assert.Equal(t, map[string]string{"nombre": nombre, "apellido": apellido}, got)
}

func TestTrainerByIDIsNotExposed(t *testing.T) {
	exec := newFakeExecutor()
	exec.succeed(query.FindEntrenadorById, map[string]interface{}{"findEntrenadorById": ash()})
	s, d := newTestSchema(t, exec)

	_, exposed := s.QueryType().Fields()["findEntrenadorById"]
	assert.False(t, exposed)

	value, result, err := d.TrainerByID(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, result.OK())
	assert.Equal(t, ash(), value)

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].document, `findEntrenadorById(entrenadorId: "1")`)
}

func TestExecuteRejectsBadArguments(t *testing.T) {
	exec := newFakeExecutor()
	_, d := newTestSchema(t, exec)

	b, _ := FindBinding(DefaultBindings(d.Types()), "newPokemon")
	_, _, err := d.Execute(context.Background(), b, map[string]interface{}{"nombre": "Mew"})

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, exec.Calls())
}

func TestExtract(t *testing.T) {
	data := map[string]interface{}{
		"a": map[string]interface{}{"b": "c"},
		"n": nil,
	}

	assert.Equal(t, "c", extract(data, []string{"a", "b"}))
	assert.Nil(t, extract(data, []string{"missing"}))
	assert.Nil(t, extract(data, []string{"n", "deeper"}))
	assert.Equal(t, data, extract(data, nil))
}
