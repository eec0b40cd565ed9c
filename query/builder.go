package query

import (
	"fmt"
	"sort"
)

// Selection sets shared by the upstream documents. A pokemon always carries
// its trainer so the gateway never needs a second round trip for it.
const (
	TrainerFields             = "entrenadorId nombre apellido"
	TrainerWithPokemonsFields = TrainerFields + " pokemons { pokemonId nombre tipo nivel }"
	PokemonFields             = "pokemonId nombre tipo nivel entrenador { " + TrainerFields + " }"
	BattlePokemonFields       = "pokemonId nombre tipo nivel"
	BattleFields              = "batallaId" +
		" ganador { " + BattlePokemonFields + " }" +
		" pokemon1 { " + BattlePokemonFields + " }" +
		" pokemon2 { " + BattlePokemonFields + " }"
)

// Upstream operation names.
const (
	FindAllEntrenadores = "findAllEntrenadores"
	CountEntrenadores   = "countEntrenadores"
	FindEntrenadorById  = "findEntrenadorById"
	FindAllPokemons     = "findAllPokemons"
	FindAllPokemonsById = "findAllPokemonsById"
	CountPokemons       = "countPokemons"
	NewEntrenador       = "newEntrenador"
	NewPokemon          = "newPokemon"
	BorrarPokemon       = "borrarPokemon"
	ActualizarNivel     = "actualizarNivel"
	BatallaPokemon      = "batallaPokemon"
	FindRandomPokemons  = "findRandomPokemons"
)

func defaultTemplates() []*Template {
	return []*Template{
		MustTemplate(FindAllEntrenadores, `{ findAllEntrenadores { `+TrainerWithPokemonsFields+` } }`),
		MustTemplate(CountEntrenadores, `{ countEntrenadores }`),
		MustTemplate(FindEntrenadorById, `{ findEntrenadorById(entrenadorId: $entrenadorId) { `+TrainerFields+` } }`),
		MustTemplate(FindAllPokemons, `{ findAllPokemons { `+PokemonFields+` } }`),
		MustTemplate(FindAllPokemonsById, `{ findAllPokemonsById(pokemonIds: $pokemonIds) { `+PokemonFields+` } }`),
		MustTemplate(CountPokemons, `{ countPokemons }`),
		MustTemplate(NewEntrenador, `mutation { newEntrenador(nombre: $nombre, apellido: $apellido) { `+TrainerFields+` } }`),
		MustTemplate(NewPokemon, `mutation { newPokemon(nombre: $nombre, tipo: $tipo, nivel: $nivel, entrenador: $entrenador) { `+PokemonFields+` } }`),
		MustTemplate(BorrarPokemon, `mutation { borrarPokemon(id: $id) }`),
		MustTemplate(ActualizarNivel, `mutation { actualizarNivel(id: $id, nivel: $nivel) { `+PokemonFields+` } }`),
		MustTemplate(BatallaPokemon, `mutation { batallaPokemon { `+BattleFields+` } }`),
		MustTemplate(FindRandomPokemons, `mutation { findRandomPokemons { `+BattlePokemonFields+` } }`),
	}
}

// Builder turns an operation name and its arguments into an upstream document.
type Builder struct {
	templates map[string]*Template
}

// NewBuilder returns a builder holding the default operation catalogue.
func NewBuilder() *Builder {
	return NewBuilderWith(defaultTemplates()...)
}

func NewBuilderWith(templates ...*Template) *Builder {
	b := &Builder{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		b.templates[t.Name()] = t
	}

	return b
}

// Build renders the named operation.
func (b *Builder) Build(operation string, args Args) (string, error) {
	t, ok := b.templates[operation]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownOperation, operation)
	}

	return t.Render(args)
}

func (b *Builder) Template(operation string) (*Template, bool) {
	t, ok := b.templates[operation]
	return t, ok
}

// Operations returns the catalogue's operation names in sorted order.
func (b *Builder) Operations() []string {
	names := make([]string, 0, len(b.templates))
	for name := range b.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
