// Package store defines the data access contract for the pokedex catalog and
// its implementations (in-memory, MongoDB, and SQL).
//
// Every method takes context.Context as its first argument so request
// deadlines and tracing reach the backend.
package store

import (
	"context"
	"errors"

	"github.com/ericreyes/pokedex/internal/model"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("pokemon not found")

	// ErrConflict is returned when a write would duplicate a unique name.
	ErrConflict = errors.New("pokemon already exists")
)

// ---------------------------------------------------------------------------
// List options
// ---------------------------------------------------------------------------

// Sortable fields.
const (
	SortByNumber = "pokedex_number"
	SortByName   = "name"
)

// ListOptions carries pagination and ordering for list and search.
type ListOptions struct {
	Limit    int
	Offset   int
	SortBy   string
	SortDesc bool
}

// sortField returns the validated sort field, defaulting to the pokedex
// number.
func (o ListOptions) sortField() string {
	if o.SortBy == SortByName {
		return SortByName
	}
	return SortByNumber
}

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store is the repository for Pokemon records keyed by pokedex number.
// Expected conditions are reported with ErrNotFound and ErrConflict; any
// other error is an infrastructure failure.
type Store interface {
	// Ping checks backend connectivity. Used by the readiness probe.
	Ping(ctx context.Context) error

	// ListPokemon returns one page of records and the total record count.
	ListPokemon(ctx context.Context, opts ListOptions) ([]model.Pokemon, int, error)

	// GetPokemon returns the record with the given number or ErrNotFound.
	GetPokemon(ctx context.Context, number int) (model.Pokemon, error)

	// SearchPokemon returns one page of records matching filter and the
	// total number of matches.
	SearchPokemon(ctx context.Context, filter model.SearchFilter, opts ListOptions) ([]model.Pokemon, int, error)

	// CreatePokemon assigns the next pokedex number and stores p. Returns
	// ErrConflict if the name is taken.
	CreatePokemon(ctx context.Context, p model.Pokemon) (model.Pokemon, error)

	// ReplacePokemon overwrites the record with the given number. Returns
	// ErrNotFound or ErrConflict.
	ReplacePokemon(ctx context.Context, number int, p model.Pokemon) (model.Pokemon, error)

	// PatchPokemon merges the supplied fields into the record with the given
	// number and returns the result. Returns ErrNotFound or ErrConflict.
	PatchPokemon(ctx context.Context, number int, patch model.PokemonPatch) (model.Pokemon, error)

	// DeletePokemon removes the record. Deleting a missing record is not an
	// error.
	DeletePokemon(ctx context.Context, number int) error

	// CountPokemon returns the number of stored records.
	CountPokemon(ctx context.Context) (int, error)
}
