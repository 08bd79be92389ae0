// Package types defines the public wire format of the pokedex API. It is
// imported by the client SDK, the CLI, and the server.
//
// Request payloads use pointer fields so that absent values can be told
// apart from zero values. The validation rules are declared as struct tags
// and enforced by the server; this package performs no validation itself.
package types

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ===========================================================================
// Response envelope
// ===========================================================================

// Envelope is the uniform wrapper for every API response. Data is only set
// on success; Error and Errors only on failure.
type Envelope[T any] struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    T            `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

// Meta carries pagination and collection size information.
type Meta struct {
	Offset     *int `json:"offset,omitempty"`
	Limit      *int `json:"limit,omitempty"`
	TotalCount *int `json:"total_count,omitempty"`
}

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ===========================================================================
// Resources
// ===========================================================================

// BaseStats is the public representation of a Pokemon's statistics.
type BaseStats struct {
	HP      int `json:"hp" yaml:"hp"`
	Attack  int `json:"attack" yaml:"attack"`
	Defense int `json:"defense" yaml:"defense"`
	Speed   int `json:"speed" yaml:"speed"`
}

// Pokemon is the public representation of a catalog record.
type Pokemon struct {
	PokedexNumber int       `json:"pokedex_number" yaml:"pokedex_number"`
	Name          string    `json:"name" yaml:"name"`
	Type          []string  `json:"type" yaml:"type"`
	BaseStats     BaseStats `json:"base_stats" yaml:"base_stats"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// ===========================================================================
// Requests
// ===========================================================================

// BaseStatsPayload is the stats block of a write request.
type BaseStatsPayload struct {
	HP      *int `json:"hp,omitempty" yaml:"hp,omitempty" validate:"required,min=1"`
	Attack  *int `json:"attack,omitempty" yaml:"attack,omitempty" validate:"required,min=1"`
	Defense *int `json:"defense,omitempty" yaml:"defense,omitempty" validate:"required"`
	Speed   *int `json:"speed,omitempty" yaml:"speed,omitempty" validate:"required"`
}

// PokemonPayload is the body of create and replace requests. PokedexNumber
// is accepted for round-tripping but never changes a record's identity.
type PokemonPayload struct {
	Name          *string           `json:"name,omitempty" yaml:"name,omitempty" validate:"required,min=1"`
	Type          []string          `json:"type,omitempty" yaml:"type,omitempty" validate:"required,min=1,max=2,dive,pokemontype"`
	BaseStats     *BaseStatsPayload `json:"base_stats,omitempty" yaml:"base_stats,omitempty" validate:"required"`
	Description   *string           `json:"description,omitempty" yaml:"description,omitempty" validate:"omitnil,min=1"`
	PokedexNumber *int              `json:"pokedex_number,omitempty" yaml:"pokedex_number,omitempty" validate:"omitnil,min=1"`
}

// BaseStatsPatch is the stats block of a patch request.
type BaseStatsPatch struct {
	HP      *int `json:"hp,omitempty" yaml:"hp,omitempty" validate:"omitnil,min=1"`
	Attack  *int `json:"attack,omitempty" yaml:"attack,omitempty" validate:"omitnil,min=1"`
	Defense *int `json:"defense,omitempty" yaml:"defense,omitempty"`
	Speed   *int `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// PokemonPatch is the body of a partial update. Only present fields are
// validated and applied.
type PokemonPatch struct {
	Name          *string         `json:"name,omitempty" yaml:"name,omitempty" validate:"omitnil,min=1"`
	Type          []string        `json:"type,omitempty" yaml:"type,omitempty" validate:"omitnil,min=1,max=2,dive,pokemontype"`
	BaseStats     *BaseStatsPatch `json:"base_stats,omitempty" yaml:"base_stats,omitempty"`
	Description   *string         `json:"description,omitempty" yaml:"description,omitempty" validate:"omitnil,min=1"`
	PokedexNumber *int            `json:"pokedex_number,omitempty" yaml:"pokedex_number,omitempty" validate:"omitnil,min=1"`
}

// SearchRequest is the body of a search request. Empty fields do not filter.
type SearchRequest struct {
	Type *string `json:"type,omitempty" validate:"omitnil,pokemontype"`
	Name *string `json:"name,omitempty" validate:"omitnil,min=1"`
}

// ListParams are the pagination query parameters accepted by list and
// search endpoints.
type ListParams struct {
	Limit  *int   `schema:"limit" validate:"omitnil,min=1,max=100"`
	Offset *int   `schema:"offset" validate:"omitnil,min=0,max=1000"`
	Sort   string `schema:"sort" validate:"omitempty,oneof=asc desc"`
	SortBy string `schema:"sort_by" validate:"omitempty,oneof=name pokedex_number"`
}
