// Package model contains internal domain models for the pokedex service.
package model

import "slices"

// Elemental types a Pokemon may carry. Membership checks are case-sensitive.
const (
	TypeBug      = "Bug"
	TypeDragon   = "Dragon"
	TypeElectric = "Electric"
	TypeFighting = "Fighting"
	TypeFire     = "Fire"
	TypeFlying   = "Flying"
	TypeGhost    = "Ghost"
	TypeGrass    = "Grass"
	TypeGround   = "Ground"
	TypeIce      = "Ice"
	TypeNormal   = "Normal"
	TypePoison   = "Poison"
	TypePsychic  = "Psychic"
	TypeRock     = "Rock"
	TypeWater    = "Water"
)

// Types lists the closed enumeration of elemental types in display order.
var Types = []string{
	TypeBug, TypeDragon, TypeElectric, TypeFighting, TypeFire,
	TypeFlying, TypeGhost, TypeGrass, TypeGround, TypeIce,
	TypeNormal, TypePoison, TypePsychic, TypeRock, TypeWater,
}

// IsValidType reports whether t is one of the known elemental types.
func IsValidType(t string) bool {
	return slices.Contains(Types, t)
}

// BaseStats holds the combat statistics of a Pokemon.
type BaseStats struct {
	HP      int `json:"hp" bson:"hp"`
	Attack  int `json:"attack" bson:"attack"`
	Defense int `json:"defense" bson:"defense"`
	Speed   int `json:"speed" bson:"speed"`
}

// Pokemon is a catalog record. PokedexNumber is the storage identity and is
// assigned by the store on creation.
type Pokemon struct {
	PokedexNumber int       `json:"pokedex_number" bson:"pokedex_number"`
	Name          string    `json:"name" bson:"name"`
	Type          []string  `json:"type" bson:"type"`
	BaseStats     BaseStats `json:"base_stats" bson:"base_stats"`
	Description   string    `json:"description,omitempty" bson:"description,omitempty"`
}

// BaseStatsPatch carries the stats present in a partial update.
type BaseStatsPatch struct {
	HP      *int
	Attack  *int
	Defense *int
	Speed   *int
}

// PokemonPatch carries the fields present in a partial update. Nil fields are
// left untouched.
type PokemonPatch struct {
	Name        *string
	Type        []string
	BaseStats   *BaseStatsPatch
	Description *string
}

// IsEmpty reports whether the patch would change nothing.
func (p PokemonPatch) IsEmpty() bool {
	if p.Name != nil || p.Type != nil || p.Description != nil {
		return false
	}
	if p.BaseStats == nil {
		return true
	}
	s := p.BaseStats
	return s.HP == nil && s.Attack == nil && s.Defense == nil && s.Speed == nil
}

// Apply merges the patch into a copy of current and returns it.
func (p PokemonPatch) Apply(current Pokemon) Pokemon {
	out := current
	out.Type = slices.Clone(current.Type)

	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Type != nil {
		out.Type = slices.Clone(p.Type)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if s := p.BaseStats; s != nil {
		if s.HP != nil {
			out.BaseStats.HP = *s.HP
		}
		if s.Attack != nil {
			out.BaseStats.Attack = *s.Attack
		}
		if s.Defense != nil {
			out.BaseStats.Defense = *s.Defense
		}
		if s.Speed != nil {
			out.BaseStats.Speed = *s.Speed
		}
	}
	return out
}

// SearchFilter is an exact-match conjunction over the supplied fields. Empty
// fields do not constrain the result.
type SearchFilter struct {
	// Type matches records whose type list contains it.
	Type string
	Name string
}

// Matches reports whether p satisfies the filter.
func (f SearchFilter) Matches(p Pokemon) bool {
	if f.Name != "" && p.Name != f.Name {
		return false
	}
	if f.Type != "" && !slices.Contains(p.Type, f.Type) {
		return false
	}
	return true
}
