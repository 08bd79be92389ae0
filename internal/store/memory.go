package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/ericreyes/pokedex/internal/model"
)

// MemoryStore is a process-local Store. It backs development runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int]model.Pokemon
	last    int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int]model.Pokemon)}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ListPokemon returns one page of records.
func (s *MemoryStore) ListPokemon(ctx context.Context, opts ListOptions) ([]model.Pokemon, int, error) {
	return s.SearchPokemon(ctx, model.SearchFilter{}, opts)
}

// GetPokemon returns a single record.
func (s *MemoryStore) GetPokemon(ctx context.Context, number int) (model.Pokemon, error) {
	if err := ctx.Err(); err != nil {
		return model.Pokemon{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.records[number]
	if !ok {
		return model.Pokemon{}, ErrNotFound
	}
	return clonePokemon(p), nil
}

// SearchPokemon returns one page of matching records.
func (s *MemoryStore) SearchPokemon(ctx context.Context, filter model.SearchFilter, opts ListOptions) ([]model.Pokemon, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	matches := make([]model.Pokemon, 0, len(s.records))
	for _, p := range s.records {
		if filter.Matches(p) {
			matches = append(matches, clonePokemon(p))
		}
	}
	s.mu.RUnlock()

	sortPokemon(matches, opts)
	return paginate(matches, opts), len(matches), nil
}

// CreatePokemon stores p under the next pokedex number.
func (s *MemoryStore) CreatePokemon(ctx context.Context, p model.Pokemon) (model.Pokemon, error) {
	if err := ctx.Err(); err != nil {
		return model.Pokemon{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(p.Name, 0) {
		return model.Pokemon{}, ErrConflict
	}
	s.last++
	p = clonePokemon(p)
	p.PokedexNumber = s.last
	s.records[p.PokedexNumber] = p
	return clonePokemon(p), nil
}

// ReplacePokemon overwrites an existing record.
func (s *MemoryStore) ReplacePokemon(ctx context.Context, number int, p model.Pokemon) (model.Pokemon, error) {
	if err := ctx.Err(); err != nil {
		return model.Pokemon{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[number]; !ok {
		return model.Pokemon{}, ErrNotFound
	}
	if s.nameTaken(p.Name, number) {
		return model.Pokemon{}, ErrConflict
	}
	p = clonePokemon(p)
	p.PokedexNumber = number
	s.records[number] = p
	return clonePokemon(p), nil
}

// PatchPokemon merges patch into an existing record.
func (s *MemoryStore) PatchPokemon(ctx context.Context, number int, patch model.PokemonPatch) (model.Pokemon, error) {
	if err := ctx.Err(); err != nil {
		return model.Pokemon{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[number]
	if !ok {
		return model.Pokemon{}, ErrNotFound
	}
	if patch.Name != nil && s.nameTaken(*patch.Name, number) {
		return model.Pokemon{}, ErrConflict
	}
	updated := patch.Apply(current)
	s.records[number] = updated
	return clonePokemon(updated), nil
}

// DeletePokemon removes a record if present.
func (s *MemoryStore) DeletePokemon(ctx context.Context, number int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, number)
	s.mu.Unlock()
	return nil
}

// CountPokemon returns the number of records.
func (s *MemoryStore) CountPokemon(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// nameTaken reports whether another record than except uses name. Callers
// hold s.mu.
func (s *MemoryStore) nameTaken(name string, except int) bool {
	for n, p := range s.records {
		if n != except && p.Name == name {
			return true
		}
	}
	return false
}

func clonePokemon(p model.Pokemon) model.Pokemon {
	p.Type = slices.Clone(p.Type)
	return p
}

func sortPokemon(items []model.Pokemon, opts ListOptions) {
	byName := opts.sortField() == SortByName
	slices.SortFunc(items, func(a, b model.Pokemon) int {
		c := cmp.Compare(a.PokedexNumber, b.PokedexNumber)
		if byName {
			c = cmp.Or(cmp.Compare(a.Name, b.Name), c)
		}
		if opts.SortDesc {
			return -c
		}
		return c
	})
}

func paginate(items []model.Pokemon, opts ListOptions) []model.Pokemon {
	if opts.Offset >= len(items) {
		return []model.Pokemon{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
