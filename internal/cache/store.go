package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ericreyes/pokedex/internal/model"
	"github.com/ericreyes/pokedex/internal/store"
)

// KeyPrefix namespaces every entry written by Store.
const KeyPrefix = "pokedex:pokemon:"

// opTimeout bounds cache writes that outlive the request context.
const opTimeout = 2 * time.Second

// Store caches single-record reads of the wrapped store. Writes go to the
// wrapped store first and then drop the cached entry. Cache failures never
// fail a request.
type Store struct {
	store.Store
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore wraps next with a read-through cache.
func NewStore(next store.Store, c Cache, ttl time.Duration) *Store {
	return &Store{
		Store:  next,
		cache:  c,
		ttl:    ttl,
		logger: log.With().Str("component", "cache").Logger(),
	}
}

// Key returns the cache key for a pokedex number.
func Key(number int) string {
	return fmt.Sprintf("%s%d", KeyPrefix, number)
}

// GetPokemon serves from cache when possible. On a miss the record is
// cached only if no write invalidated it since the generation was read.
func (s *Store) GetPokemon(ctx context.Context, number int) (model.Pokemon, error) {
	key := Key(number)
	if data, ok := s.cache.Get(ctx, key); ok {
		var p model.Pokemon
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	gen, genErr := s.cache.Generation(ctx, key)

	p, err := s.Store.GetPokemon(ctx, number)
	if err != nil {
		return model.Pokemon{}, err
	}
	if genErr != nil {
		s.logger.Warn().Err(genErr).Int("pokedex_number", number).Msg("skipping cache fill")
		return p, nil
	}
	s.put(ctx, gen, p)
	return p, nil
}

// ReplacePokemon replaces the record and drops its cache entry.
func (s *Store) ReplacePokemon(ctx context.Context, number int, p model.Pokemon) (model.Pokemon, error) {
	defer s.invalidate(ctx, number)
	return s.Store.ReplacePokemon(ctx, number, p)
}

// PatchPokemon patches the record and drops its cache entry.
func (s *Store) PatchPokemon(ctx context.Context, number int, patch model.PokemonPatch) (model.Pokemon, error) {
	defer s.invalidate(ctx, number)
	return s.Store.PatchPokemon(ctx, number, patch)
}

// DeletePokemon deletes the record and drops its cache entry.
func (s *Store) DeletePokemon(ctx context.Context, number int) error {
	defer s.invalidate(ctx, number)
	return s.Store.DeletePokemon(ctx, number)
}

func (s *Store) put(ctx context.Context, gen int64, p model.Pokemon) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	stored, err := s.cache.SetIfGeneration(ctx, Key(p.PokedexNumber), gen, data, s.ttl)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Int("pokedex_number", p.PokedexNumber).Msg("cache set failed")
	case !stored:
		s.logger.Debug().Int("pokedex_number", p.PokedexNumber).Msg("cache fill skipped after concurrent write")
	}
}

// invalidate runs even when the request context has ended, since the write
// it follows may already be committed.
func (s *Store) invalidate(ctx context.Context, number int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	if err := s.cache.Invalidate(ctx, Key(number)); err != nil {
		s.logger.Warn().Err(err).Int("pokedex_number", number).Msg("cache invalidation failed")
	}
}
