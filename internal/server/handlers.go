package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ericreyes/pokedex/internal/events"
	"github.com/ericreyes/pokedex/internal/httputil"
	"github.com/ericreyes/pokedex/internal/model"
	"github.com/ericreyes/pokedex/internal/validate"
	"github.com/ericreyes/pokedex/pkg/types"
)

const publishTimeout = 2 * time.Second

func (s *Server) handleListPokemon(w http.ResponseWriter, r *http.Request) {
	opts, err := validate.Pagination(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items, total, err := s.store.ListPokemon(r.Context(), opts)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("listing pokemon: %w", err))
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, toPokemonList(items), "PokemonList retrieved",
		httputil.PageMeta(opts.Offset, opts.Limit, total))
}

func (s *Server) handleSearchPokemon(w http.ResponseWriter, r *http.Request) {
	opts, err := validate.Pagination(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req types.SearchRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	filter, err := validate.Search(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items, total, err := s.store.SearchPokemon(r.Context(), filter, opts)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("searching pokemon: %w", err))
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, toPokemonList(items), "PokemonSearch results",
		httputil.PageMeta(opts.Offset, opts.Limit, total))
}

func (s *Server) handleGetPokemon(w http.ResponseWriter, r *http.Request) {
	number, err := pokedexNumber(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.store.GetPokemon(r.Context(), number)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("getting pokemon %d: %w", number, err))
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, toPokemon(p), "Pokemon retrieved", nil)
}

func (s *Server) handleCreatePokemon(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context()).With().Str("handler", "create_pokemon").Logger()

	var req types.PokemonPayload
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	p, err := validate.Pokemon(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	created, err := s.store.CreatePokemon(r.Context(), p)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("creating pokemon %q: %w", p.Name, err))
		return
	}
	logger.Info().Int("pokedex_number", created.PokedexNumber).Str("name", created.Name).Msg("pokemon created")

	s.publish(r.Context(), events.ActionCreated, created.PokedexNumber, &created)
	httputil.RespondSuccess(w, http.StatusOK, toPokemon(created), "Pokemon created", s.countMeta(r.Context()))
}

func (s *Server) handleReplacePokemon(w http.ResponseWriter, r *http.Request) {
	number, err := pokedexNumber(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req types.PokemonPayload
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	p, err := validate.Pokemon(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	replaced, err := s.store.ReplacePokemon(r.Context(), number, p)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("replacing pokemon %d: %w", number, err))
		return
	}

	s.publish(r.Context(), events.ActionReplaced, number, &replaced)
	httputil.RespondSuccess(w, http.StatusOK, toPokemon(replaced), "Pokemon replaced", nil)
}

func (s *Server) handlePatchPokemon(w http.ResponseWriter, r *http.Request) {
	number, err := pokedexNumber(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req types.PokemonPatch
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	patch, err := validate.PokemonPatch(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	patched, err := s.store.PatchPokemon(r.Context(), number, patch)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("patching pokemon %d: %w", number, err))
		return
	}

	s.publish(r.Context(), events.ActionPatched, number, &patched)
	httputil.RespondSuccess(w, http.StatusOK, toPokemon(patched), "Pokemon updated", nil)
}

func (s *Server) handleDeletePokemon(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context()).With().Str("handler", "delete_pokemon").Logger()

	number, err := pokedexNumber(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.store.DeletePokemon(r.Context(), number); err != nil {
		s.respondError(w, r, fmt.Errorf("deleting pokemon %d: %w", number, err))
		return
	}
	logger.Info().Int("pokedex_number", number).Msg("pokemon deleted")

	s.publish(r.Context(), events.ActionDeleted, number, nil)
	httputil.RespondSuccess(w, http.StatusOK, nil, "Pokemon deleted", s.countMeta(r.Context()))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// pokedexNumber parses the {id} path parameter.
func pokedexNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil || n < 1 {
		return 0, errInvalidID
	}
	return n, nil
}

// countMeta reports the collection size after a write. The write has
// already succeeded, so a failed count only drops the meta block.
func (s *Server) countMeta(ctx context.Context) *types.Meta {
	total, err := s.store.CountPokemon(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("counting pokemon after write")
		return nil
	}
	return httputil.CountMeta(total)
}

// publish emits a change event. Delivery is best effort and never fails the
// request.
func (s *Server) publish(ctx context.Context, action string, number int, p *model.Pokemon) {
	logger := log.Ctx(ctx)

	evt, err := events.NewPokemonEvent(action, number, p)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err = s.publisher.Publish(pubCtx, evt)
		cancel()
	}
	if s.metrics != nil {
		s.metrics.RecordEvent(action, err)
	}
	if err != nil {
		logger.Warn().Err(err).Str("action", action).Int("pokedex_number", number).Msg("publishing pokemon event")
	}
}

func toPokemon(p model.Pokemon) types.Pokemon {
	return types.Pokemon{
		PokedexNumber: p.PokedexNumber,
		Name:          p.Name,
		Type:          append([]string(nil), p.Type...),
		BaseStats: types.BaseStats{
			HP:      p.BaseStats.HP,
			Attack:  p.BaseStats.Attack,
			Defense: p.BaseStats.Defense,
			Speed:   p.BaseStats.Speed,
		},
		Description: p.Description,
	}
}

func toPokemonList(items []model.Pokemon) []types.Pokemon {
	out := make([]types.Pokemon, 0, len(items))
	for _, p := range items {
		out = append(out, toPokemon(p))
	}
	return out
}
