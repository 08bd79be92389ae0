package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ericreyes/pokedex/internal/httputil"
	"github.com/ericreyes/pokedex/internal/store"
	"github.com/ericreyes/pokedex/internal/validate"
	"github.com/ericreyes/pokedex/pkg/types"
)

// Error kinds carried in the message field of error envelopes.
const (
	ErrKindValidation       = "ValidationError"
	ErrKindInvalidID        = "InvalidPokemonId"
	ErrKindNotFound         = "PokemonNotFound"
	ErrKindConflict         = "Conflict"
	ErrKindTimeout          = "Timeout"
	ErrKindInternal         = httputil.ErrKindInternal
	ErrKindRouteNotFound    = "NotFound"
	ErrKindMethodNotAllowed = "MethodNotAllowed"
)

var errInvalidID = errors.New("pokemon id must be a positive integer")

// respondError classifies err and writes the matching error envelope.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	var (
		verr *validate.Error
		derr *httputil.DecodeError
	)
	switch {
	case errors.As(err, &verr):
		httputil.RespondError(w, http.StatusBadRequest, ErrKindValidation, "request validation failed", verr.Fields)
	case errors.As(err, &derr):
		field := derr.Field
		if field == "" {
			field = "body"
		}
		httputil.RespondError(w, derr.Status, ErrKindValidation, "request body is invalid",
			[]types.FieldError{{Field: field, Message: derr.Message}})
	case errors.Is(err, errInvalidID):
		httputil.RespondError(w, http.StatusBadRequest, ErrKindInvalidID, errInvalidID.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, ErrKindNotFound, "pokemon not found", nil)
	case errors.Is(err, store.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, ErrKindConflict, "a pokemon with this name already exists", nil)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("request timed out")
		httputil.RespondError(w, http.StatusGatewayTimeout, ErrKindTimeout, "the request timed out", nil)
	default:
		logger.Error().Err(err).Msg("unexpected error")
		httputil.RespondError(w, http.StatusInternalServerError, ErrKindInternal, "an unexpected error occurred", nil)
	}
}

func (s *Server) handleRouteNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.RespondError(w, http.StatusNotFound, ErrKindRouteNotFound, "route not found", nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.RespondError(w, http.StatusMethodNotAllowed, ErrKindMethodNotAllowed,
		r.Method+" is not allowed on "+r.URL.Path, nil)
}
