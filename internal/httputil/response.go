// Package httputil holds the HTTP plumbing shared by the pokedex server:
// the response envelope writers, request decoding, the middleware stack,
// and the infrastructure handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ericreyes/pokedex/pkg/types"
)

// RespondJSON writes v as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response body")
	}
}

// RespondSuccess writes a success envelope. A zero status means 200 and a
// nil data value is left out of the body.
func RespondSuccess(w http.ResponseWriter, status int, data any, message string, meta *types.Meta) {
	if status == 0 {
		status = http.StatusOK
	}
	RespondJSON(w, status, types.Envelope[any]{
		Status:  types.StatusSuccess,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// RespondError writes an error envelope. errText is the error kind placed in
// the message field; detail is the human-readable explanation.
func RespondError(w http.ResponseWriter, status int, errText, detail string, fields []types.FieldError) {
	RespondJSON(w, status, types.Envelope[any]{
		Status:  types.StatusError,
		Message: errText,
		Error:   detail,
		Errors:  fields,
	})
}

// PageMeta builds the meta block of a paginated response.
func PageMeta(offset, limit, total int) *types.Meta {
	return &types.Meta{Offset: &offset, Limit: &limit, TotalCount: &total}
}

// CountMeta builds a meta block holding only the collection size.
func CountMeta(total int) *types.Meta {
	return &types.Meta{TotalCount: &total}
}

// DecodeError reports a request body that could not be decoded into the
// target type. Field is empty when the body as a whole is at fault.
type DecodeError struct {
	Field   string
	Message string
	Status  int
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// DecodeJSON decodes a single JSON document from the request body into v.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &DecodeError{Message: "body must contain a single JSON document", Status: http.StatusBadRequest}
	}
	return nil
}

func decodeError(err error) *DecodeError {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return &DecodeError{Message: "body must not be empty", Status: http.StatusBadRequest}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &DecodeError{Message: "body contains malformed JSON", Status: http.StatusBadRequest}
	case errors.As(err, &syntaxErr):
		return &DecodeError{
			Message: fmt.Sprintf("body contains malformed JSON at offset %d", syntaxErr.Offset),
			Status:  http.StatusBadRequest,
		}
	case errors.As(err, &typeErr):
		return &DecodeError{
			Field:   typeErr.Field,
			Message: "must be of type " + typeErr.Type.String(),
			Status:  http.StatusBadRequest,
		}
	case errors.As(err, &maxBytesErr):
		return &DecodeError{
			Message: fmt.Sprintf("body must not be larger than %d bytes", maxBytesErr.Limit),
			Status:  http.StatusRequestEntityTooLarge,
		}
	}

	if field, ok := unknownField(err); ok {
		return &DecodeError{Field: field, Message: "is not a recognised field", Status: http.StatusBadRequest}
	}
	return &DecodeError{Message: err.Error(), Status: http.StatusBadRequest}
}

// unknownField extracts the name from encoding/json's unknown field error,
// which has no exported type.
func unknownField(err error) (string, bool) {
	var field string
	if _, scanErr := fmt.Sscanf(err.Error(), "json: unknown field %q", &field); scanErr != nil {
		return "", false
	}
	return field, true
}
