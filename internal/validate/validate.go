// Package validate turns untrusted request input into validated domain
// values. Every function is pure and reports all violated fields at once.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/ericreyes/pokedex/internal/model"
	"github.com/ericreyes/pokedex/internal/store"
	"github.com/ericreyes/pokedex/pkg/types"
)

// Pagination defaults and bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	MaxOffset    = 1000
)

var (
	validate      = newValidator()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "schema"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	mustRegister(v, "pokemontype", func(fl validator.FieldLevel) bool {
		return model.IsValidType(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %q validation: %v", tag, err))
	}
}

// Error is returned when input fails validation. It lists every rejected
// field.
type Error struct {
	Fields []types.FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newError builds an Error holding a single field violation.
func newError(field, message string) *Error {
	return &Error{Fields: []types.FieldError{{Field: field, Message: message}}}
}

// Pokemon validates a full create or replace payload.
func Pokemon(req types.PokemonPayload) (model.Pokemon, error) {
	if err := check(req); err != nil {
		return model.Pokemon{}, err
	}

	p := model.Pokemon{
		Name: *req.Name,
		Type: append([]string(nil), req.Type...),
		BaseStats: model.BaseStats{
			HP:      *req.BaseStats.HP,
			Attack:  *req.BaseStats.Attack,
			Defense: *req.BaseStats.Defense,
			Speed:   *req.BaseStats.Speed,
		},
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	return p, nil
}

// PokemonPatch validates a partial update. Only present fields are checked
// and nothing is defaulted.
func PokemonPatch(req types.PokemonPatch) (model.PokemonPatch, error) {
	if err := check(req); err != nil {
		return model.PokemonPatch{}, err
	}

	patch := model.PokemonPatch{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Type != nil {
		patch.Type = append([]string(nil), req.Type...)
	}
	if s := req.BaseStats; s != nil {
		patch.BaseStats = &model.BaseStatsPatch{
			HP:      s.HP,
			Attack:  s.Attack,
			Defense: s.Defense,
			Speed:   s.Speed,
		}
	}
	if patch.IsEmpty() {
		return model.PokemonPatch{}, newError("body", "at least one field must be provided")
	}
	return patch, nil
}

// Search validates a search body.
func Search(req types.SearchRequest) (model.SearchFilter, error) {
	if err := check(req); err != nil {
		return model.SearchFilter{}, err
	}

	var f model.SearchFilter
	if req.Type != nil {
		f.Type = *req.Type
	}
	if req.Name != nil {
		f.Name = *req.Name
	}
	return f, nil
}

// Pagination decodes and validates list query parameters, applying defaults
// for anything not supplied.
func Pagination(query url.Values) (store.ListOptions, error) {
	var params types.ListParams
	if err := mergeErrors(decodeError(schemaDecoder.Decode(&params, query)), check(params)); err != nil {
		return store.ListOptions{}, err
	}

	opts := store.ListOptions{
		Limit:    DefaultLimit,
		SortBy:   store.SortByNumber,
		SortDesc: params.Sort == "desc",
	}
	if params.Limit != nil {
		opts.Limit = *params.Limit
	}
	if params.Offset != nil {
		opts.Offset = *params.Offset
	}
	if params.SortBy != "" {
		opts.SortBy = params.SortBy
	}
	return opts, nil
}

// check runs the struct tag rules against v.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}

	out := &Error{Fields: make([]types.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, types.FieldError{
			Field:   fieldPath(fe),
			Message: formatFieldError(fe),
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace, leaving
// paths such as "base_stats.hp" or "type[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be %s %s characters long", bound, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must contain %s %s items", bound, fe.Param())
		default:
			return fmt.Sprintf("must be %s %s", bound, fe.Param())
		}
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "pokemontype":
		return fmt.Sprintf("must be one of: %s", strings.Join(model.Types, ", "))
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// mergeErrors combines query decoding and rule failures into one Error.
// A field that failed decoding is reported once, with its decoding message.
func mergeErrors(decodeErr, checkErr error) error {
	if decodeErr == nil {
		return checkErr
	}
	if checkErr == nil {
		return decodeErr
	}

	var dec, chk *Error
	if !errors.As(decodeErr, &dec) {
		return decodeErr
	}
	if !errors.As(checkErr, &chk) {
		return checkErr
	}

	seen := make(map[string]bool, len(dec.Fields))
	for _, f := range dec.Fields {
		seen[f.Field] = true
	}
	out := &Error{Fields: append([]types.FieldError(nil), dec.Fields...)}
	for _, f := range chk.Fields {
		if !seen[f.Field] {
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}

// decodeError converts a gorilla/schema decoding failure into an Error.
// Fields that decoded are left populated on the target.
func decodeError(err error) error {
	if err == nil {
		return nil
	}
	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return newError("query", err.Error())
	}

	keys := make([]string, 0, len(multi))
	for k := range multi {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &Error{}
	for _, k := range keys {
		msg := multi[k].Error()
		var conv schema.ConversionError
		if errors.As(multi[k], &conv) {
			msg = "must be an integer"
		}
		out.Fields = append(out.Fields, types.FieldError{Field: k, Message: msg})
	}
	return out
}
