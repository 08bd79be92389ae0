package validate_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericreyes/pokedex/internal/model"
	"github.com/ericreyes/pokedex/internal/store"
	"github.com/ericreyes/pokedex/internal/validate"
	"github.com/ericreyes/pokedex/pkg/types"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func validPayload() types.PokemonPayload {
	return types.PokemonPayload{
		Name: strPtr("Pikachu"),
		Type: []string{model.TypeElectric},
		BaseStats: &types.BaseStatsPayload{
			HP:      intPtr(35),
			Attack:  intPtr(55),
			Defense: intPtr(40),
			Speed:   intPtr(90),
		},
		Description: strPtr("Mouse Pokemon"),
	}
}

// fieldErrors unwraps a validation error into a field -> message map.
func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)

	var verr *validate.Error
	require.ErrorAs(t, err, &verr)

	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestPokemon_Valid(t *testing.T) {
	p, err := validate.Pokemon(validPayload())
	require.NoError(t, err)

	assert.Equal(t, "Pikachu", p.Name)
	assert.Equal(t, []string{model.TypeElectric}, p.Type)
	assert.Equal(t, model.BaseStats{HP: 35, Attack: 55, Defense: 40, Speed: 90}, p.BaseStats)
	assert.Equal(t, "Mouse Pokemon", p.Description)
	assert.Zero(t, p.PokedexNumber)
}

func TestPokemon_ZeroDefenseAndSpeedAllowed(t *testing.T) {
	req := validPayload()
	req.BaseStats.Defense = intPtr(0)
	req.BaseStats.Speed = intPtr(0)
	req.Description = nil

	p, err := validate.Pokemon(req)
	require.NoError(t, err)
	assert.Zero(t, p.BaseStats.Defense)
	assert.Empty(t, p.Description)
}

func TestPokemon_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.PokemonPayload)
		field  string
	}{
		{name: "missing name", mutate: func(p *types.PokemonPayload) { p.Name = nil }, field: "name"},
		{name: "empty name", mutate: func(p *types.PokemonPayload) { p.Name = strPtr("") }, field: "name"},
		{name: "missing type", mutate: func(p *types.PokemonPayload) { p.Type = nil }, field: "type"},
		{name: "no types", mutate: func(p *types.PokemonPayload) { p.Type = []string{} }, field: "type"},
		{name: "three types", mutate: func(p *types.PokemonPayload) {
			p.Type = []string{model.TypeFire, model.TypeFlying, model.TypeDragon}
		}, field: "type"},
		{name: "unknown type", mutate: func(p *types.PokemonPayload) {
			p.Type = []string{model.TypeFire, "Fairy"}
		}, field: "type[1]"},
		{name: "lower case type", mutate: func(p *types.PokemonPayload) { p.Type = []string{"fire"} }, field: "type[0]"},
		{name: "missing stats", mutate: func(p *types.PokemonPayload) { p.BaseStats = nil }, field: "base_stats"},
		{name: "zero hp", mutate: func(p *types.PokemonPayload) { p.BaseStats.HP = intPtr(0) }, field: "base_stats.hp"},
		{name: "missing attack", mutate: func(p *types.PokemonPayload) { p.BaseStats.Attack = nil }, field: "base_stats.attack"},
		{name: "missing speed", mutate: func(p *types.PokemonPayload) { p.BaseStats.Speed = nil }, field: "base_stats.speed"},
		{name: "empty description", mutate: func(p *types.PokemonPayload) { p.Description = strPtr("") }, field: "description"},
		{name: "zero pokedex number", mutate: func(p *types.PokemonPayload) { p.PokedexNumber = intPtr(0) }, field: "pokedex_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPayload()
			tt.mutate(&req)

			_, err := validate.Pokemon(req)
			fields := fieldErrors(t, err)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestPokemon_ReportsEveryField(t *testing.T) {
	_, err := validate.Pokemon(types.PokemonPayload{
		Type: []string{"Fairy"},
		BaseStats: &types.BaseStatsPayload{
			HP: intPtr(0),
		},
	})

	fields := fieldErrors(t, err)
	assert.Equal(t, "is required", fields["name"])
	assert.Contains(t, fields["type[0]"], model.TypeElectric)
	assert.Contains(t, fields["base_stats.hp"], "at least 1")
	assert.Equal(t, "is required", fields["base_stats.attack"])
	assert.Equal(t, "is required", fields["base_stats.defense"])
	assert.Equal(t, "is required", fields["base_stats.speed"])
}

func TestPokemon_PokedexNumberIgnored(t *testing.T) {
	req := validPayload()
	req.PokedexNumber = intPtr(151)

	p, err := validate.Pokemon(req)
	require.NoError(t, err)
	assert.Zero(t, p.PokedexNumber)
}

func TestPokemonPatch(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		patch, err := validate.PokemonPatch(types.PokemonPatch{
			BaseStats: &types.BaseStatsPatch{Speed: intPtr(120)},
		})
		require.NoError(t, err)
		require.NotNil(t, patch.BaseStats)
		assert.Nil(t, patch.Name)
		assert.Nil(t, patch.Type)
		assert.Nil(t, patch.BaseStats.HP)
		assert.Equal(t, 120, *patch.BaseStats.Speed)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := validate.PokemonPatch(types.PokemonPatch{})
		fields := fieldErrors(t, err)
		assert.Equal(t, "at least one field must be provided", fields["body"])
	})

	t.Run("pokedex number alone is empty", func(t *testing.T) {
		_, err := validate.PokemonPatch(types.PokemonPatch{PokedexNumber: intPtr(3)})
		assert.Contains(t, fieldErrors(t, err), "body")
	})

	t.Run("present fields are checked", func(t *testing.T) {
		_, err := validate.PokemonPatch(types.PokemonPatch{
			Name:      strPtr(""),
			Type:      []string{},
			BaseStats: &types.BaseStatsPatch{HP: intPtr(0)},
		})
		fields := fieldErrors(t, err)
		assert.Contains(t, fields, "name")
		assert.Contains(t, fields, "type")
		assert.Contains(t, fields, "base_stats.hp")
	})
}

func TestSearch(t *testing.T) {
	f, err := validate.Search(types.SearchRequest{Type: strPtr(model.TypeFire), Name: strPtr("char")})
	require.NoError(t, err)
	assert.Equal(t, model.SearchFilter{Type: model.TypeFire, Name: "char"}, f)

	f, err = validate.Search(types.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.SearchFilter{}, f)

	_, err = validate.Search(types.SearchRequest{Type: strPtr("Fairy")})
	assert.Contains(t, fieldErrors(t, err), "type")
}

func TestPagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := validate.Pagination(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, store.ListOptions{Limit: validate.DefaultLimit, SortBy: store.SortByNumber}, opts)
	})

	t.Run("explicit", func(t *testing.T) {
		opts, err := validate.Pagination(url.Values{
			"limit":   {"100"},
			"offset":  {"0"},
			"sort":    {"desc"},
			"sort_by": {"name"},
			"unused":  {"x"},
		})
		require.NoError(t, err)
		assert.Equal(t, store.ListOptions{Limit: 100, Offset: 0, SortBy: store.SortByName, SortDesc: true}, opts)
	})

	tests := []struct {
		name    string
		query   url.Values
		field   string
		message string
	}{
		{name: "zero limit", query: url.Values{"limit": {"0"}}, field: "limit", message: "must be at least 1"},
		{name: "limit too large", query: url.Values{"limit": {"101"}}, field: "limit", message: "must be at most 100"},
		{name: "negative offset", query: url.Values{"offset": {"-1"}}, field: "offset", message: "must be at least 0"},
		{name: "offset too large", query: url.Values{"offset": {"1001"}}, field: "offset", message: "must be at most 1000"},
		{name: "non numeric limit", query: url.Values{"limit": {"abc"}}, field: "limit", message: "must be an integer"},
		{name: "bad sort", query: url.Values{"sort": {"sideways"}}, field: "sort", message: "must be one of: asc, desc"},
		{name: "bad sort field", query: url.Values{"sort_by": {"hp"}}, field: "sort_by", message: "must be one of: name, pokedex_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validate.Pagination(tt.query)
			fields := fieldErrors(t, err)
			assert.Equal(t, tt.message, fields[tt.field])
		})
	}
}

func TestPagination_ReportsEveryField(t *testing.T) {
	_, err := validate.Pagination(url.Values{
		"limit":  {"abc"},
		"sort":   {"sideways"},
		"offset": {"5000"},
	})
	fields := fieldErrors(t, err)
	assert.Equal(t, map[string]string{
		"limit":  "must be an integer",
		"sort":   "must be one of: asc, desc",
		"offset": "must be at most 1000",
	}, fields)
}

func TestPagination_DecodeFailureReportedOnce(t *testing.T) {
	_, err := validate.Pagination(url.Values{"limit": {"abc"}, "offset": {"x"}})

	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.Equal(t, "limit", verr.Fields[0].Field)
	assert.Equal(t, "offset", verr.Fields[1].Field)
}

func TestError_Message(t *testing.T) {
	err := &validate.Error{Fields: []types.FieldError{
		{Field: "name", Message: "is required"},
		{Field: "type", Message: "is required"},
	}}
	assert.Equal(t, "validation failed: name: is required; type: is required", err.Error())
}
