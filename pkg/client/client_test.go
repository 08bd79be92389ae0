package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericreyes/pokedex/pkg/types"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, kind, detail string, fields ...types.FieldError) {
	respondJSON(w, status, types.Envelope[any]{
		Status:  types.StatusError,
		Message: kind,
		Error:   detail,
		Errors:  fields,
	})
}

func intPtr(v int) *int { return &v }

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	c.retryInitial = time.Millisecond
	return c
}

func pikachu() types.Pokemon {
	return types.Pokemon{
		PokedexNumber: 25,
		Name:          "Pikachu",
		Type:          []string{"Electric"},
		BaseStats:     types.BaseStats{HP: 35, Attack: 55, Defense: 40, Speed: 90},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires base url", func(t *testing.T) {
		t.Parallel()
		c, err := New(Config{})
		require.Error(t, err)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "BaseURL is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config{BaseURL: " http://example.invalid/ "})
		assert.Equal(t, "http://example.invalid", c.baseURL)
		assert.Equal(t, defaultTimeout, c.cfg.Timeout)
		assert.Equal(t, defaultMaxRetries, c.cfg.MaxRetries)
	})

	t.Run("negative retries disable retrying", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config{BaseURL: "http://example.invalid", MaxRetries: -1})
		assert.Equal(t, 0, c.cfg.MaxRetries)
	})
}

func TestList(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/pokemon", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "4", r.URL.Query().Get("offset"))
		assert.Equal(t, "name", r.URL.Query().Get("sort_by"))
		respondJSON(w, http.StatusOK, types.Envelope[[]types.Pokemon]{
			Status: types.StatusSuccess,
			Data:   []types.Pokemon{pikachu()},
			Meta:   &types.Meta{Offset: intPtr(4), Limit: intPtr(2), TotalCount: intPtr(5)},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	page, err := c.List(context.Background(), ListOptions{Limit: 2, Offset: 4, SortBy: "name"})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Pikachu", page.Items[0].Name)
	assert.Equal(t, 4, page.Offset)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 5, page.TotalCount)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req types.PokemonPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.Name) {
			assert.Equal(t, "Pikachu", *req.Name)
		}
		respondJSON(w, http.StatusOK, types.Envelope[types.Pokemon]{Status: types.StatusSuccess, Data: pikachu()})
	}))
	defer ts.Close()

	name := "Pikachu"
	c := newTestClient(t, Config{BaseURL: ts.URL})
	created, err := c.Create(context.Background(), types.PokemonPayload{Name: &name, Type: []string{"Electric"}})

	require.NoError(t, err)
	assert.Equal(t, 25, created.PokedexNumber)
}

func TestCreate_ConflictIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		errorJSON(w, http.StatusConflict, "Conflict", "a pokemon with this name already exists")
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	_, err := c.Create(context.Background(), types.PokemonPayload{})

	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreate_ServerErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		errorJSON(w, http.StatusInternalServerError, "InternalServerError", "an unexpected error occurred")
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	_, err := c.Create(context.Background(), types.PokemonPayload{})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			errorJSON(w, http.StatusServiceUnavailable, "InternalServerError", "try again")
			return
		}
		respondJSON(w, http.StatusOK, types.Envelope[types.Pokemon]{Status: types.StatusSuccess, Data: pikachu()})
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	p, err := c.Get(context.Background(), 25)

	require.NoError(t, err)
	assert.Equal(t, "Pikachu", p.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		errorJSON(w, http.StatusGatewayTimeout, "Timeout", "the request timed out")
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: 2})
	_, err := c.Get(context.Background(), 25)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusGatewayTimeout, apiErr.StatusCode)
	assert.Equal(t, "Timeout", apiErr.Kind)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pokemon/404", r.URL.Path)
		errorJSON(w, http.StatusNotFound, "PokemonNotFound", "pokemon not found")
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	_, err := c.Get(context.Background(), 404)

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "PokemonNotFound")
}

func TestReplaceAndPatch(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pokemon/25", r.URL.Path)

		body := map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		p := pikachu()
		switch r.Method {
		case http.MethodPut:
			assert.Contains(t, body, "base_stats")
			p.Name = "Raichu"
		case http.MethodPatch:
			assert.Equal(t, map[string]any{"description": "x"}, body)
			p.Description = "x"
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
		respondJSON(w, http.StatusOK, types.Envelope[types.Pokemon]{Status: types.StatusSuccess, Data: p})
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})

	name := "Raichu"
	replaced, err := c.Replace(context.Background(), 25, types.PokemonPayload{
		Name:      &name,
		Type:      []string{"Electric"},
		BaseStats: &types.BaseStatsPayload{HP: intPtr(60), Attack: intPtr(90), Defense: intPtr(55), Speed: intPtr(110)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Raichu", replaced.Name)

	desc := "x"
	patched, err := c.Patch(context.Background(), 25, types.PokemonPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "x", patched.Description)
}

func TestPatch_ValidationErrorCarriesFields(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorJSON(w, http.StatusBadRequest, "ValidationError", "request validation failed",
			types.FieldError{Field: "body", Message: "at least one field must be provided"})
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	_, err := c.Patch(context.Background(), 1, types.PokemonPatch{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ValidationError", apiErr.Kind)
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "body", apiErr.Fields[0].Field)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		respondJSON(w, http.StatusOK, types.Envelope[any]{
			Status: types.StatusSuccess,
			Meta:   &types.Meta{TotalCount: intPtr(150)},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	remaining, err := c.Delete(context.Background(), 151)

	require.NoError(t, err)
	assert.Equal(t, 150, remaining)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pokemon/search", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		var req types.SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.Type) {
			assert.Equal(t, "Electric", *req.Type)
		}
		assert.Nil(t, req.Name)

		respondJSON(w, http.StatusOK, types.Envelope[[]types.Pokemon]{
			Status: types.StatusSuccess,
			Data:   []types.Pokemon{pikachu()},
			Meta:   &types.Meta{Offset: intPtr(0), Limit: intPtr(5), TotalCount: intPtr(1)},
		})
	}))
	defer ts.Close()

	electric := "Electric"
	c := newTestClient(t, Config{BaseURL: ts.URL})
	page, err := c.Search(context.Background(), types.SearchRequest{Type: &electric}, ListOptions{Limit: 5})

	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Len(t, page.Items, 1)
}

func TestNonEnvelopeErrorBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: -1})
	_, err := c.Get(context.Background(), 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Kind)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestContextCanceled(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	_, err := c.Get(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
