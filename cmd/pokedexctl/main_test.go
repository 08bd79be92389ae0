package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ericreyes/pokedex/internal/config"
	"github.com/ericreyes/pokedex/internal/server"
	"github.com/ericreyes/pokedex/internal/store"
	"github.com/ericreyes/pokedex/pkg/client"
	"github.com/ericreyes/pokedex/pkg/types"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		ListenAddr:         ":0",
		StoreBackend:       config.BackendMemory,
		RequestTimeout:     5 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		NATSSubjectPrefix:  "pokedex.pokemon",
	}
	srv := httptest.NewServer(server.New(store.NewMemoryStore(), cfg, "test", "none", "unknown").Router())
	t.Cleanup(srv.Close)
	return srv
}

// run parses args against a fresh command tree and executes the selected
// command, returning what it printed.
func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	cli := &CLI{}
	parser, err := kong.New(cli, kong.Name("pokedexctl"))
	require.NoError(t, err)

	kctx, err := parser.Parse(append([]string{"--server", srv.URL, "--retries=-1"}, args...))
	require.NoError(t, err)

	var out bytes.Buffer
	cli.out = &out
	err = kctx.Run(&cli.Globals)
	return out.String(), err
}

func TestParse_Defaults(t *testing.T) {
	t.Setenv("POKEDEX_URL", "")
	require.NoError(t, os.Unsetenv("POKEDEX_URL"))

	cli := &CLI{}
	parser, err := kong.New(cli)
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"list", "--limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, "list", kctx.Command())
	assert.Equal(t, "http://localhost:5001", cli.Server)
	assert.Equal(t, 30*time.Second, cli.Timeout)
	assert.Equal(t, "yaml", cli.Output)
	assert.Equal(t, 5, cli.List.Limit)
}

func TestParse_ServerFromEnv(t *testing.T) {
	t.Setenv("POKEDEX_URL", "http://pokedex.internal:8080")

	cli := &CLI{}
	parser, err := kong.New(cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"get", "25"})
	require.NoError(t, err)
	assert.Equal(t, "http://pokedex.internal:8080", cli.Server)
	assert.Equal(t, 25, cli.Get.Number)
}

func TestParse_RejectsUnknownOutput(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--output", "xml", "list"})
	assert.Error(t, err)
}

func TestSeedThenList(t *testing.T) {
	srv := newAPI(t)

	out, err := run(t, srv, "seed", "testdata/seed.yaml", "--concurrency", "3")
	require.NoError(t, err)

	var res seedResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, seedResult{Created: 5}, res)

	out, err = run(t, srv, "--output", "json", "list", "--sort-by", "name")
	require.NoError(t, err)

	var items []types.Pokemon
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 5)
	assert.Equal(t, "Bulbasaur", items[0].Name)
	assert.Equal(t, "Squirtle", items[4].Name)
}

func TestSeed_SkipsExisting(t *testing.T) {
	srv := newAPI(t)

	_, err := run(t, srv, "seed", "testdata/seed.yaml")
	require.NoError(t, err)

	out, err := run(t, srv, "--output", "json", "seed", "testdata/seed.yaml")
	require.NoError(t, err)

	var res seedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, seedResult{Skipped: 5}, res)
}

func TestSeed_StopsOnInvalidEntry(t *testing.T) {
	srv := newAPI(t)
	cl, err := client.New(client.Config{BaseURL: srv.URL, MaxRetries: -1})
	require.NoError(t, err)

	name := "Missingno"
	entries := []types.PokemonPayload{{Name: &name, Type: []string{"Bird"}}}

	_, err = seed(context.Background(), cl, entries, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seeding Missingno")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestCRUDCommands(t *testing.T) {
	srv := newAPI(t)

	out, err := run(t, srv, "create", "testdata/pikachu.json")
	require.NoError(t, err)

	var created types.Pokemon
	require.NoError(t, yaml.Unmarshal([]byte(out), &created))
	assert.Equal(t, 1, created.PokedexNumber)
	assert.Equal(t, "Pikachu", created.Name)

	out, err = run(t, srv, "patch", "1", "--speed", "120", "--description", "Faster now.")
	require.NoError(t, err)

	var patched types.Pokemon
	require.NoError(t, yaml.Unmarshal([]byte(out), &patched))
	assert.Equal(t, 120, patched.BaseStats.Speed)
	assert.Equal(t, 55, patched.BaseStats.Attack)
	assert.Equal(t, "Faster now.", patched.Description)

	out, err = run(t, srv, "replace", "1", "testdata/pikachu.json")
	require.NoError(t, err)

	var replaced types.Pokemon
	require.NoError(t, yaml.Unmarshal([]byte(out), &replaced))
	assert.Equal(t, 90, replaced.BaseStats.Speed)
	assert.Equal(t, 1, replaced.PokedexNumber)

	out, err = run(t, srv, "--output", "json", "search", "--type", "Electric")
	require.NoError(t, err)

	var found []types.Pokemon
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Pikachu", found[0].Name)

	out, err = run(t, srv, "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted pokemon 1 (0 remaining)\n", out)

	_, err = run(t, srv, "get", "1")
	assert.True(t, client.IsNotFound(err))
}

func TestPatchCmd_RequestOmitsUnsetStats(t *testing.T) {
	name := "Raichu"
	req := (&PatchCmd{Number: 26, Name: &name}).request()
	assert.Nil(t, req.BaseStats)
	assert.Equal(t, &name, req.Name)

	hp := 60
	req = (&PatchCmd{Number: 26, HP: &hp}).request()
	require.NotNil(t, req.BaseStats)
	assert.Equal(t, &hp, req.BaseStats.HP)
	assert.Nil(t, req.BaseStats.Speed)
}

func TestVersionCmd(t *testing.T) {
	srv := newAPI(t)
	out, err := run(t, srv, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}
