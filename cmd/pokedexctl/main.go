// Command pokedexctl is a command-line client for the pokedex API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ericreyes/pokedex/pkg/client"
)

var version = "dev"

// Globals are the flags shared by every command.
type Globals struct {
	Server  string        `help:"Base URL of the pokedex API." default:"http://localhost:5001" env:"POKEDEX_URL"`
	Timeout time.Duration `help:"Per-request timeout." default:"30s"`
	Retries int           `help:"Retry attempts for idempotent calls." default:"3"`
	Output  string        `help:"Output format." enum:"yaml,json" default:"yaml" short:"o"`
	Verbose bool          `help:"Enable debug logging." short:"v"`

	out io.Writer `kong:"-"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	List    ListCmd    `cmd:"" help:"List Pokemon."`
	Get     GetCmd     `cmd:"" help:"Show one Pokemon."`
	Create  CreateCmd  `cmd:"" help:"Create a Pokemon from a YAML or JSON file."`
	Replace ReplaceCmd `cmd:"" help:"Replace a Pokemon from a YAML or JSON file."`
	Patch   PatchCmd   `cmd:"" help:"Update selected fields of a Pokemon."`
	Delete  DeleteCmd  `cmd:"" help:"Delete a Pokemon."`
	Search  SearchCmd  `cmd:"" help:"Search Pokemon by exact type and name."`
	Seed    SeedCmd    `cmd:"" help:"Create every Pokemon listed in a YAML file."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

func (g *Globals) client() (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:    g.Server,
		Timeout:    g.Timeout,
		MaxRetries: g.Retries,
	})
}

func (g *Globals) writer() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// print renders v in the selected output format.
func (g *Globals) print(v any) error {
	w := g.writer()
	if g.Output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	_, err := fmt.Fprintln(g.writer(), version)
	return err
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("pokedexctl"),
		kong.Description("Command-line client for the pokedex API."),
		kong.UsageOnError(),
	)
	level := zerolog.InfoLevel
	if cli.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
