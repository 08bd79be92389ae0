package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ericreyes/pokedex/pkg/client"
	"github.com/ericreyes/pokedex/pkg/types"
)

// seedFile is the layout of a seed document.
type seedFile struct {
	Pokemon []types.PokemonPayload `yaml:"pokemon"`
}

type SeedCmd struct {
	File        string `arg:"" help:"YAML seed file." type:"existingfile"`
	Concurrency int    `help:"Parallel create requests." default:"4"`
}

// seedResult counts the outcome of a seed run.
type seedResult struct {
	Created int `json:"created" yaml:"created"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

func (c *SeedCmd) Run(g *Globals) error {
	var doc seedFile
	if err := readDocument(c.File, &doc); err != nil {
		return err
	}
	cl, err := g.client()
	if err != nil {
		return err
	}

	res, err := seed(context.Background(), cl, doc.Pokemon, c.Concurrency)
	if err != nil {
		return err
	}
	return g.print(res)
}

// seed creates every entry, skipping names that already exist. The first
// other failure cancels the remaining requests.
func seed(ctx context.Context, cl *client.Client, entries []types.PokemonPayload, concurrency int) (seedResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var created, skipped atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, entry := range entries {
		g.Go(func() error {
			p, err := cl.Create(ctx, entry)
			switch {
			case client.IsConflict(err):
				skipped.Add(1)
				return nil
			case err != nil:
				return fmt.Errorf("seeding %s: %w", entryName(entry), err)
			}
			created.Add(1)
			log.Debug().Int("pokedex_number", p.PokedexNumber).Str("name", p.Name).Msg("seeded pokemon")
			return nil
		})
	}

	err := g.Wait()
	return seedResult{Created: int(created.Load()), Skipped: int(skipped.Load())}, err
}

func entryName(p types.PokemonPayload) string {
	if p.Name == nil {
		return "<unnamed>"
	}
	return *p.Name
}
