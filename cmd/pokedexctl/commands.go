package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericreyes/pokedex/pkg/client"
	"github.com/ericreyes/pokedex/pkg/types"
)

// PageFlags select a page of results.
type PageFlags struct {
	Limit  int    `help:"Page size (1-100)."`
	Offset int    `help:"Records to skip."`
	Sort   string `help:"Sort direction (asc or desc)."`
	SortBy string `name:"sort-by" help:"Sort field (pokedex_number or name)."`
}

func (f PageFlags) options() client.ListOptions {
	return client.ListOptions{Limit: f.Limit, Offset: f.Offset, Sort: f.Sort, SortBy: f.SortBy}
}

type ListCmd struct {
	PageFlags
}

func (c *ListCmd) Run(g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	page, err := cl.List(context.Background(), c.options())
	if err != nil {
		return err
	}
	return g.print(page.Items)
}

type GetCmd struct {
	Number int `arg:"" help:"Pokedex number."`
}

func (c *GetCmd) Run(g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	p, err := cl.Get(context.Background(), c.Number)
	if err != nil {
		return err
	}
	return g.print(p)
}

type CreateCmd struct {
	File string `arg:"" help:"YAML or JSON file holding the Pokemon." type:"existingfile"`
}

func (c *CreateCmd) Run(g *Globals) error {
	var req types.PokemonPayload
	if err := readDocument(c.File, &req); err != nil {
		return err
	}
	cl, err := g.client()
	if err != nil {
		return err
	}
	p, err := cl.Create(context.Background(), req)
	if err != nil {
		return err
	}
	return g.print(p)
}

type ReplaceCmd struct {
	Number int    `arg:"" help:"Pokedex number."`
	File   string `arg:"" help:"YAML or JSON file holding the Pokemon." type:"existingfile"`
}

func (c *ReplaceCmd) Run(g *Globals) error {
	var req types.PokemonPayload
	if err := readDocument(c.File, &req); err != nil {
		return err
	}
	cl, err := g.client()
	if err != nil {
		return err
	}
	p, err := cl.Replace(context.Background(), c.Number, req)
	if err != nil {
		return err
	}
	return g.print(p)
}

type PatchCmd struct {
	Number      int      `arg:"" help:"Pokedex number."`
	Name        *string  `help:"New name."`
	Type        []string `help:"New types (one or two)."`
	Description *string  `help:"New description."`
	HP          *int     `name:"hp" help:"New HP."`
	Attack      *int     `help:"New attack."`
	Defense     *int     `help:"New defense."`
	Speed       *int     `help:"New speed."`
}

func (c *PatchCmd) request() types.PokemonPatch {
	req := types.PokemonPatch{
		Name:        c.Name,
		Type:        c.Type,
		Description: c.Description,
	}
	if c.HP != nil || c.Attack != nil || c.Defense != nil || c.Speed != nil {
		req.BaseStats = &types.BaseStatsPatch{HP: c.HP, Attack: c.Attack, Defense: c.Defense, Speed: c.Speed}
	}
	return req
}

func (c *PatchCmd) Run(g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	p, err := cl.Patch(context.Background(), c.Number, c.request())
	if err != nil {
		return err
	}
	return g.print(p)
}

type DeleteCmd struct {
	Number int `arg:"" help:"Pokedex number."`
}

func (c *DeleteCmd) Run(g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	remaining, err := cl.Delete(context.Background(), c.Number)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(g.writer(), "deleted pokemon %d (%d remaining)\n", c.Number, remaining)
	return err
}

type SearchCmd struct {
	PageFlags
	Type string `help:"Exact type to match."`
	Name string `help:"Exact name to match."`
}

func (c *SearchCmd) Run(g *Globals) error {
	var req types.SearchRequest
	if c.Type != "" {
		req.Type = &c.Type
	}
	if c.Name != "" {
		req.Name = &c.Name
	}

	cl, err := g.client()
	if err != nil {
		return err
	}
	page, err := cl.Search(context.Background(), req, c.options())
	if err != nil {
		return err
	}
	return g.print(page.Items)
}

// readDocument decodes a YAML file into v. JSON is valid YAML, so both
// formats are accepted.
func readDocument(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
