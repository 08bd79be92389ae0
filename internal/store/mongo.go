package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ericreyes/pokedex/internal/model"
)

// Collection names and the counter document key.
const (
	PokemonCollection  = "pokemon"
	CountersCollection = "counters"
	pokemonCounterID   = "pokemon"
)

// MongoStore implements Store on a MongoDB database. Records live in the
// pokemon collection; pokedex numbers are drawn from a sequence document in
// the counters collection.
type MongoStore struct {
	pokemon  *mongo.Collection
	counters *mongo.Collection
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int    `bson:"seq"`
}

// NewMongoStore creates a store on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		pokemon:  db.Collection(PokemonCollection),
		counters: db.Collection(CountersCollection),
	}
}

// Init creates the unique indexes and moves the sequence past the highest
// stored pokedex number. It is safe to call on every start.
func (s *MongoStore) Init(ctx context.Context) error {
	_, err := s.pokemon.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pokedex_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("creating pokemon indexes: %w", err)
	}

	var highest model.Pokemon
	err = s.pokemon.FindOne(ctx, bson.D{},
		options.FindOne().
			SetSort(bson.D{{Key: "pokedex_number", Value: -1}}).
			SetProjection(bson.D{{Key: "pokedex_number", Value: 1}}),
	).Decode(&highest)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("finding highest pokedex number: %w", err)
	}

	_, err = s.counters.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: pokemonCounterID}},
		bson.D{{Key: "$max", Value: bson.D{{Key: "seq", Value: highest.PokedexNumber}}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("syncing pokedex counter: %w", err)
	}
	return nil
}

// Ping checks that the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.pokemon.Database().Client().Ping(ctx, nil)
}

// ListPokemon retrieves one page of records.
func (s *MongoStore) ListPokemon(ctx context.Context, opts ListOptions) ([]model.Pokemon, int, error) {
	return s.SearchPokemon(ctx, model.SearchFilter{}, opts)
}

// SearchPokemon retrieves one page of records matching filter. A type
// filter matches any element of the type array.
func (s *MongoStore) SearchPokemon(ctx context.Context, filter model.SearchFilter, opts ListOptions) ([]model.Pokemon, int, error) {
	query := bson.D{}
	if filter.Name != "" {
		query = append(query, bson.E{Key: "name", Value: filter.Name})
	}
	if filter.Type != "" {
		query = append(query, bson.E{Key: "type", Value: filter.Type})
	}

	total, err := s.pokemon.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting pokemon: %w", err)
	}
	if total == 0 {
		return []model.Pokemon{}, 0, nil
	}

	direction := 1
	if opts.SortDesc {
		direction = -1
	}
	sort := bson.D{{Key: "pokedex_number", Value: direction}}
	if opts.sortField() == SortByName {
		sort = append(bson.D{{Key: "name", Value: direction}}, sort...)
	}

	cursor, err := s.pokemon.Find(ctx, query,
		options.Find().
			SetSort(sort).
			SetSkip(int64(opts.Offset)).
			SetLimit(int64(opts.Limit)).
			SetProjection(bson.D{{Key: "_id", Value: 0}}),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("finding pokemon: %w", err)
	}

	items := make([]model.Pokemon, 0, opts.Limit)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decoding pokemon: %w", err)
	}
	return items, int(total), nil
}

// GetPokemon retrieves a single record by pokedex number.
func (s *MongoStore) GetPokemon(ctx context.Context, number int) (model.Pokemon, error) {
	var p model.Pokemon
	err := s.pokemon.FindOne(ctx,
		bson.D{{Key: "pokedex_number", Value: number}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 0}}),
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Pokemon{}, ErrNotFound
		}
		return model.Pokemon{}, fmt.Errorf("finding pokemon %d: %w", number, err)
	}
	return p, nil
}

// CreatePokemon draws the next number from the sequence and inserts p. The
// unique name index turns a concurrent duplicate into ErrConflict; the
// number drawn for a rejected insert is not reused.
func (s *MongoStore) CreatePokemon(ctx context.Context, p model.Pokemon) (model.Pokemon, error) {
	err := s.pokemon.FindOne(ctx, bson.D{{Key: "name", Value: p.Name}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Err()
	switch {
	case err == nil:
		return model.Pokemon{}, ErrConflict
	case !errors.Is(err, mongo.ErrNoDocuments):
		return model.Pokemon{}, fmt.Errorf("checking pokemon name: %w", err)
	}

	number, err := s.nextNumber(ctx)
	if err != nil {
		return model.Pokemon{}, err
	}
	p.PokedexNumber = number

	if _, err := s.pokemon.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Pokemon{}, ErrConflict
		}
		return model.Pokemon{}, fmt.Errorf("inserting pokemon: %w", err)
	}
	return p, nil
}

// ReplacePokemon overwrites the stored document, keeping its pokedex number.
func (s *MongoStore) ReplacePokemon(ctx context.Context, number int, p model.Pokemon) (model.Pokemon, error) {
	p.PokedexNumber = number
	res, err := s.pokemon.ReplaceOne(ctx, bson.D{{Key: "pokedex_number", Value: number}}, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Pokemon{}, ErrConflict
		}
		return model.Pokemon{}, fmt.Errorf("replacing pokemon %d: %w", number, err)
	}
	if res.MatchedCount == 0 {
		return model.Pokemon{}, ErrNotFound
	}
	return p, nil
}

// PatchPokemon applies the supplied fields with $set and returns the
// updated document.
func (s *MongoStore) PatchPokemon(ctx context.Context, number int, patch model.PokemonPatch) (model.Pokemon, error) {
	var p model.Pokemon
	err := s.pokemon.FindOneAndUpdate(ctx,
		bson.D{{Key: "pokedex_number", Value: number}},
		bson.D{{Key: "$set", Value: patchDocument(patch)}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "_id", Value: 0}}),
	).Decode(&p)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return model.Pokemon{}, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return model.Pokemon{}, ErrConflict
		}
		return model.Pokemon{}, fmt.Errorf("patching pokemon %d: %w", number, err)
	}
	return p, nil
}

// DeletePokemon removes the document if present.
func (s *MongoStore) DeletePokemon(ctx context.Context, number int) error {
	if _, err := s.pokemon.DeleteOne(ctx, bson.D{{Key: "pokedex_number", Value: number}}); err != nil {
		return fmt.Errorf("deleting pokemon %d: %w", number, err)
	}
	return nil
}

// CountPokemon returns the number of documents in the collection.
func (s *MongoStore) CountPokemon(ctx context.Context) (int, error) {
	n, err := s.pokemon.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting pokemon: %w", err)
	}
	return int(n), nil
}

// nextNumber atomically increments the pokemon sequence.
func (s *MongoStore) nextNumber(ctx context.Context) (int, error) {
	var c counterDoc
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: pokemonCounterID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: 1}}}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("allocating pokedex number: %w", err)
	}
	return c.Seq, nil
}

// patchDocument flattens a patch into dotted $set paths so nested stats are
// merged instead of replaced.
func patchDocument(patch model.PokemonPatch) bson.D {
	set := bson.D{}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *patch.Name})
	}
	if patch.Type != nil {
		set = append(set, bson.E{Key: "type", Value: patch.Type})
	}
	if patch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *patch.Description})
	}
	if s := patch.BaseStats; s != nil {
		for _, f := range []struct {
			key string
			val *int
		}{
			{"base_stats.hp", s.HP},
			{"base_stats.attack", s.Attack},
			{"base_stats.defense", s.Defense},
			{"base_stats.speed", s.Speed},
		} {
			if f.val != nil {
				set = append(set, bson.E{Key: f.key, Value: *f.val})
			}
		}
	}
	return set
}
