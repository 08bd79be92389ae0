package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/ericreyes/pokedex/internal/config"
	"github.com/ericreyes/pokedex/internal/store"
)

const connectTimeout = 30 * time.Second

// openedStore is a ready store plus whatever releases its connections.
type openedStore struct {
	store store.Store
	close func(ctx context.Context) error
}

// openStore connects the configured backend, waiting for it to become
// reachable, and prepares its schema.
func openStore(ctx context.Context, cfg config.Config) (openedStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return openedStore{
			store: store.NewMemoryStore(),
			close: func(context.Context) error { return nil },
		}, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return openedStore{}, fmt.Errorf("connecting to mongo: %w", err)
		}
		st := store.NewMongoStore(client.Database(cfg.MongoDatabase))
		opened := openedStore{store: st, close: client.Disconnect}
		if err := waitReady(ctx, st); err != nil {
			_ = client.Disconnect(ctx)
			return openedStore{}, err
		}
		if err := st.Init(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return openedStore{}, fmt.Errorf("initializing mongo store: %w", err)
		}
		return opened, nil

	case config.BackendPostgres, config.BackendSQLite:
		driver := "postgres"
		newStore := store.NewPostgresStore
		if cfg.StoreBackend == config.BackendSQLite {
			driver = "sqlite"
			newStore = store.NewSQLiteStore
		}

		db, err := sql.Open(driver, cfg.DBDSN)
		if err != nil {
			return openedStore{}, fmt.Errorf("opening %s database: %w", driver, err)
		}
		if driver == "sqlite" {
			// SQLite allows one writer; a single connection serializes access.
			db.SetMaxOpenConns(1)
		}

		st := newStore(db)
		if err := waitReady(ctx, st); err != nil {
			_ = db.Close()
			return openedStore{}, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return openedStore{}, fmt.Errorf("migrating %s schema: %w", driver, err)
		}
		return openedStore{
			store: st,
			close: func(context.Context) error { return st.Close() },
		}, nil
	}
	return openedStore{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// waitReady pings st with exponential backoff until it answers or the
// connect timeout elapses.
func waitReady(ctx context.Context, st store.Store) error {
	logger := log.With().Str("component", "store").Logger()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Msg("store not reachable yet")
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(connectTimeout))
	if err != nil {
		return fmt.Errorf("waiting for store: %w", err)
	}
	return nil
}
