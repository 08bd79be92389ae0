// Package config loads the pokedex service configuration.
//
// Values are resolved in this order: environment variables prefixed with
// POKEDEX_, then the optional YAML file named by POKEDEX_CONFIG_FILE, then
// built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

const (
	envPrefix = "POKEDEX"

	defaultListenAddr        = ":5001"
	defaultStoreBackend      = BackendMongo
	defaultMongoURI          = "mongodb://localhost:27017"
	defaultMongoDatabase     = "pokedex"
	defaultCacheTTL          = 5 * time.Minute
	defaultNATSSubjectPrefix = "pokedex.pokemon"
	defaultRequestTimeout    = 10 * time.Second
	defaultCORSOrigins       = "*"
)

// Config holds all configuration values for the pokedex service.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	// Env: POKEDEX_LISTEN_ADDR
	// Default: ":5001"
	ListenAddr string

	// StoreBackend selects the repository implementation: mongo, postgres,
	// sqlite, or memory.
	// Env: POKEDEX_STORE_BACKEND
	// Default: "mongo"
	StoreBackend string

	// MongoURI is the MongoDB connection string.
	// Env: POKEDEX_MONGO_URI
	// Default: "mongodb://localhost:27017"
	MongoURI string

	// MongoDatabase is the database holding the pokemon and counters
	// collections.
	// Env: POKEDEX_MONGO_DATABASE
	// Default: "pokedex"
	MongoDatabase string

	// DBDSN is the PostgreSQL connection string or the SQLite file path.
	// Env: POKEDEX_DB_DSN
	DBDSN string

	// RedisAddr enables the read-through cache when set.
	// Env: POKEDEX_REDIS_ADDR
	RedisAddr string

	// RedisPassword authenticates against Redis.
	// Env: POKEDEX_REDIS_PASSWORD
	RedisPassword string

	// CacheTTL bounds how long a cached record is served.
	// Env: POKEDEX_CACHE_TTL
	// Default: 5m
	CacheTTL time.Duration

	// NATSURL enables change events when set.
	// Env: POKEDEX_NATS_URL
	NATSURL string

	// NATSSubjectPrefix is prepended to event actions.
	// Env: POKEDEX_NATS_SUBJECT_PREFIX
	// Default: "pokedex.pokemon"
	NATSSubjectPrefix string

	// LogLevel controls zerolog verbosity (trace, debug, info, warn, error, fatal, panic).
	// Env: POKEDEX_LOG_LEVEL
	// Default: "info"
	LogLevel string

	// DevMode enables human-friendly console log output.
	// Env: POKEDEX_DEV_MODE
	DevMode bool

	// MetricsEnabled controls whether /metrics is served.
	// Env: POKEDEX_METRICS_ENABLED
	// Default: true
	MetricsEnabled bool

	// TracesEnabled controls whether OpenTelemetry spans are exported.
	// Env: POKEDEX_TRACES_ENABLED
	TracesEnabled bool

	// RequestTimeout bounds the handling of a single API request.
	// Env: POKEDEX_REQUEST_TIMEOUT
	// Default: 10s
	RequestTimeout time.Duration

	// StaticDir is the client build directory served for non-API paths.
	// Env: POKEDEX_STATIC_DIR
	StaticDir string

	// CORSAllowedOrigins is a comma-separated origin allow list.
	// Env: POKEDEX_CORS_ALLOWED_ORIGINS
	// Default: "*"
	CORSAllowedOrigins []string
}

// Load resolves the configuration and validates it.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("store_backend", defaultStoreBackend)
	v.SetDefault("mongo_uri", defaultMongoURI)
	v.SetDefault("mongo_database", defaultMongoDatabase)
	v.SetDefault("db_dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("cache_ttl", defaultCacheTTL.String())
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject_prefix", defaultNATSSubjectPrefix)
	v.SetDefault("log_level", "info")
	v.SetDefault("dev_mode", false)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("traces_enabled", false)
	v.SetDefault("request_timeout", defaultRequestTimeout.String())
	v.SetDefault("static_dir", "")
	v.SetDefault("cors_allowed_origins", defaultCORSOrigins)
	v.SetDefault("config_file", "")

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := Config{
		ListenAddr:         strings.TrimSpace(v.GetString("listen_addr")),
		StoreBackend:       strings.ToLower(strings.TrimSpace(v.GetString("store_backend"))),
		MongoURI:           strings.TrimSpace(v.GetString("mongo_uri")),
		MongoDatabase:      strings.TrimSpace(v.GetString("mongo_database")),
		DBDSN:              strings.TrimSpace(v.GetString("db_dsn")),
		RedisAddr:          strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:      v.GetString("redis_password"),
		CacheTTL:           positiveDuration(v, "cache_ttl", defaultCacheTTL),
		NATSURL:            strings.TrimSpace(v.GetString("nats_url")),
		NATSSubjectPrefix:  strings.TrimSpace(v.GetString("nats_subject_prefix")),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		DevMode:            v.GetBool("dev_mode"),
		MetricsEnabled:     v.GetBool("metrics_enabled"),
		TracesEnabled:      v.GetBool("traces_enabled"),
		RequestTimeout:     positiveDuration(v, "request_timeout", defaultRequestTimeout),
		StaticDir:          strings.TrimSpace(v.GetString("static_dir")),
		CORSAllowedOrigins: stringList(v, "cors_allowed_origins"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("POKEDEX_LISTEN_ADDR must not be empty")
	}

	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("POKEDEX_MONGO_URI and POKEDEX_MONGO_DATABASE are required for the mongo backend")
		}
	case BackendPostgres, BackendSQLite:
		if c.DBDSN == "" {
			return fmt.Errorf("POKEDEX_DB_DSN is required for the %s backend", c.StoreBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("POKEDEX_STORE_BACKEND %q is not one of mongo, postgres, sqlite, memory", c.StoreBackend)
	}

	if c.NATSSubjectPrefix == "" {
		return fmt.Errorf("POKEDEX_NATS_SUBJECT_PREFIX must not be empty")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// positiveDuration reads key as a duration, falling back to def when the
// value is missing, malformed, or not positive.
func positiveDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// stringList reads key as either a YAML sequence or a comma-separated
// string, dropping blanks.
func stringList(v *viper.Viper, key string) []string {
	parts := strings.Split(v.GetString(key), ",")
	if seq, ok := v.Get(key).([]any); ok {
		parts = parts[:0]
		for _, item := range seq {
			parts = append(parts, fmt.Sprint(item))
		}
	}

	var out []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
