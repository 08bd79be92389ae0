package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ericreyes/pokedex/internal/model"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pqUniqueViolation = "23505"

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Name              string
	Placeholder       sq.PlaceholderFormat
	IsUniqueViolation func(error) bool
}

// Supported dialects.
var (
	Postgres = Dialect{Name: "postgres", Placeholder: sq.Dollar, IsUniqueViolation: isPQUniqueViolation}
	SQLite   = Dialect{Name: "sqlite", Placeholder: sq.Question, IsUniqueViolation: isSQLiteUniqueViolation}
)

var pokemonColumns = []string{
	"pokedex_number",
	"name",
	"primary_type",
	"secondary_type",
	"hp",
	"attack",
	"defense",
	"speed",
	"description",
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pokemon (
		pokedex_number INTEGER PRIMARY KEY,
		name           TEXT NOT NULL UNIQUE,
		primary_type   TEXT NOT NULL,
		secondary_type TEXT,
		hp             INTEGER NOT NULL,
		attack         INTEGER NOT NULL,
		defense        INTEGER NOT NULL,
		speed          INTEGER NOT NULL,
		description    TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS pokedex_counter (
		id    INTEGER PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
	`INSERT INTO pokedex_counter (id, value) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`UPDATE pokedex_counter
		SET value = (SELECT COALESCE(MAX(pokedex_number), 0) FROM pokemon)
		WHERE id = 1 AND value < (SELECT COALESCE(MAX(pokedex_number), 0) FROM pokemon)`,
}

// SQLStore implements Store on top of database/sql. Pokedex numbers come
// from a single-row counter table that is bumped in the same transaction as
// the insert, so a rejected insert does not consume a number.
type SQLStore struct {
	db      *sql.DB
	sb      sq.StatementBuilderType
	dialect Dialect
}

// NewSQLStore creates a store for db using the given dialect.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		dialect: dialect,
	}
}

// NewPostgresStore creates a store using PostgreSQL-style $1, $2 placeholders.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, Postgres)
}

// NewSQLiteStore creates a store for an embedded SQLite database.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, SQLite)
}

// Migrate creates the tables if needed and moves the counter past any
// existing pokedex number.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// Ping verifies that the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// ListPokemon retrieves one page of records.
func (s *SQLStore) ListPokemon(ctx context.Context, opts ListOptions) ([]model.Pokemon, int, error) {
	return s.SearchPokemon(ctx, model.SearchFilter{}, opts)
}

// SearchPokemon retrieves one page of records matching filter.
func (s *SQLStore) SearchPokemon(ctx context.Context, filter model.SearchFilter, opts ListOptions) ([]model.Pokemon, int, error) {
	where := filterClause(filter)

	countQuery := s.sb.Select("COUNT(*)").From("pokemon")
	if where != nil {
		countQuery = countQuery.Where(where)
	}
	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("executing count query: %w", err)
	}
	if total == 0 {
		return []model.Pokemon{}, 0, nil
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	orderBy := []string{"pokedex_number " + direction}
	if opts.sortField() == SortByName {
		orderBy = append([]string{"name " + direction}, orderBy...)
	}

	dataQuery := s.sb.
		Select(pokemonColumns...).
		From("pokemon").
		OrderBy(orderBy...).
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset))
	if where != nil {
		dataQuery = dataQuery.Where(where)
	}

	dataSQL, dataArgs, err := dataQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building data query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("executing data query: %w", err)
	}
	defer rows.Close()

	items := make([]model.Pokemon, 0, opts.Limit)
	for rows.Next() {
		p, err := scanPokemon(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating rows: %w", err)
	}

	return items, total, nil
}

// GetPokemon retrieves a single record by pokedex number.
func (s *SQLStore) GetPokemon(ctx context.Context, number int) (model.Pokemon, error) {
	return s.getPokemon(ctx, s.db, number)
}

// CountPokemon returns the number of rows in the pokemon table.
func (s *SQLStore) CountPokemon(ctx context.Context) (int, error) {
	sqlStr, args, err := s.sb.Select("COUNT(*)").From("pokemon").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("executing count query: %w", err)
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// CreatePokemon assigns the next pokedex number and inserts p.
func (s *SQLStore) CreatePokemon(ctx context.Context, p model.Pokemon) (model.Pokemon, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Pokemon{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	counterSQL, counterArgs, err := s.sb.
		Update("pokedex_counter").
		Set("value", sq.Expr("value + 1")).
		Where(sq.Eq{"id": 1}).
		Suffix("RETURNING value").
		ToSql()
	if err != nil {
		return model.Pokemon{}, fmt.Errorf("building counter query: %w", err)
	}
	if err := tx.QueryRowContext(ctx, counterSQL, counterArgs...).Scan(&p.PokedexNumber); err != nil {
		return model.Pokemon{}, fmt.Errorf("allocating pokedex number: %w", err)
	}

	insertSQL, insertArgs, err := s.sb.
		Insert("pokemon").
		Columns(pokemonColumns...).
		Values(rowValues(p)...).
		ToSql()
	if err != nil {
		return model.Pokemon{}, fmt.Errorf("building insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return model.Pokemon{}, ErrConflict
		}
		return model.Pokemon{}, fmt.Errorf("inserting pokemon: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Pokemon{}, fmt.Errorf("committing insert: %w", err)
	}
	return p, nil
}

// ReplacePokemon overwrites every column of an existing record.
func (s *SQLStore) ReplacePokemon(ctx context.Context, number int, p model.Pokemon) (model.Pokemon, error) {
	p.PokedexNumber = number
	if err := s.update(ctx, s.db, p); err != nil {
		return model.Pokemon{}, err
	}
	return p, nil
}

// PatchPokemon reads the current record, merges patch, and writes it back
// inside one transaction.
func (s *SQLStore) PatchPokemon(ctx context.Context, number int, patch model.PokemonPatch) (model.Pokemon, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Pokemon{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.getPokemon(ctx, tx, number)
	if err != nil {
		return model.Pokemon{}, err
	}
	updated := patch.Apply(current)
	if err := s.update(ctx, tx, updated); err != nil {
		return model.Pokemon{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Pokemon{}, fmt.Errorf("committing patch: %w", err)
	}
	return updated, nil
}

// DeletePokemon removes a record. Missing records are ignored.
func (s *SQLStore) DeletePokemon(ctx context.Context, number int) error {
	sqlStr, args, err := s.sb.
		Delete("pokemon").
		Where(sq.Eq{"pokedex_number": number}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("deleting pokemon: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) getPokemon(ctx context.Context, q queryer, number int) (model.Pokemon, error) {
	sqlStr, args, err := s.sb.
		Select(pokemonColumns...).
		From("pokemon").
		Where(sq.Eq{"pokedex_number": number}).
		ToSql()
	if err != nil {
		return model.Pokemon{}, fmt.Errorf("building query: %w", err)
	}

	p, err := scanPokemon(q.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Pokemon{}, ErrNotFound
		}
		return model.Pokemon{}, err
	}
	return p, nil
}

func (s *SQLStore) update(ctx context.Context, q queryer, p model.Pokemon) error {
	values := rowValues(p)
	query := s.sb.Update("pokemon")
	for i, col := range pokemonColumns[1:] {
		query = query.Set(col, values[i+1])
	}

	sqlStr, args, err := query.Where(sq.Eq{"pokedex_number": p.PokedexNumber}).ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := q.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("updating pokemon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// filterClause returns the WHERE clause for filter, or nil when it matches
// everything.
func filterClause(filter model.SearchFilter) sq.Sqlizer {
	var and sq.And
	if filter.Name != "" {
		and = append(and, sq.Eq{"name": filter.Name})
	}
	if filter.Type != "" {
		and = append(and, sq.Or{
			sq.Eq{"primary_type": filter.Type},
			sq.Eq{"secondary_type": filter.Type},
		})
	}
	if len(and) == 0 {
		return nil
	}
	return and
}

// rowValues returns column values in pokemonColumns order.
func rowValues(p model.Pokemon) []any {
	var primary string
	var secondary, description sql.NullString
	if len(p.Type) > 0 {
		primary = p.Type[0]
	}
	if len(p.Type) > 1 {
		secondary = sql.NullString{String: p.Type[1], Valid: true}
	}
	if p.Description != "" {
		description = sql.NullString{String: p.Description, Valid: true}
	}
	return []any{
		p.PokedexNumber,
		p.Name,
		primary,
		secondary,
		p.BaseStats.HP,
		p.BaseStats.Attack,
		p.BaseStats.Defense,
		p.BaseStats.Speed,
		description,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPokemon(row rowScanner) (model.Pokemon, error) {
	var (
		p           model.Pokemon
		primary     string
		secondary   sql.NullString
		description sql.NullString
	)
	if err := row.Scan(
		&p.PokedexNumber,
		&p.Name,
		&primary,
		&secondary,
		&p.BaseStats.HP,
		&p.BaseStats.Attack,
		&p.BaseStats.Defense,
		&p.BaseStats.Speed,
		&description,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Pokemon{}, err
		}
		return model.Pokemon{}, fmt.Errorf("scanning row: %w", err)
	}

	p.Type = []string{primary}
	if secondary.Valid {
		p.Type = append(p.Type, secondary.String)
	}
	p.Description = description.String
	return p, nil
}

// isPQUniqueViolation checks whether the error is a PostgreSQL unique
// constraint violation (error code 23505).
func isPQUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

func isSQLiteUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT:
			return true
		}
	}
	return false
}
