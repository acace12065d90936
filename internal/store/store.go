// Package store persists rooms, seats, hands and action logs behind
// database/sql. SQLite is the default engine; Postgres is supported for
// multi-process deployments. Mutations run through WithTx so every manager
// operation is a single transaction.
package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cardroom/holdemd/internal/game"
)

// Dialect selects engine-specific SQL.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// forUpdate returns the row-lock clause. SQLite has no FOR UPDATE; its
// transactions open with _txlock=immediate instead, which takes the write
// lock up front.
func (d Dialect) forUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// rebind converts ?-style placeholders to the dialect's form.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Config selects and locates the database engine.
type Config struct {
	Driver string // "sqlite3" or "postgres"
	DSN    string
	Logger *log.Logger
}

// Store wraps the database handle. Reads go straight through; mutations use
// WithTx.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx so query helpers can be
// shared between plain reads and locked transactional reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects, applies engine defaults and runs migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("store")

	var dialect Dialect
	dsn := cfg.DSN
	switch cfg.Driver {
	case "", "sqlite3":
		cfg.Driver = "sqlite3"
		dialect = DialectSQLite
		dsn = sqliteDSN(dsn)
	case "postgres":
		dialect = DialectPostgres
	default:
		return nil, game.Errf(game.CodeInternal, "unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "open database", err)
	}
	if dialect == DialectSQLite {
		// A single connection keeps in-memory databases coherent and
		// serializes writers the way the immediate lock expects.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, game.Wrap(game.CodeInternal, "ping database", err)
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready", "driver", cfg.Driver)
	return s, nil
}

// sqliteDSN forces immediate transactions so every BEGIN takes the write
// lock, mirroring the FOR UPDATE discipline used on Postgres.
func sqliteDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate"
}

func (s *Store) Close() error { return s.db.Close() }

// Tx exposes the mutating store operations within one transaction.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// WithTx runs fn inside a transaction, rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return game.Wrap(game.CodeInternal, "begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return game.Wrap(game.CodeInternal, "commit transaction", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		nickname   TEXT NOT NULL UNIQUE,
		wallet     BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		owner_id         TEXT NOT NULL REFERENCES users(id),
		invite_code      TEXT NOT NULL UNIQUE,
		invite_only      BOOLEAN NOT NULL DEFAULT FALSE,
		max_seats        INTEGER NOT NULL,
		small_blind      BIGINT NOT NULL,
		big_blind        BIGINT NOT NULL,
		min_buy_in       BIGINT NOT NULL,
		max_buy_in       BIGINT NOT NULL,
		auto_start_delay INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'WAITING',
		created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS room_players (
		room_id   TEXT NOT NULL REFERENCES rooms(id),
		user_id   TEXT NOT NULL REFERENCES users(id),
		seat      INTEGER NOT NULL,
		stack     BIGINT NOT NULL,
		status    TEXT NOT NULL DEFAULT 'ACTIVE',
		joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, user_id),
		UNIQUE (room_id, seat)
	)`,
	`CREATE TABLE IF NOT EXISTS hands (
		id          TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL REFERENCES rooms(id),
		hand_number BIGINT NOT NULL,
		dealer_seat INTEGER NOT NULL,
		small_blind BIGINT NOT NULL,
		big_blind   BIGINT NOT NULL,
		state       TEXT NOT NULL,
		community   TEXT NOT NULL DEFAULT '',
		pot_total   BIGINT NOT NULL DEFAULT 0,
		created_at  TIMESTAMP NOT NULL,
		settled_at  TIMESTAMP,
		UNIQUE (room_id, hand_number)
	)`,
	`CREATE TABLE IF NOT EXISTS hand_players (
		hand_id    TEXT NOT NULL REFERENCES hands(id),
		user_id    TEXT NOT NULL REFERENCES users(id),
		seat       INTEGER NOT NULL,
		hole_cards TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'ACTIVE',
		bet_total  BIGINT NOT NULL DEFAULT 0,
		won        BIGINT NOT NULL DEFAULT 0,
		best_hand  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (hand_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hand_actions (
		hand_id     TEXT NOT NULL REFERENCES hands(id),
		seq         INTEGER NOT NULL,
		user_id     TEXT,
		action_type TEXT NOT NULL,
		amount      BIGINT NOT NULL DEFAULT 0,
		state       TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		PRIMARY KEY (hand_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hands_room_state ON hands (room_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_room_players_room ON room_players (room_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return game.Wrap(game.CodeInternal, "migrate schema", err)
		}
	}
	s.logger.Debug("schema migrated", "statements", len(migrations))
	return nil
}
