package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the "sqlite3" driver
	_ "modernc.org/sqlite"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// StoreDriver selects the SQL engine behind SQLStore.
type StoreDriver string

const (
	// DriverSQLCipher encrypts the store file (cgo).
	DriverSQLCipher StoreDriver = "sqlcipher"
	// DriverSQLite is the pure-Go engine; the file is not encrypted.
	DriverSQLite StoreDriver = "sqlite"
)

const (
	// StoreFileName is the database file inside the data directory.
	StoreFileName      = "shieldmon.db"
	defaultBusyTimeout = 5 * time.Second
)

// SQLStoreOptions configures NewSQLStore.
type SQLStoreOptions struct {
	DataDir     string
	Driver      StoreDriver
	Key         []byte // required for DriverSQLCipher
	BusyTimeout time.Duration
}

// SQLStore implements domain.SharedStore on one SQLite database file.
// Writers serialise on BEGIN IMMEDIATE, so concurrent shieldmon processes
// never interleave a read-modify-write.
type SQLStore struct {
	db     *sql.DB
	dbPath string
	driver StoreDriver
}

// NewSQLStore opens (or creates) the shared store database.
func NewSQLStore(opts SQLStoreOptions) (*SQLStore, error) {
	if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}

	dbPath := filepath.Join(opts.DataDir, StoreFileName)
	busyMs := opts.BusyTimeout.Milliseconds()

	var driverName, dsn string
	switch opts.Driver {
	case DriverSQLCipher, "":
		if len(opts.Key) == 0 {
			return nil, fmt.Errorf("sqlcipher store requires a key")
		}
		keyHex := hex.EncodeToString(opts.Key)
		driverName = "sqlite3"
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=%d",
			dbPath, keyHex, busyMs)
		opts.Driver = DriverSQLCipher
	case DriverSQLite:
		driverName = "sqlite"
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", dbPath, busyMs)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify the key works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store database: %w", err)
	}

	s := &SQLStore{db: db, dbPath: dbPath, driver: opts.Driver}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			revision INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta (name, value) VALUES ('seq', 0);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value for key, or domain.ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Put writes value and returns after the transaction commits.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	return s.writeTx(ctx, func(conn *sql.Conn) error {
		return s.upsert(ctx, conn, key, value)
	})
}

// Update runs fn on the current value inside one immediate transaction.
func (s *SQLStore) Update(ctx context.Context, key string, fn func(cur []byte, found bool) ([]byte, error)) error {
	return s.writeTx(ctx, func(conn *sql.Conn) error {
		cur, found, err := s.read(ctx, conn, key)
		if err != nil {
			return err
		}
		next, err := fn(cur, found)
		if err != nil {
			return err
		}
		if next == nil {
			if !found {
				return nil
			}
			return s.remove(ctx, conn, key)
		}
		return s.upsert(ctx, conn, key, next)
	})
}

// Take atomically reads and deletes key.
func (s *SQLStore) Take(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.writeTx(ctx, func(conn *sql.Conn) error {
		cur, found, err := s.read(ctx, conn, key)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrNotFound
		}
		out = cur
		return s.remove(ctx, conn, key)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes keys; missing keys are ignored.
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.writeTx(ctx, func(conn *sql.Conn) error {
		for _, k := range keys {
			if err := s.remove(ctx, conn, k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Revision returns the sequence number of the last write to key, 0 if absent.
func (s *SQLStore) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM kv WHERE key = ?`, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read revision of %s: %w", key, err)
	}
	return rev, nil
}

// Path returns the database file path.
func (s *SQLStore) Path() string {
	return s.dbPath
}

// Driver returns the engine in use.
func (s *SQLStore) Driver() StoreDriver {
	return s.driver
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// writeTx runs fn between BEGIN IMMEDIATE and COMMIT on a dedicated connection.
// The write lock is taken up front so a concurrent process waits on busy_timeout
// instead of failing mid-transaction.
func (s *SQLStore) writeTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(conn); err != nil {
		_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		return err
	}
	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) read(ctx context.Context, conn *sql.Conn, key string) ([]byte, bool, error) {
	var value []byte
	err := conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) nextSeq(ctx context.Context, conn *sql.Conn) (int64, error) {
	if _, err := conn.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE name = 'seq'`); err != nil {
		return 0, fmt.Errorf("failed to bump sequence: %w", err)
	}
	var seq int64
	if err := conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'seq'`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}
	return seq, nil
}

func (s *SQLStore) upsert(ctx context.Context, conn *sql.Conn, key string, value []byte) error {
	seq, err := s.nextSeq(ctx, conn)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO kv (key, value, revision, updated_at)
		VALUES (?, ?, ?, ?)`,
		key, value, seq, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) remove(ctx context.Context, conn *sql.Conn, key string) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ensure SQLStore implements domain.SharedStore.
var _ domain.SharedStore = (*SQLStore)(nil)
