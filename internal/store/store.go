// Package store implements the embedded Task Store: the durable,
// concurrency-safe data model and operation semantics for named queues of
// prioritized, parameterized tasks. It is the core described in the
// specification; command-line and RPC front ends are thin translators
// built on top of the exported API in this package.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/jwhiting/taskq/internal/tracelog"
)

// Store is the long-lived handle onto a single embedded SQLite database.
// It holds one *sql.DB (whose pool is free to run readers concurrently;
// writers serialize on the database's RESERVED lock via BEGIN IMMEDIATE)
// and is safe to share across goroutines within one process, and across
// the OS processes that share the underlying file. Callers own the
// handle explicitly and must Close it; the package keeps no process-wide
// mutable state.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database at path if it does not exist (including any
// missing parent directories), idempotently installs the schema, and
// returns a ready-to-use Store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, validationErr("Open", "", errors.New("path must not be empty"))
	}

	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, newErr(KindDatabase, "Open", path, fmt.Errorf("create parent directory: %w", err))
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn(path, false))
	if err != nil {
		return nil, newErr(KindDatabase, "Open", path, err)
	}
	// A single writer connection serializes BEGIN IMMEDIATE transactions;
	// readers use additional pooled connections, so we do NOT cap
	// MaxOpenConns(1) here -- doing so would deadlock a reader against a
	// held result set from another query on the same connection.
	db.SetConnMaxLifetime(0)

	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, newErr(KindDatabase, "Open", path, err)
	}

	tracelog.Logf("store: opened %s (schema v%d)", path, schemaVersion)
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database connection(s).
func (s *Store) Close() error {
	return s.db.Close()
}

// txFunc is the body run inside a serialized write transaction.
type txFunc func(ctx context.Context, conn *sql.Conn) error

// Transaction executes fn inside a serializable write transaction and
// propagates fn's failure as a rollback. This is the core's single
// concurrency primitive: every multi-statement mutating operation in this
// package is built on top of it, and callers may bracket their own
// compound actions with it too.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	return s.withTx(ctx, fn)
}

func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return newErr(KindDatabase, "transaction", "", fmt.Errorf("acquire connection: %w", err))
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn); err != nil {
		return newErr(KindDatabase, "transaction", "", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(ctx, conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return newErr(KindDatabase, "transaction", "", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// beginImmediateWithRetry starts an IMMEDIATE transaction, which acquires
// a RESERVED lock up front instead of deferring it to the first write.
// This serializes ID generation and guarded updates across concurrent
// writers, including writers in other OS processes sharing the file.
// database/sql's BeginTx cannot express IMMEDIATE mode, so the statement
// is issued directly on a dedicated connection, with bounded
// exponential-backoff retry to absorb transient SQLITE_BUSY contention
// beyond what busy_timeout alone smooths over.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	const maxAttempts = 8
	backoff := 5 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if !isBusyErr(err) {
			return err
		}
		lastErr = err
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return fmt.Errorf("begin immediate: exceeded %d retries: %w", maxAttempts, lastErr)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
