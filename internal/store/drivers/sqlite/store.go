package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/autolinkhq/autolink/internal/store"

	_ "modernc.org/sqlite"
)

// dbtx is the common surface of *sql.DB and *sql.Tx the repos run their
// queries against.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens (or creates) the sqlite database at dsn. Callers should pass
// `_txlock=immediate` in the DSN so write transactions take the database write
// lock up front; the membership engine's check-then-act sequences rely on that
// to serialize concurrent mutations of the same workspace.
func NewStore(dsn string) (*Store, error) {
	// FK enforcement goes in the DSN so every pooled connection gets it;
	// cascading workspace deletes depend on it.
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback. Transient lock contention (SQLITE_BUSY and friends) retries
// the whole function with exponential backoff; any other error from fn rolls
// back and propagates immediately.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return retryTransient(ctx, func() error {
		tx, err := s.Tx(ctx)
		if err != nil {
			return err
		}

		// Rollback is safe to call after commit
		defer func() {
			_ = tx.Rollback()
		}()

		if err := fn(tx); err != nil {
			return err
		}

		return tx.Commit()
	})
}

func (s *Store) Users() store.Users             { return &usersRepo{db: s.db} }
func (s *Store) OAuthLinks() store.OAuthLinks   { return &oauthLinksRepo{db: s.db} }
func (s *Store) Workspaces() store.Workspaces   { return &workspacesRepo{db: s.db} }
func (s *Store) Memberships() store.Memberships { return &membershipsRepo{db: s.db} }
func (s *Store) Invites() store.Invites         { return &invitesRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
