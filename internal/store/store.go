package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of sql.DB and sql.Tx the stores run their queries
// through, so the same store code works inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store holds all sub-stores used by the application.
type Store struct {
	db *sql.DB

	Registry      RegistryStore
	Objects       ObjectStore
	Values        ValueStore
	Relationships RelationshipStore
	Pipelines     PipelineStore
	Activity      ActivityStore
	Triggers      TriggerStore
}

// New creates a Store with all sub-stores initialized.
func New(db *sql.DB) *Store {
	s := with(db)
	s.db = db
	return s
}

func with(q DBTX) *Store {
	return &Store{
		Registry:      NewSQLiteRegistryStore(q),
		Objects:       NewSQLiteObjectStore(q),
		Values:        NewSQLiteValueStore(q),
		Relationships: NewSQLiteRelationshipStore(q),
		Pipelines:     NewSQLitePipelineStore(q),
		Activity:      NewSQLiteActivityStore(q),
		Triggers:      NewSQLiteTriggerStore(q),
	}
}

// InTx runs fn against a transaction-bound Store and commits if fn returns
// nil. All queries inside fn must go through the Store it receives: the
// database holds a single connection, so touching the outer Store from inside
// the transaction would deadlock. Nested calls reuse the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(with(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
