package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// DefaultStatementTimeout bounds every read-only query when no timeout is configured.
const DefaultStatementTimeout = 5 * time.Second

// ErrClientNotFound is returned when a client id has no row in public.clients.
var ErrClientNotFound = errors.New("client not found")

var logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)

type Store struct {
	DB *sql.DB
	// StatementTimeout is applied with SET LOCAL inside each read-only transaction.
	StatementTimeout time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithStatementTimeout overrides DefaultStatementTimeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.StatementTimeout = d
		}
	}
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{DB: db, StatementTimeout: DefaultStatementTimeout}
	for _, opt := range opts {
		opt(s)
	}
	logger.Printf("connected (statement timeout %v)", s.StatementTimeout)
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) timeoutMillis() int64 {
	d := s.StatementTimeout
	if d <= 0 {
		d = DefaultStatementTimeout
	}
	return d.Milliseconds()
}

// readOnly runs fn inside a read-only transaction with a statement timeout.
// The transaction is always rolled back.
func (s *Store) readOnly(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Printf("rollback: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `SET LOCAL default_transaction_read_only = on`); err != nil {
		return fmt.Errorf("set read only: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL statement_timeout = %d`, s.timeoutMillis())); err != nil {
		return fmt.Errorf("set statement timeout: %w", err)
	}
	return fn(tx)
}
