package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClientProfile is the KYC subset of public.clients used to tailor advice.
type ClientProfile struct {
	ID         int64
	Name       string
	RiskRating string
}

// Transaction is a row of public.transactions.
type Transaction struct {
	ID       int64
	Date     time.Time
	Amount   float64
	Category string
}

// TransactionFilter narrows ClientTransactions. Zero values are ignored.
type TransactionFilter struct {
	ClientID  int64
	DateFrom  *time.Time
	DateTo    *time.Time // inclusive
	Category  string     // case-insensitive substring
	MinAmount *float64
	MaxAmount *float64
	Limit     int
}

// DefaultTransactionLimit applies when a filter carries no positive limit.
const DefaultTransactionLimit = 100

// ClientProfile loads a single client by id.
func (s *Store) ClientProfile(ctx context.Context, id int64) (ClientProfile, error) {
	var (
		p    ClientProfile
		name sql.NullString
		risk sql.NullString
	)
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
SELECT c.id, c.name, c.risk_rating
FROM public.clients c
WHERE c.id = $1
LIMIT 1`, id).Scan(&p.ID, &name, &risk)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ClientProfile{}, fmt.Errorf("%w: %d", ErrClientNotFound, id)
	}
	if err != nil {
		return ClientProfile{}, err
	}
	p.Name = name.String
	p.RiskRating = risk.String
	return p, nil
}

// ClientTransactions lists a client's transactions, newest first.
func (s *Store) ClientTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	query, args := buildTransactionsQuery(f)
	var out []Transaction
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				t        Transaction
				category sql.NullString
			)
			if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &category); err != nil {
				return fmt.Errorf("scan transaction: %w", err)
			}
			t.Category = category.String
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func buildTransactionsQuery(f TransactionFilter) (string, []interface{}) {
	where := []string{"t.client_id = $1"}
	args := []interface{}{f.ClientID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DateFrom != nil {
		add("t.transaction_date >= $%d", f.DateFrom.Format("2006-01-02"))
	}
	if f.DateTo != nil {
		add("t.transaction_date <= $%d", f.DateTo.Format("2006-01-02"))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		add("t.category ILIKE $%d", "%"+c+"%")
	}
	if f.MinAmount != nil {
		add("t.amount >= $%d", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("t.amount <= $%d", *f.MaxAmount)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT t.id, t.transaction_date, t.amount, t.category
FROM public.transactions t
WHERE %s
ORDER BY t.transaction_date DESC, t.id DESC
LIMIT $%d`, strings.Join(where, " AND "), len(args))
	return query, args
}
