package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db, StatementTimeout: 2 * time.Second}, mock
}

func expectReadOnly(mock sqlmock.Sqlmock, timeoutMillis string) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL default_transaction_read_only = on`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL statement_timeout = ` + timeoutMillis)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestQueryReadOnly(t *testing.T) {
	st, mock := newMockStore(t)
	expectReadOnly(mock, "2000")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM clients LIMIT 100`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("Ana")).
			AddRow(int64(2), "Radu"))
	mock.ExpectRollback()

	rows, err := st.QueryReadOnly(context.Background(), "SELECT id, name FROM clients LIMIT 100")
	if err != nil {
		t.Fatalf("QueryReadOnly: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["name"] != "Ana" || rows[1]["id"] != int64(2) {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryReadOnlyPropagatesQueryError(t *testing.T) {
	st, mock := newMockStore(t)
	expectReadOnly(mock, "2000")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM missing LIMIT 100`)).
		WillReturnError(errors.New(`relation "missing" does not exist`))
	mock.ExpectRollback()

	_, err := st.QueryReadOnly(context.Background(), "SELECT * FROM missing LIMIT 100")
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryReadOnlyDefaultTimeout(t *testing.T) {
	st, mock := newMockStore(t)
	st.StatementTimeout = 0
	expectReadOnly(mock, "5000")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 LIMIT 100`)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
	mock.ExpectRollback()

	if _, err := st.QueryReadOnly(context.Background(), "SELECT 1 LIMIT 100"); err != nil {
		t.Fatalf("QueryReadOnly: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClientProfile(t *testing.T) {
	st, mock := newMockStore(t)
	expectReadOnly(mock, "2000")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM public.clients c`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "name", "risk_rating"}).AddRow(int64(7), "Ioana", "ridicat"))
	mock.ExpectRollback()

	p, err := st.ClientProfile(context.Background(), 7)
	if err != nil {
		t.Fatalf("ClientProfile: %v", err)
	}
	if p.ID != 7 || p.Name != "Ioana" || p.RiskRating != "ridicat" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClientProfileNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	expectReadOnly(mock, "2000")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM public.clients c`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "name", "risk_rating"}))
	mock.ExpectRollback()

	_, err := st.ClientProfile(context.Background(), 99)
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestClientTransactionsFilters(t *testing.T) {
	st, mock := newMockStore(t)
	from := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	minAmount := 10.0

	expectReadOnly(mock, "2000")
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE t.client_id = $1 AND t.transaction_date >= $2 AND t.category ILIKE $3 AND t.amount >= $4
ORDER BY t.transaction_date DESC, t.id DESC
LIMIT $5`)).
		WithArgs(int64(3), "2025-08-01", "%food%", 10.0, int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_date", "amount", "category"}).
			AddRow(int64(11), time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), 42.5, "Food & drinks"))
	mock.ExpectRollback()

	txs, err := st.ClientTransactions(context.Background(), TransactionFilter{
		ClientID:  3,
		DateFrom:  &from,
		Category:  " food ",
		MinAmount: &minAmount,
		Limit:     20,
	})
	if err != nil {
		t.Fatalf("ClientTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != 11 || txs[0].Amount != 42.5 {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBuildTransactionsQueryDefaultLimit(t *testing.T) {
	query, args := buildTransactionsQuery(TransactionFilter{ClientID: 1})
	if len(args) != 2 || args[1] != DefaultTransactionLimit {
		t.Fatalf("unexpected args: %#v", args)
	}
	if !regexp.MustCompile(`LIMIT \$2$`).MatchString(query) {
		t.Fatalf("unexpected query: %s", query)
	}
}

func TestSchemaBrief(t *testing.T) {
	st, mock := newMockStore(t)
	expectReadOnly(mock, "2000")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.columns`)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("clients", "id").
			AddRow("clients", "name").
			AddRow("clients", "risk_rating").
			AddRow("transactions", "id").
			AddRow("transactions", "amount"))
	mock.ExpectRollback()

	brief, err := st.SchemaBrief(context.Background(), 2)
	if err != nil {
		t.Fatalf("SchemaBrief: %v", err)
	}
	want := "Known tables (schema=public):\n- clients(id, name)\n- transactions(id, amount)"
	if brief != want {
		t.Fatalf("unexpected brief:\n%s", brief)
	}
}
