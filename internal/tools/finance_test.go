package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/advisor/internal/store"
)

type stubProfiles struct {
	profile store.ClientProfile
	err     error
	gotID   int64
}

func (s *stubProfiles) ClientProfile(ctx context.Context, id int64) (store.ClientProfile, error) {
	s.gotID = id
	return s.profile, s.err
}

type stubTransactions struct {
	filter store.TransactionFilter
	txs    []store.Transaction
}

func (s *stubTransactions) ClientTransactions(ctx context.Context, f store.TransactionFilter) ([]store.Transaction, error) {
	s.filter = f
	return s.txs, nil
}

func TestDatabaseInfoFromStore(t *testing.T) {
	src := &stubProfiles{profile: store.ClientProfile{ID: 5, Name: "Ana", RiskRating: "High"}}
	out, err := DatabaseInfo(src).Invoke(context.Background(), map[string]interface{}{"client_id": "5"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	m := out.(map[string]interface{})
	if src.gotID != 5 {
		t.Fatalf("expected lookup of client 5, got %d", src.gotID)
	}
	if m["risk_profile"] != RiskHigh || m["name"] != "Ana" {
		t.Fatalf("unexpected profile: %#v", m)
	}
}

func TestDatabaseInfoSampleWithoutStore(t *testing.T) {
	out, err := DatabaseInfo(nil).Invoke(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	m := out.(map[string]interface{})
	if m["risk_profile"] != RiskMedium || m["client_id"] != "unknown" {
		t.Fatalf("unexpected sample: %#v", m)
	}
}

func TestDatabaseInfoUnknownClientUsesSample(t *testing.T) {
	src := &stubProfiles{err: fmt.Errorf("%w: 9", store.ErrClientNotFound)}
	out, err := DatabaseInfo(src).Invoke(context.Background(), map[string]interface{}{"client_id": float64(9)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	m := out.(map[string]interface{})
	if m["risk_profile"] != RiskMedium || m["client_id"] != float64(9) {
		t.Fatalf("unexpected sample: %#v", m)
	}
}

func TestDatabaseInfoPropagatesStoreError(t *testing.T) {
	boom := errors.New("connection refused")
	src := &stubProfiles{err: boom}
	_, err := DatabaseInfo(src).Invoke(context.Background(), map[string]interface{}{"client_id": float64(9)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestTransactionHistoryFilters(t *testing.T) {
	src := &stubTransactions{txs: []store.Transaction{
		{ID: 1, Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), Amount: 12.5, Category: "food"},
	}}
	out, err := TransactionHistory(src).Invoke(context.Background(), map[string]interface{}{
		"client_id":  float64(3),
		"limit":      "5",
		"date_from":  "2025-08-01T10:00:00Z",
		"date_to":    "not a date",
		"category":   "food",
		"min_amount": "10",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	f := src.filter
	if f.ClientID != 3 || f.Limit != 5 || f.Category != "food" {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.DateFrom == nil || f.DateFrom.Format("2006-01-02") != "2025-08-01" || f.DateTo != nil {
		t.Fatalf("unexpected dates: %+v", f)
	}
	if f.MinAmount == nil || *f.MinAmount != 10 || f.MaxAmount != nil {
		t.Fatalf("unexpected amounts: %+v", f)
	}
	recent := out.(map[string]interface{})["recent_transactions"].([]map[string]interface{})
	if len(recent) != 1 || recent[0]["date"] != "2025-09-01" {
		t.Fatalf("unexpected payload: %#v", recent)
	}
}

func TestTransactionHistorySampleHonoursLimit(t *testing.T) {
	out, err := TransactionHistory(nil).Invoke(context.Background(), map[string]interface{}{"client_id": "7", "limit": float64(1)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	recent := out.(map[string]interface{})["recent_transactions"].([]map[string]interface{})
	if len(recent) != 1 {
		t.Fatalf("expected 1 sample transaction, got %d", len(recent))
	}
}

func TestTransactionHistoryRejectsBadLimit(t *testing.T) {
	if _, err := TransactionHistory(nil).Invoke(context.Background(), map[string]interface{}{"limit": 2.5}); err == nil {
		t.Fatalf("expected error for fractional limit")
	}
}

func TestInvestmentPackages(t *testing.T) {
	tool := InvestmentPackages(DefaultPackages())
	cases := map[interface{}]string{
		"usor":       RiskLow,
		"Aggressive": RiskHigh,
		"whatever":   RiskMedium,
	}
	for in, want := range cases {
		out, err := tool.Invoke(context.Background(), map[string]interface{}{"risk": in})
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		m := out.(map[string]interface{})
		pkgs := m["packages"].([]Package)
		if m["risk"] != want || len(pkgs) != 1 || pkgs[0].Risk != want {
			t.Fatalf("risk %v: unexpected payload %#v", in, m)
		}
	}
	out, err := tool.Invoke(context.Background(), map[string]interface{}{"risk": nil})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.(map[string]interface{})["risk"] != RiskMedium {
		t.Fatalf("nil risk should default to mediu")
	}
}

func TestNormalizeRisk(t *testing.T) {
	cases := map[string]string{
		"":             RiskMedium,
		" LOW ":        RiskLow,
		"ușor":         RiskLow,
		"conservative": RiskLow,
		"balanced":     RiskMedium,
		"înalt":        RiskHigh,
		"growth":       RiskHigh,
	}
	for in, want := range cases {
		if got := NormalizeRisk(in); got != want {
			t.Fatalf("NormalizeRisk(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPackagesForFallsBackToMedium(t *testing.T) {
	only := []Package{{ID: "m", Risk: RiskMedium}}
	got := PackagesFor(only, RiskHigh)
	if len(got) != 1 || got[0].ID != "m" {
		t.Fatalf("expected medium fallback, got %+v", got)
	}
}
