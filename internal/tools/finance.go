package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/advisor/internal/store"
)

// Built-in tool names.
const (
	DatabaseInfoTool       = "database_info"
	TransactionHistoryTool = "transaction_history"
	InvestmentPackagesTool = "investment_packages"
	PackageSearchTool      = "package_search"
)

// DefaultHistoryLimit is used when transaction_history gets no limit.
const DefaultHistoryLimit = 20

// ProfileSource loads client KYC profiles.
type ProfileSource interface {
	ClientProfile(ctx context.Context, id int64) (store.ClientProfile, error)
}

// TransactionSource lists client transactions.
type TransactionSource interface {
	ClientTransactions(ctx context.Context, f store.TransactionFilter) ([]store.Transaction, error)
}

// Deps carries the collaborators of the built-in tools. Nil sources make the
// data tools answer from a static sample profile.
type Deps struct {
	Profiles     ProfileSource
	Transactions TransactionSource
	Packages     []Package
	Index        *PackageIndex
}

// Builtin returns the standard tool set in catalog order.
func Builtin(deps Deps) []Tool {
	if deps.Packages == nil {
		deps.Packages = DefaultPackages()
	}
	list := []Tool{
		DatabaseInfo(deps.Profiles),
		TransactionHistory(deps.Transactions),
		InvestmentPackages(deps.Packages),
	}
	if deps.Index != nil {
		list = append(list, PackageSearch(deps.Index))
	}
	return list
}

func nullable(types ...string) map[string]interface{} {
	t := make([]interface{}, 0, len(types)+1)
	for _, s := range types {
		t = append(t, s)
	}
	return map[string]interface{}{"type": append(t, "null")}
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		req := make([]interface{}, len(required))
		for i, r := range required {
			req[i] = r
		}
		s["required"] = req
	}
	return s
}

// DatabaseInfo fetches a client's profile (name, risk category, goals).
func DatabaseInfo(src ProfileSource) Tool {
	spec := ToolSpec{
		Name:        DatabaseInfoTool,
		Description: "Fetch client metadata / KYC profile to tailor advice.",
		Args:        map[string]string{"client_id": "string (client identifier)"},
		InputSchema: objectSchema(map[string]interface{}{
			"client_id": nullable("string", "integer"),
		}),
	}
	return NewFunc(spec, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		id, ok, err := intArg(args, "client_id")
		if err != nil || !ok || src == nil {
			return sampleProfile(args["client_id"]), nil
		}
		p, err := src.ClientProfile(ctx, id)
		if errors.Is(err, store.ErrClientNotFound) {
			return sampleProfile(args["client_id"]), nil
		}
		if err != nil {
			return nil, err
		}
		risk := RiskMedium
		if p.RiskRating != "" {
			risk = NormalizeRisk(p.RiskRating)
		}
		return map[string]interface{}{
			"client_id":    p.ID,
			"name":         p.Name,
			"risk_profile": risk,
			"goals":        []string{},
			"currency":     "RON",
		}, nil
	})
}

func sampleProfile(clientID interface{}) map[string]interface{} {
	if clientID == nil || clientID == "" {
		clientID = "unknown"
	}
	return map[string]interface{}{
		"client_id":    clientID,
		"name":         "John / Jane Doe",
		"risk_profile": RiskMedium,
		"goals":        []string{"retirement", "emergency_fund"},
		"currency":     "RON",
	}
}

// TransactionHistory fetches recent client transactions.
func TransactionHistory(src TransactionSource) Tool {
	spec := ToolSpec{
		Name:        TransactionHistoryTool,
		Description: "Fetch recent transactions and current rough holdings.",
		Args: map[string]string{
			"client_id":  "string",
			"limit":      "integer (default 20)",
			"date_from":  "ISO date (optional)",
			"date_to":    "ISO date, inclusive (optional)",
			"category":   "string, partial match (optional)",
			"min_amount": "number (optional)",
			"max_amount": "number (optional)",
		},
		InputSchema: objectSchema(map[string]interface{}{
			"client_id":  nullable("string", "integer"),
			"limit":      nullable("string", "integer"),
			"date_from":  nullable("string"),
			"date_to":    nullable("string"),
			"category":   nullable("string"),
			"min_amount": nullable("string", "number"),
			"max_amount": nullable("string", "number"),
		}),
	}
	return NewFunc(spec, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		limit := int64(DefaultHistoryLimit)
		if n, ok, err := intArg(args, "limit"); err != nil {
			return nil, err
		} else if ok && n > 0 {
			limit = n
		}
		id, ok, err := intArg(args, "client_id")
		if err != nil || !ok || src == nil {
			return sampleTransactions(args["client_id"], int(limit)), nil
		}

		minAmount, err := floatArg(args, "min_amount")
		if err != nil {
			return nil, err
		}
		maxAmount, err := floatArg(args, "max_amount")
		if err != nil {
			return nil, err
		}
		txs, err := src.ClientTransactions(ctx, store.TransactionFilter{
			ClientID:  id,
			DateFrom:  dateArg(args, "date_from"),
			DateTo:    dateArg(args, "date_to"),
			Category:  stringArg(args, "category"),
			MinAmount: minAmount,
			MaxAmount: maxAmount,
			Limit:     int(limit),
		})
		if err != nil {
			return nil, err
		}
		recent := make([]map[string]interface{}, 0, len(txs))
		for _, t := range txs {
			recent = append(recent, map[string]interface{}{
				"id":       t.ID,
				"date":     t.Date.Format("2006-01-02"),
				"amount":   t.Amount,
				"category": t.Category,
			})
		}
		return map[string]interface{}{
			"client_id":           id,
			"recent_transactions": recent,
		}, nil
	})
}

func sampleTransactions(clientID interface{}, limit int) map[string]interface{} {
	if clientID == nil || clientID == "" {
		clientID = "unknown"
	}
	recent := []map[string]interface{}{
		{"date": "2025-10-01", "type": "BUY", "symbol": "TLV", "qty": 10, "price": 27.4},
		{"date": "2025-09-15", "type": "SELL", "symbol": "SNP", "qty": 50, "price": 0.58},
	}
	if limit < len(recent) {
		recent = recent[:limit]
	}
	return map[string]interface{}{
		"client_id":           clientID,
		"recent_transactions": recent,
		"holdings_estimate": []map[string]interface{}{
			{"symbol": "TLV", "qty": 120},
			{"symbol": "SNP", "qty": 0},
		},
	}
}

// InvestmentPackages returns the curated packages for a risk category.
func InvestmentPackages(catalog []Package) Tool {
	spec := ToolSpec{
		Name:        InvestmentPackagesTool,
		Description: "Fetch curated investment packages aligned to the client's risk.",
		Args:        map[string]string{"risk": "one of {usor, mediu, ridicat}"},
		InputSchema: objectSchema(map[string]interface{}{
			"risk": nullable("string"),
		}),
	}
	return NewFunc(spec, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		risk := NormalizeRisk(stringArg(args, "risk"))
		return map[string]interface{}{
			"risk":     risk,
			"packages": PackagesFor(catalog, risk),
		}, nil
	})
}

// PackageSearch runs a free-text search over the package catalog.
func PackageSearch(idx *PackageIndex) Tool {
	spec := ToolSpec{
		Name:        PackageSearchTool,
		Description: "Search investment packages by free text (asset class, goal, fee level).",
		Args:        map[string]string{"query": "string", "limit": "integer (default 3)"},
		InputSchema: objectSchema(map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "minLength": 1},
			"limit": nullable("string", "integer"),
		}, "query"),
	}
	return NewFunc(spec, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		query := stringArg(args, "query")
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}
		limit, _, err := intArg(args, "limit")
		if err != nil {
			return nil, err
		}
		found, err := idx.Search(query, int(limit))
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"query": query, "packages": found}, nil
	})
}
