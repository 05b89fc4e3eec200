package tools

import "strings"

// Risk categories used by client profiles and the package catalog.
const (
	RiskLow    = "usor"
	RiskMedium = "mediu"
	RiskHigh   = "ridicat"
)

var riskSynonyms = map[string]string{
	"usor":         RiskLow,
	"ușor":         RiskLow,
	"low":          RiskLow,
	"conservative": RiskLow,
	"mediu":        RiskMedium,
	"medium":       RiskMedium,
	"balanced":     RiskMedium,
	"moderate":     RiskMedium,
	"ridicat":      RiskHigh,
	"înalt":        RiskHigh,
	"high":         RiskHigh,
	"aggressive":   RiskHigh,
	"growth":       RiskHigh,
}

// NormalizeRisk maps free-form risk labels onto the three catalog categories.
// Empty and unknown labels map to RiskMedium.
func NormalizeRisk(value string) string {
	if r, ok := riskSynonyms[strings.ToLower(strings.TrimSpace(value))]; ok {
		return r
	}
	return RiskMedium
}

// Package is a curated investment package.
type Package struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Risk        string         `json:"risk"`
	Mix         map[string]int `json:"mix"`
	Fees        float64        `json:"fees"`
	Description string         `json:"description"`
}

// DefaultPackages is the built-in catalog.
func DefaultPackages() []Package {
	return []Package{
		{
			ID:          "safety-net",
			Name:        "Safety Net (Usor)",
			Risk:        RiskLow,
			Mix:         map[string]int{"Bonds": 80, "Equities": 15, "Cash": 5},
			Fees:        0.35,
			Description: "Capital preservation with government bonds and a small equity sleeve.",
		},
		{
			ID:          "core-balanced",
			Name:        "Core Balanced (Mediu)",
			Risk:        RiskMedium,
			Mix:         map[string]int{"Bonds": 50, "Equities": 45, "Cash": 5},
			Fees:        0.40,
			Description: "Balanced growth and income split between bonds and diversified equities.",
		},
		{
			ID:          "equity-growth",
			Name:        "Equity Growth (Ridicat)",
			Risk:        RiskHigh,
			Mix:         map[string]int{"Bonds": 15, "Equities": 80, "Cash": 5},
			Fees:        0.45,
			Description: "Long-horizon growth through global equities, accepting higher volatility.",
		},
	}
}

// PackagesFor returns the packages of the given category, falling back to
// RiskMedium when the category has none.
func PackagesFor(catalog []Package, risk string) []Package {
	var out []Package
	for _, p := range catalog {
		if p.Risk == risk {
			out = append(out, p)
		}
	}
	if len(out) == 0 && risk != RiskMedium {
		return PackagesFor(catalog, RiskMedium)
	}
	return out
}
