package tools

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"
)

// PackageIndex is an in-memory full-text index over the package catalog.
type PackageIndex struct {
	index    bleve.Index
	packages map[string]Package
}

// NewPackageIndex indexes name, risk, description and asset classes of each package.
func NewPackageIndex(catalog []Package) (*PackageIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("package index: %w", err)
	}
	pi := &PackageIndex{index: idx, packages: make(map[string]Package, len(catalog))}
	for _, p := range catalog {
		assets := make([]string, 0, len(p.Mix))
		for asset := range p.Mix {
			assets = append(assets, asset)
		}
		doc := map[string]interface{}{
			"name":        p.Name,
			"risk":        p.Risk,
			"description": p.Description,
			"assets":      strings.Join(assets, " "),
		}
		if err := idx.Index(p.ID, doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index package %s: %w", p.ID, err)
		}
		pi.packages[p.ID] = p
	}
	return pi, nil
}

// Search returns up to limit packages matching text, best first.
func (pi *PackageIndex) Search(text string, limit int) ([]Package, error) {
	if limit <= 0 {
		limit = 3
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(text), limit, 0, false)
	res, err := pi.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search packages: %w", err)
	}
	out := make([]Package, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if p, ok := pi.packages[hit.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Close releases the index.
func (pi *PackageIndex) Close() error {
	return pi.index.Close()
}
