// Package catalog holds the product catalog aggregate consumed by meal
// ingredients and by the similarity search collaborator.
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

type Product struct {
	aggregates.Base

	Name       string
	Brand      string
	Unit       string
	Categories []string
	CreatedAt  time.Time
}

type ProductAdded struct {
	aggregates.BaseEvent
	ProductName string
}

type ProductRenamed struct {
	aggregates.BaseEvent
	ProductName string
}

type ProductDiscarded struct {
	aggregates.BaseEvent
}

func NewProduct(name, brand, unit string, categories []string) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, aggregates.NewError(aggregates.CodeValidation, "catalog.new", "product name is required", nil)
	}
	p := &Product{
		Name:       name,
		Brand:      strings.TrimSpace(brand),
		Unit:       strings.TrimSpace(unit),
		Categories: dedupe(categories),
		CreatedAt:  time.Now().UTC(),
	}
	p.ID = uuid.NewString()
	p.Apply(ProductAdded{
		BaseEvent:   aggregates.NewBaseEvent("product.added", p.ID),
		ProductName: name,
	})
	return p, nil
}

func (p *Product) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return aggregates.NewError(aggregates.CodeValidation, "catalog.rename", "product name is required", nil)
	}
	p.Name = name
	p.Apply(ProductRenamed{
		BaseEvent:   aggregates.NewBaseEvent("product.renamed", p.ID),
		ProductName: name,
	})
	return nil
}

func (p *Product) DiscardProduct() {
	p.Discard(ProductDiscarded{
		BaseEvent: aggregates.NewBaseEvent("product.discarded", p.ID),
	})
}

// Restore rebuilds a product from storage without emitting events.
func Restore(id string, version int, discarded bool, updatedAt time.Time, name, brand, unit string, categories []string, createdAt time.Time) *Product {
	p := &Product{
		Name:       name,
		Brand:      brand,
		Unit:       unit,
		Categories: categories,
		CreatedAt:  createdAt,
	}
	p.Base.Restore(id, version, discarded, updatedAt)
	return p
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
