// Package catalog binds the product aggregate to the generic repository and
// hosts the similarity-search collaborator used by derived filters.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/catalog"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/gorm"
)

type ProductRepo struct {
	*persistence.Repository[*dm.Product, types.Product]
}

func NewProductRepo(tx *gorm.DB, log *logger.Logger) (*ProductRepo, error) {
	cfg := persistence.Config[*dm.Product, types.Product]{
		Name:   "product",
		Mapper: &Mapper{},
		Filters: []persistence.FilterColumnMapper{
			{
				Model: &types.Product{},
				Columns: map[string]string{
					"id":         "id",
					"name":       "name",
					"brand":      "brand",
					"created_at": "created_at",
					"updated_at": "updated_at",
					"discarded":  "discarded",
				},
			},
			{
				Model:    &types.ProductCategory{},
				Columns:  map[string]string{"category": "category"},
				JoinPath: []persistence.JoinHop{{Model: "product_category", Relationship: "Categories"}},
			},
		},
		Preloads: []string{"Categories"},
	}
	base, err := persistence.NewRepository(tx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &ProductRepo{Repository: base}, nil
}

// Mapper converts between the product aggregate and its rows; category rows
// reconcile by (product_id, category).
type Mapper struct {
	Timeout time.Duration
}

func (mp *Mapper) timeout() time.Duration {
	if mp.Timeout > 0 {
		return mp.Timeout
	}
	return persistence.DefaultReconcileTimeout
}

func (mp *Mapper) DomainToRow(dbc dbctx.Context, p *dm.Product, merge bool) (*types.Product, bool, error) {
	exists := true
	var found types.Product
	err := dbc.DB().Select("id").First(&found, "id = ?", p.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exists = false
		merge = true
	case err != nil:
		return nil, false, persistence.MapStoreError("mapper.product", err)
	}

	catRows := make([]types.ProductCategory, len(p.Categories))
	var tasks []persistence.ChildTask
	for i := range p.Categories {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return reconcileCategory(stx, p.ID, p.Categories[i], &catRows[i])
		})
	}
	if err := persistence.ReconcileChildren(dbc, mp.timeout(), tasks); err != nil {
		return nil, false, err
	}

	row := &types.Product{
		ID:         p.ID,
		Version:    p.AggregateVersion(),
		Discarded:  p.IsDiscarded(),
		Name:       p.Name,
		Brand:      p.Brand,
		Unit:       p.Unit,
		CreatedAt:  p.CreatedAt,
		Categories: catRows,
	}
	if exists {
		err := dbc.DB().Session(&gorm.Session{FullSaveAssociations: true}).Save(row).Error
		if err != nil {
			return nil, false, persistence.MapStoreError("mapper.product", err)
		}
		return row, true, nil
	}
	return row, false, nil
}

func reconcileCategory(stx *persistence.SerialTx, productID, category string, out *types.ProductCategory) error {
	var existing types.ProductCategory
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().Where("product_id = ? AND category = ?", productID, category).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.product.category", err)
	}); err != nil {
		return err
	}
	if notFound {
		*out = types.ProductCategory{ID: uuid.NewString(), ProductID: productID, Category: category}
		return nil
	}
	*out = existing
	return nil
}

func (mp *Mapper) RowToDomain(row *types.Product) (*dm.Product, error) {
	cats := make([]string, 0, len(row.Categories))
	for _, c := range row.Categories {
		cats = append(cats, c.Category)
	}
	return dm.Restore(row.ID, row.Version, row.Discarded, row.UpdatedAt,
		row.Name, row.Brand, row.Unit, cats, row.CreatedAt), nil
}

// ProductSearch is the similarity collaborator: a case-insensitive substring
// match over live product names, returning ids for IN-rewrites.
type ProductSearch struct {
	tx *gorm.DB
}

func NewProductSearch(tx *gorm.DB) *ProductSearch {
	return &ProductSearch{tx: tx}
}

func (s *ProductSearch) Search(ctx context.Context, term string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = persistence.MaxQueryLimit
	}
	var ids []string
	err := s.tx.WithContext(ctx).
		Model(&types.Product{}).
		Where("discarded = ?", false).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%").
		Order("name ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, persistence.MapStoreError("search.product", err)
	}
	return ids, nil
}
