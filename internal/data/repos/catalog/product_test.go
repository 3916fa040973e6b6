package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/testutil"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/catalog"
	"github.com/tablecraft/tablecraft-backend/internal/types"
)

func TestProductRepoRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo, err := NewProductRepo(tx, testutil.Logger(t))
	if err != nil {
		t.Fatalf("NewProductRepo: %v", err)
	}

	p, err := dm.NewProduct("Heritage Flour", "Mill & Co", "g", []string{"baking", "pantry"})
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	if err := repo.Persist(ctx, p); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	read, err := NewProductRepo(tx, testutil.Logger(t))
	if err != nil {
		t.Fatalf("NewProductRepo: %v", err)
	}
	got, err := read.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Heritage Flour" || got.Brand != "Mill & Co" || got.Unit != "g" {
		t.Fatalf("fields lost: %+v", got)
	}
	if len(got.Categories) != 2 {
		t.Fatalf("categories lost: %v", got.Categories)
	}
}

func TestProductCategoryReconcileKeepsRows(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo, err := NewProductRepo(tx, testutil.Logger(t))
	if err != nil {
		t.Fatalf("NewProductRepo: %v", err)
	}

	p, err := dm.NewProduct("Smoked Paprika", "", "g", []string{"spices"})
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	if err := repo.Persist(ctx, p); err != nil {
		t.Fatalf("first persist: %v", err)
	}

	var before types.ProductCategory
	if err := tx.Where("product_id = ?", p.ID).First(&before).Error; err != nil {
		t.Fatalf("load category: %v", err)
	}

	if err := repo.Persist(ctx, p); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	var cats []types.ProductCategory
	if err := tx.Where("product_id = ?", p.ID).Find(&cats).Error; err != nil {
		t.Fatalf("load categories: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("expected 1 category row, got %d", len(cats))
	}
	if cats[0].ID != before.ID {
		t.Fatalf("category row replaced: %s -> %s", before.ID, cats[0].ID)
	}
}

func TestProductCategoryFilter(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo, err := NewProductRepo(tx, testutil.Logger(t))
	if err != nil {
		t.Fatalf("NewProductRepo: %v", err)
	}

	marker := "cat_" + uuid.NewString()[:8]
	spice, err := dm.NewProduct("Cumin "+marker, "", "g", []string{marker, "spices"})
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	grain, err := dm.NewProduct("Farro "+marker, "", "g", []string{"grains"})
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	for _, p := range []*dm.Product{spice, grain} {
		if err := repo.Persist(ctx, p); err != nil {
			t.Fatalf("Persist: %v", err)
		}
	}

	got, err := repo.Query(ctx, map[string]any{"category": marker})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].AggregateID() != spice.ID {
		t.Fatalf("expected the spice product, got %d", len(got))
	}
}

func TestProductRepoRejectsTagFilters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo, err := NewProductRepo(tx, testutil.Logger(t))
	if err != nil {
		t.Fatalf("NewProductRepo: %v", err)
	}

	// Products carry no tag relationship, so tag keys are disallowed the same
	// way an undeclared column is.
	for _, key := range repo.AllowedFilterKeys() {
		if key == "tags" || key == "tags_not_exists" {
			t.Fatalf("allowed keys must not include %q", key)
		}
	}
	for _, key := range []string{"tags", "tags_not_exists"} {
		_, err := repo.Query(ctx, map[string]any{
			key: [][]string{{"cuisine", "italian", "u1"}},
		})
		if !aggregates.IsCode(err, aggregates.CodeFilterNotAllowed) {
			t.Fatalf("%s: expected filter_not_allowed, got %v", key, err)
		}
	}
}

func TestProductSearchMatchesSubstringsCaseInsensitively(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	marker := uuid.NewString()[:8]
	a := testutil.SeedProduct(t, ctx, tx, "Arborio Rice "+marker)
	b := testutil.SeedProduct(t, ctx, tx, "Basmati RICE "+marker)
	testutil.SeedProduct(t, ctx, tx, "Couscous "+marker)

	ids, err := NewProductSearch(tx).Search(ctx, "rice "+marker, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(ids))
	}
	// Ordered by name: Arborio before Basmati.
	if ids[0] != a.ID || ids[1] != b.ID {
		t.Fatalf("unexpected order: %v", ids)
	}

	ids, err = NewProductSearch(tx).Search(ctx, "no such product", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no matches, got %d", len(ids))
	}
}
