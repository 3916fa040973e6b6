package seed

import (
	"context"
	"testing"

	"github.com/tablecraft/tablecraft-backend/internal/data/repos"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/testutil"
	"github.com/tablecraft/tablecraft-backend/internal/types"
)

func TestCatalogSeedIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	factory := repos.NewFactory(db, testutil.Logger(t), nil, nil)

	if err := Catalog(ctx, factory, testutil.Logger(t)); err != nil {
		t.Fatalf("first seed: %v", err)
	}

	var first int64
	if err := db.Model(&types.Product{}).Count(&first).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if first == 0 {
		t.Fatal("seed created no products")
	}

	if err := Catalog(ctx, factory, testutil.Logger(t)); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var second int64
	if err := db.Model(&types.Product{}).Count(&second).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if second != first {
		t.Fatalf("seed is not idempotent: %d -> %d", first, second)
	}

	var spaghetti int64
	if err := db.Model(&types.Product{}).Where("name = ?", "Spaghetti").Count(&spaghetti).Error; err != nil {
		t.Fatalf("count spaghetti: %v", err)
	}
	if spaghetti != 1 {
		t.Fatalf("expected exactly one Spaghetti row, got %d", spaghetti)
	}
}

func TestLoadCatalogValidates(t *testing.T) {
	spec, err := loadCatalog()
	if err != nil {
		t.Fatalf("loadCatalog: %v", err)
	}
	if spec.Catalog != "base_products" {
		t.Fatalf("catalog name: %s", spec.Catalog)
	}
	if len(spec.Products) == 0 {
		t.Fatal("embedded catalog has no products")
	}

	if err := validateCatalog(&yamlCatalog{Catalog: "x"}); err == nil {
		t.Fatal("empty product list must fail validation")
	}
	if err := validateCatalog(&yamlCatalog{
		Catalog:  "x",
		Products: []yamlProduct{{Name: "A"}, {Name: "A"}},
	}); err == nil {
		t.Fatal("duplicate product names must fail validation")
	}
}
