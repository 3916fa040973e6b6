package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/gorm"
)

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Product {
	tb.Helper()
	p := &types.Product{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedTag(tb testing.TB, ctx context.Context, tx *gorm.DB, key, value, authorID, tagType string) *types.Tag {
	tb.Helper()
	t := &types.Tag{
		ID:       uuid.NewString(),
		Key:      key,
		Value:    value,
		AuthorID: authorID,
		Type:     tagType,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tag: %v", err)
	}
	return t
}
