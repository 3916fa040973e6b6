package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/testutil"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	dmcatalog "github.com/tablecraft/tablecraft-backend/internal/domain/catalog"
	dmmeals "github.com/tablecraft/tablecraft-backend/internal/domain/meals"
	"github.com/tablecraft/tablecraft-backend/internal/types"
)

type recordingDispatcher struct {
	events []aggregates.Event
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, events []aggregates.Event) error {
	d.events = append(d.events, events...)
	return nil
}

func TestFactoryWithinTxCommitsAndCollectsEvents(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	dispatcher := &recordingDispatcher{}
	factory := NewFactory(db, testutil.Logger(t), nil, dispatcher)

	chef := "chef_" + uuid.NewString()[:8]
	var mealID, productID string

	events, err := factory.WithinTx(ctx, func(uow *UnitOfWork) error {
		// Created in product-then-meal order; collection order follows repo
		// registration, so meal events still come out first.
		product, err := dmcatalog.NewProduct("Saffron "+chef, "", "g", nil)
		if err != nil {
			return err
		}
		uow.Products.Add(product)
		productID = product.AggregateID()

		meal, err := dmmeals.NewMeal(chef, "Saffron Risotto", "")
		if err != nil {
			return err
		}
		if err := meal.Rename("Golden Risotto"); err != nil {
			return err
		}
		uow.Meals.Add(meal)
		mealID = meal.AggregateID()
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	want := []string{"meal.created", "meal.renamed", "product.added"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.EventName() != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, e.EventName(), want[i])
		}
	}
	if len(dispatcher.events) != len(want) {
		t.Fatalf("dispatcher received %d events, want %d", len(dispatcher.events), len(want))
	}

	var count int64
	if err := db.Model(&types.Meal{}).Where("id = ?", mealID).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("meal not committed: err=%v count=%d", err, count)
	}
	if err := db.Model(&types.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("product not committed: err=%v count=%d", err, count)
	}
}

func TestFactoryWithinTxRollsBackOnError(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	factory := NewFactory(db, testutil.Logger(t), nil, nil)

	chef := "chef_" + uuid.NewString()[:8]
	var mealID string

	_, err := factory.WithinTx(ctx, func(uow *UnitOfWork) error {
		meal, err := dmmeals.NewMeal(chef, "Doomed Dinner", "")
		if err != nil {
			return err
		}
		uow.Meals.Add(meal)
		mealID = meal.AggregateID()
		if err := uow.Meals.Flush(ctx); err != nil {
			return err
		}
		return aggregates.NewError(aggregates.CodeValidation, "test.withintx", "abort", nil)
	})
	if !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	var count int64
	if err := db.Model(&types.Meal{}).Where("id = ?", mealID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled back meal leaked, count=%d", count)
	}
}

func TestFactoryBeginWiresRepositoriesToOneTransaction(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	factory := NewFactory(db, testutil.Logger(t), nil, nil)
	uow, err := factory.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	chef := "chef_" + uuid.NewString()[:8]
	meal, err := dmmeals.NewMeal(chef, "Shared Tx Meal", "")
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}
	if err := uow.Meals.Persist(ctx, meal); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	// The repositories share the unit of work's transaction.
	got, err := uow.Meals.Query(ctx, map[string]any{"author_id": chef})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 meal inside tx, got %d", len(got))
	}

	if err := uow.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	var count int64
	if err := db.Model(&types.Meal{}).Where("id = ?", meal.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled back meal leaked, count=%d", count)
	}
}
