package meals

import (
	"testing"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

func TestNewMealRequiresAuthorAndName(t *testing.T) {
	if _, err := NewMeal("", "Dinner", ""); !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NewMeal("chef", "   ", ""); !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	m, err := NewMeal("chef", "Dinner", " comfort food ")
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}
	if m.AggregateID() == "" {
		t.Fatal("factory must assign identity")
	}
	if m.AggregateVersion() != 1 {
		t.Fatalf("version after creation: %d", m.AggregateVersion())
	}
	if m.Description != "comfort food" {
		t.Fatalf("description not trimmed: %q", m.Description)
	}
}

func TestRecipeNamesAreUniqueWithinMeal(t *testing.T) {
	m, err := NewMeal("chef", "Dinner", "")
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}
	if err := m.AddRecipe(Recipe{Name: "Main"}); err != nil {
		t.Fatalf("AddRecipe: %v", err)
	}
	if err := m.AddRecipe(Recipe{Name: "main"}); !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected case-insensitive duplicate rejection, got %v", err)
	}
	if len(m.Recipes) != 1 {
		t.Fatalf("rejected recipe was appended: %d", len(m.Recipes))
	}
}

func TestRateReplacesPerUser(t *testing.T) {
	m, err := NewMeal("chef", "Dinner", "")
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}

	if err := m.Rate("u1", 0, ""); !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected score bound error, got %v", err)
	}
	if err := m.Rate("u1", 6, ""); !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected score bound error, got %v", err)
	}

	if err := m.Rate("u1", 5, "great"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if err := m.Rate("u1", 2, "changed my mind"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if len(m.Ratings) != 1 {
		t.Fatalf("expected one rating per user, got %d", len(m.Ratings))
	}
	if m.Ratings[0].Score != 2 || m.Ratings[0].Comment != "changed my mind" {
		t.Fatalf("rating not replaced: %+v", m.Ratings[0])
	}
}

func TestDuplicateTagRejected(t *testing.T) {
	m, err := NewMeal("chef", "Dinner", "")
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}
	if err := m.AddTag("cuisine", "italian", "chef"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if err := m.AddTag("cuisine", "italian", "chef"); !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected duplicate tag rejection, got %v", err)
	}
	// Same pair from another author is a distinct tag.
	if err := m.AddTag("cuisine", "italian", "sous_chef"); err != nil {
		t.Fatalf("AddTag distinct author: %v", err)
	}
}

func TestDiscardMealEmitsAndMarks(t *testing.T) {
	m, err := NewMeal("chef", "Dinner", "")
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}
	before := m.AggregateVersion()
	m.DiscardMeal()

	if !m.IsDiscarded() {
		t.Fatal("expected discarded")
	}
	if m.AggregateVersion() != before+1 {
		t.Fatalf("discard must bump version once: %d -> %d", before, m.AggregateVersion())
	}
	events := m.DrainEvents()
	if events[len(events)-1].EventName() != "meal.discarded" {
		t.Fatalf("last event: %s", events[len(events)-1].EventName())
	}
}
