package booking

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestSynchronizePropagatesPrimaryValues(t *testing.T) {
	ship := uuid.New()
	items := []LineItem{
		{Adults: 2, Children: 0, Deposit: 30, AdultPrice: 50, ShipID: &ship},
		{Adults: 5, Children: 3, Deposit: 99, AdultPrice: 40},
	}
	out := Synchronize(items, 0)

	second := out[1]
	if second.Adults != 2 || second.Children != 0 {
		t.Fatalf("expected passenger counts 2/0, got %d/%d", second.Adults, second.Children)
	}
	if second.TotalPax != 2 {
		t.Fatalf("expected total pax 2, got %d", second.TotalPax)
	}
	if second.Deposit != 30 {
		t.Fatalf("expected replicated deposit 30, got %d", second.Deposit)
	}
	if second.ShipID == nil || *second.ShipID != ship {
		t.Fatalf("expected ship assignment to propagate")
	}
	// price recomputed from the line's own per-person prices
	if second.Price != 80 {
		t.Fatalf("expected price 80, got %d", second.Price)
	}
	if second.RemainingBalance != 50 {
		t.Fatalf("expected remaining 50, got %d", second.RemainingBalance)
	}
}

func TestSynchronizeIdempotent(t *testing.T) {
	items := []LineItem{
		{Adults: 2, Children: 1, Deposit: 40, AdultPrice: 50, ChildrenPrice: 20},
		{Adults: 1, Children: 0, AdultPrice: 30, ChildrenPrice: 15},
		{Adults: 0, Children: 0, CatalogPrice: 60},
	}
	once := Synchronize(items, 0)
	twice := Synchronize(once, 0)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected synchronize to be idempotent\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestSynchronizeFallsBackToCatalogPrice(t *testing.T) {
	items := []LineItem{
		{Adults: 2, Children: 1, AdultPrice: 50, ChildrenPrice: 20},
		{CatalogPrice: 95},
	}
	out := Synchronize(items, 0)
	if out[1].Price != 95 {
		t.Fatalf("expected catalog fallback price 95, got %d", out[1].Price)
	}
}

func TestSynchronizeDoesNotMutateInput(t *testing.T) {
	items := []LineItem{
		{Adults: 2, Deposit: 10, AdultPrice: 50},
		{Adults: 9, Deposit: 99, AdultPrice: 40},
	}
	_ = Synchronize(items, 0)
	if items[1].Adults != 9 || items[1].Deposit != 99 {
		t.Fatalf("expected input slice to stay untouched, got %+v", items[1])
	}
}

func TestSynchronizeOutOfRangePrimaryDefaultsToFirst(t *testing.T) {
	items := []LineItem{
		{Adults: 1, AdultPrice: 10},
		{Adults: 2, AdultPrice: 10},
	}
	out := Synchronize(items, 7)
	if out[1].Adults != 1 {
		t.Fatalf("expected primary index fallback to 0, got adults=%d", out[1].Adults)
	}
}
