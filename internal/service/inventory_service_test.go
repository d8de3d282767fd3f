package service

import (
	"encoding/json"
	"errors"
	"testing"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
)

func (f *fixture) item(t *testing.T, projectID string, qty, minQty float64) *model.InventoryItem {
	t.Helper()
	item, err := f.inventory.Create(f.ctx, contractor, CreateItemInput{
		ProjectID:   projectID,
		Name:        "Portland cement",
		Category:    model.CategoryConcrete,
		Unit:        "bag",
		Quantity:    qty,
		MinQuantity: minQty,
		UnitCost:    12.5,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func adjust(op model.QuantityOperation, qty float64) AdjustQuantityInput {
	return AdjustQuantityInput{Operation: op, Quantity: &qty}
}

func TestAdjustQuantity_LowStockAlertOnCrossing(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	item := f.item(t, p.ID, 10, 5)

	steps := []struct {
		amount float64
		want   float64
	}{
		{4, 6},
		{2, 4}, // 跌破
		{1, 3}, // 已是低库存，不重复告警
	}
	for _, s := range steps {
		got, err := f.inventory.AdjustQuantity(f.ctx, contractor, item.ID, adjust(model.QuantitySubtract, s.amount))
		if err != nil {
			t.Fatalf("subtract %v: %v", s.amount, err)
		}
		if got.Quantity != s.want {
			t.Errorf("expected quantity %v, got %v", s.want, got.Quantity)
		}
	}

	events := f.store.EventsByRoutingKey(mqcontracts.RoutingInventoryLowStock)
	if len(events) != 1 {
		t.Fatalf("expected exactly one low stock event, got %d", len(events))
	}
	var payload mqcontracts.InventoryLowStockPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ItemID != item.ID || payload.Quantity != 4 || payload.MinQuantity != 5 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	// 补货后再次跌破会重新告警
	if _, err := f.inventory.AdjustQuantity(f.ctx, contractor, item.ID, adjust(model.QuantityAdd, 10)); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := f.inventory.AdjustQuantity(f.ctx, contractor, item.ID, adjust(model.QuantitySet, 1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if events := f.store.EventsByRoutingKey(mqcontracts.RoutingInventoryLowStock); len(events) != 2 {
		t.Errorf("expected a second alert after restock, got %d", len(events))
	}
}

func TestAdjustQuantity_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	item := f.item(t, p.ID, 3, 1)

	_, err := f.inventory.AdjustQuantity(f.ctx, contractor, item.ID, adjust(model.QuantitySubtract, 5))
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	got, err := f.inventory.Get(f.ctx, client, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Quantity != 3 {
		t.Errorf("quantity must stay 3, got %v", got.Quantity)
	}
}

func TestAdjustQuantity_AddStampsRestock(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	item := f.item(t, p.ID, 3, 1)

	got, err := f.inventory.AdjustQuantity(f.ctx, contractor, item.ID, adjust(model.QuantityAdd, 2))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.LastRestocked == nil || !got.LastRestocked.Equal(fixedNow) {
		t.Errorf("expected last_restocked %v, got %v", fixedNow, got.LastRestocked)
	}
}

func TestAdjustQuantity_ClientForbidden(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	item := f.item(t, p.ID, 3, 1)

	_, err := f.inventory.AdjustQuantity(f.ctx, client, item.ID, adjust(model.QuantityAdd, 2))
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestLowStockAlerts_ScopedToMembers(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.item(t, p.ID, 2, 5)
	f.item(t, p.ID, 20, 5)

	got, err := f.inventory.LowStockAlerts(f.ctx, architect)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(got) != 1 || got[0].Quantity != 2 {
		t.Errorf("expected one low stock item, got %d", len(got))
	}

	got, err = f.inventory.LowStockAlerts(f.ctx, outsider)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("outsider must see nothing, got %d", len(got))
	}
}

func TestListInventory_Filters(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.item(t, p.ID, 2, 5)
	if _, err := f.inventory.Create(f.ctx, contractor, CreateItemInput{
		ProjectID: p.ID,
		Name:      "Rebar 12mm",
		Category:  model.CategorySteel,
		Unit:      "ton",
		Quantity:  8,
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	got, err := f.inventory.List(f.ctx, client, p.ID, InventoryQuery{Category: model.CategorySteel})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Rebar 12mm" {
		t.Errorf("expected rebar only, got %d items", len(got))
	}

	got, err = f.inventory.List(f.ctx, client, p.ID, InventoryQuery{Search: "CEMENT"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected case-insensitive search hit, got %d", len(got))
	}
}
