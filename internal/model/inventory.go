package model

import (
	"encoding/json"
	"strings"
	"time"

	"buildtrack/pkg/apperr"
)

type InventoryCategory string

const (
	CategoryConcrete   InventoryCategory = "concrete"
	CategorySteel      InventoryCategory = "steel"
	CategoryWood       InventoryCategory = "wood"
	CategoryElectrical InventoryCategory = "electrical"
	CategoryPlumbing   InventoryCategory = "plumbing"
	CategoryFinishing  InventoryCategory = "finishing"
	CategoryTools      InventoryCategory = "tools"
	CategorySafety     InventoryCategory = "safety"
	CategoryOther      InventoryCategory = "other"
)

func (c InventoryCategory) Valid() bool {
	switch c {
	case CategoryConcrete, CategorySteel, CategoryWood, CategoryElectrical, CategoryPlumbing,
		CategoryFinishing, CategoryTools, CategorySafety, CategoryOther:
		return true
	}
	return false
}

type Supplier struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
}

type InventoryItem struct {
	ID            string            `json:"id"`
	ProjectID     string            `json:"project_id"`
	Name          string            `json:"name"`
	Category      InventoryCategory `json:"category"`
	Description   string            `json:"description"`
	Unit          string            `json:"unit"`
	Quantity      float64           `json:"quantity"`
	MinQuantity   float64           `json:"min_quantity"`
	UnitCost      float64           `json:"unit_cost"`
	Supplier      Supplier          `json:"supplier"`
	Location      string            `json:"location"`
	LastRestocked *time.Time        `json:"last_restocked,omitempty"`
	AddedBy       string            `json:"added_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (i *InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.MinQuantity
}

func (i *InventoryItem) TotalValue() float64 {
	return i.Quantity * i.UnitCost
}

// MarshalJSON 附带派生字段 is_low_stock 与 total_value
func (i InventoryItem) MarshalJSON() ([]byte, error) {
	type alias InventoryItem
	return json.Marshal(struct {
		alias
		IsLowStock bool    `json:"is_low_stock"`
		TotalValue float64 `json:"total_value"`
	}{
		alias:      alias(i),
		IsLowStock: i.IsLowStock(),
		TotalValue: i.TotalValue(),
	})
}

func (i *InventoryItem) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	i.Unit = strings.TrimSpace(i.Unit)
	if i.Name == "" {
		return apperr.Validation("item name is required")
	}
	if i.Unit == "" {
		return apperr.Validation("unit is required")
	}
	if i.Category == "" {
		i.Category = CategoryOther
	}
	if !i.Category.Valid() {
		return apperr.Validation("invalid inventory category %q", i.Category)
	}
	if i.Quantity < 0 || i.MinQuantity < 0 || i.UnitCost < 0 {
		return apperr.Validation("quantity, min_quantity and unit_cost must not be negative")
	}
	return nil
}

type QuantityOperation string

const (
	QuantityAdd      QuantityOperation = "add"
	QuantitySubtract QuantityOperation = "subtract"
	QuantitySet      QuantityOperation = "set"
)

// ApplyQuantity 按操作调整库存，add 会刷新 LastRestocked
func (i *InventoryItem) ApplyQuantity(op QuantityOperation, amount float64, now time.Time) error {
	if amount < 0 {
		return apperr.Validation("quantity must not be negative")
	}
	switch op {
	case QuantityAdd:
		i.Quantity += amount
		i.LastRestocked = &now
	case QuantitySubtract:
		if amount > i.Quantity {
			return apperr.ValidationCode(apperr.CodeInsufficientStock, "insufficient stock for this operation")
		}
		i.Quantity -= amount
	case QuantitySet:
		i.Quantity = amount
	default:
		return apperr.Validation("invalid operation %q, expected add, subtract or set", op)
	}
	return nil
}

type InventoryFilter struct {
	ProjectID  string
	ProjectIDs []string // 为空且 ProjectID 为空表示不限（管理员）
	Category   InventoryCategory
	LowStock   bool
	Search     string
}
