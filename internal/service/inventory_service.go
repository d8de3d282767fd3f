package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/metrics"
	"buildtrack/pkg/rbac"
)

type InventoryService struct {
	store  repository.Store
	access *Access
	now    func() time.Time
	logger *zap.Logger
}

func NewInventoryService(store repository.Store, access *Access, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		store:  store,
		access: access,
		now:    utcNow,
		logger: logger,
	}
}

type CreateItemInput struct {
	ProjectID   string                  `json:"project_id" binding:"required"`
	Name        string                  `json:"name" binding:"required"`
	Category    model.InventoryCategory `json:"category"`
	Description string                  `json:"description"`
	Unit        string                  `json:"unit" binding:"required"`
	Quantity    float64                 `json:"quantity"`
	MinQuantity float64                 `json:"min_quantity"`
	UnitCost    float64                 `json:"unit_cost"`
	Supplier    model.Supplier          `json:"supplier"`
	Location    string                  `json:"location"`
}

type UpdateItemInput struct {
	Name        *string                  `json:"name"`
	Category    *model.InventoryCategory `json:"category"`
	Description *string                  `json:"description"`
	Unit        *string                  `json:"unit"`
	Quantity    *float64                 `json:"quantity"`
	MinQuantity *float64                 `json:"min_quantity"`
	UnitCost    *float64                 `json:"unit_cost"`
	Supplier    *model.Supplier          `json:"supplier"`
	Location    *string                  `json:"location"`
}

type AdjustQuantityInput struct {
	Operation model.QuantityOperation `json:"operation" binding:"required"`
	Quantity  *float64                `json:"quantity" binding:"required"`
}

type InventoryQuery struct {
	Category model.InventoryCategory
	LowStock bool
	Search   string
}

func (s *InventoryService) Create(ctx context.Context, actor model.Actor, in CreateItemInput) (*model.InventoryItem, error) {
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionCreate); err != nil {
		return nil, err
	}

	item := &model.InventoryItem{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Unit:        in.Unit,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
		UnitCost:    in.UnitCost,
		Supplier:    in.Supplier,
		Location:    in.Location,
		AddedBy:     actor.UserID,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if _, err := s.access.Project(ctx, r.Projects(), actor, item.ProjectID); err != nil {
			return err
		}
		return r.Inventory().Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Inventory item created",
		zap.String("item_id", item.ID),
		zap.String("project_id", item.ProjectID),
	)
	return item, nil
}

func (s *InventoryService) List(ctx context.Context, actor model.Actor, projectID string, q InventoryQuery) ([]*model.InventoryItem, error) {
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, projectID); err != nil {
		return nil, err
	}
	return s.store.Inventory().List(ctx, model.InventoryFilter{
		ProjectID: projectID,
		Category:  q.Category,
		LowStock:  q.LowStock,
		Search:    q.Search,
	})
}

// LowStockAlerts 调用者所在项目中低于最低库存的物料
func (s *InventoryService) LowStockAlerts(ctx context.Context, actor model.Actor) ([]*model.InventoryItem, error) {
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionRead); err != nil {
		return nil, err
	}
	ids, err := memberProjectIDs(ctx, s.store.Projects(), actor)
	if err != nil {
		return nil, err
	}
	if ids != nil && len(ids) == 0 {
		return []*model.InventoryItem{}, nil
	}
	return s.store.Inventory().List(ctx, model.InventoryFilter{ProjectIDs: ids, LowStock: true})
}

func (s *InventoryService) Get(ctx context.Context, actor model.Actor, itemID string) (*model.InventoryItem, error) {
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionRead); err != nil {
		return nil, err
	}
	item, err := s.store.Inventory().Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, item.ProjectID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *InventoryService) Update(ctx context.Context, actor model.Actor, itemID string, in UpdateItemInput) (*model.InventoryItem, error) {
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionUpdate); err != nil {
		return nil, err
	}

	var out *model.InventoryItem
	var alerted bool
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		item, err := r.Inventory().GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, item.ProjectID); err != nil {
			return err
		}

		wasLow := item.IsLowStock()
		applyItemUpdate(item, in)
		if err := item.Validate(); err != nil {
			return err
		}
		if err := r.Inventory().Update(ctx, item); err != nil {
			return err
		}
		if alerted, err = s.alertIfCrossed(ctx, r, wasLow, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alerted {
		metrics.LowStockAlerts.Inc()
	}
	return out, nil
}

func applyItemUpdate(item *model.InventoryItem, in UpdateItemInput) {
	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.Category != nil {
		item.Category = *in.Category
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Unit != nil {
		item.Unit = *in.Unit
	}
	if in.Quantity != nil {
		item.Quantity = *in.Quantity
	}
	if in.MinQuantity != nil {
		item.MinQuantity = *in.MinQuantity
	}
	if in.UnitCost != nil {
		item.UnitCost = *in.UnitCost
	}
	if in.Supplier != nil {
		item.Supplier = *in.Supplier
	}
	if in.Location != nil {
		item.Location = *in.Location
	}
}

func (s *InventoryService) Delete(ctx context.Context, actor model.Actor, itemID string) error {
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionDelete); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(r repository.Repos) error {
		item, err := r.Inventory().GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, item.ProjectID); err != nil {
			return err
		}
		return r.Inventory().Delete(ctx, itemID)
	})
}

// AdjustQuantity add / subtract / set；跌破最低库存时发出 inventory.low_stock
func (s *InventoryService) AdjustQuantity(ctx context.Context, actor model.Actor, itemID string, in AdjustQuantityInput) (*model.InventoryItem, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := s.access.Require(actor, rbac.ResourceInventory, rbac.ActionAdjust); err != nil {
		return nil, err
	}

	var amount float64
	if in.Quantity != nil {
		amount = *in.Quantity
	}

	var out *model.InventoryItem
	var alerted bool
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		item, err := r.Inventory().GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, item.ProjectID); err != nil {
			return err
		}

		wasLow := item.IsLowStock()
		if err := item.ApplyQuantity(in.Operation, amount, s.now()); err != nil {
			return err
		}
		if err := r.Inventory().Update(ctx, item); err != nil {
			return err
		}
		if alerted, err = s.alertIfCrossed(ctx, r, wasLow, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alerted {
		metrics.LowStockAlerts.Inc()
	}

	log.Info("Inventory quantity adjusted",
		zap.String("item_id", itemID),
		zap.String("operation", string(in.Operation)),
		zap.Float64("amount", amount),
		zap.Float64("quantity", out.Quantity),
	)
	return out, nil
}

// alertIfCrossed 只在由正常变为低库存时发事件
func (s *InventoryService) alertIfCrossed(ctx context.Context, r repository.Repos, wasLow bool, item *model.InventoryItem) (bool, error) {
	if wasLow || !item.IsLowStock() {
		return false, nil
	}
	payload := &mqcontracts.InventoryLowStockPayload{
		ItemID:      item.ID,
		ProjectID:   item.ProjectID,
		Name:        item.Name,
		Unit:        item.Unit,
		Quantity:    item.Quantity,
		MinQuantity: item.MinQuantity,
	}
	if err := enqueue(ctx, r, aggregateInventory, item.ID, mqcontracts.RoutingInventoryLowStock, payload); err != nil {
		return false, err
	}
	return true, nil
}
