package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/pkg/db"
)

type InventoryRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewInventoryRepo(conn db.DBTX, logger *zap.Logger) *InventoryRepo {
	return &InventoryRepo{
		db:     conn,
		logger: logger,
	}
}

const inventoryColumns = `id, project_id, name, category, description, unit, quantity, min_quantity,
	unit_cost, supplier, location, last_restocked, added_by, created_at, updated_at`

func scanInventoryItem(row pgx.Row) (*model.InventoryItem, error) {
	var i model.InventoryItem
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Name,
		&i.Category,
		&i.Description,
		&i.Unit,
		&i.Quantity,
		&i.MinQuantity,
		&i.UnitCost,
		&i.Supplier,
		&i.Location,
		&i.LastRestocked,
		&i.AddedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InventoryRepo) Create(ctx context.Context, item *model.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (id, project_id, name, category, description, unit, quantity,
			min_quantity, unit_cost, supplier, location, last_restocked, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.ProjectID,
		item.Name,
		item.Category,
		item.Description,
		item.Unit,
		item.Quantity,
		item.MinQuantity,
		item.UnitCost,
		item.Supplier,
		item.Location,
		item.LastRestocked,
		item.AddedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert inventory item", zap.String("id", item.ID), zap.Error(err))
		return fmt.Errorf("insert inventory item: %w", err)
	}

	r.logger.Info("Inventory item inserted",
		zap.String("id", item.ID),
		zap.String("project_id", item.ProjectID),
	)
	return nil
}

func (r *InventoryRepo) Get(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := scanInventoryItem(r.db.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "inventory item")
	}
	return item, nil
}

func (r *InventoryRepo) GetForUpdate(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := scanInventoryItem(r.db.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "inventory item")
	}
	return item, nil
}

func (r *InventoryRepo) List(ctx context.Context, f model.InventoryFilter) ([]*model.InventoryItem, error) {
	w := &where{}
	switch {
	case f.ProjectID != "":
		w.add("project_id = ?", f.ProjectID)
	case f.ProjectIDs != nil:
		w.add("project_id::text = ANY(?)", f.ProjectIDs)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.LowStock {
		w.add("quantity <= min_quantity")
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		w.add("(name ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}

	rows, err := r.db.Query(ctx, `SELECT `+inventoryColumns+` FROM inventory_items`+w.String()+` ORDER BY name ASC`, w.args...)
	if err != nil {
		r.logger.Error("Failed to list inventory items", zap.Error(err))
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()

	items := []*model.InventoryItem{}
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *InventoryRepo) Update(ctx context.Context, item *model.InventoryItem) error {
	query := `
		UPDATE inventory_items
		SET name = $2, category = $3, description = $4, unit = $5, quantity = $6, min_quantity = $7,
			unit_cost = $8, supplier = $9, location = $10, last_restocked = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.Name,
		item.Category,
		item.Description,
		item.Unit,
		item.Quantity,
		item.MinQuantity,
		item.UnitCost,
		item.Supplier,
		item.Location,
		item.LastRestocked,
	).Scan(&item.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update inventory item", zap.String("id", item.ID), zap.Error(err))
		return notFound(err, "inventory item")
	}
	return nil
}

func (r *InventoryRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete inventory item", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete inventory item: %w", err)
	}
	return affectedOrNotFound(tag, "inventory item")
}
