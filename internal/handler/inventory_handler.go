package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/internal/service"
)

type InventoryHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewInventoryHandler(inventory *service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, logger: logger}
}

// ListByProject GET /api/inventory/project/:projectId?category=&lowStock=&search=
func (h *InventoryHandler) ListByProject(c *gin.Context) {
	q := service.InventoryQuery{
		Category: model.InventoryCategory(c.Query("category")),
		LowStock: queryBool(c, "lowStock"),
		Search:   c.Query("search"),
	}
	items, err := h.inventory.List(c.Request.Context(), actorOf(c), c.Param("projectId"), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, items)
}

// LowStock GET /api/inventory/alerts/low-stock
func (h *InventoryHandler) LowStock(c *gin.Context) {
	items, err := h.inventory.LowStockAlerts(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, items)
}

func (h *InventoryHandler) Get(c *gin.Context) {
	item, err := h.inventory.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *InventoryHandler) Create(c *gin.Context) {
	var req service.CreateItemInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	item, err := h.inventory.Create(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

func (h *InventoryHandler) Update(c *gin.Context) {
	var req service.UpdateItemInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	item, err := h.inventory.Update(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *InventoryHandler) Delete(c *gin.Context) {
	if err := h.inventory.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, "inventory item deleted")
}

// AdjustQuantity PUT /api/inventory/:id/quantity，body {"operation": "add"|"subtract"|"set", "quantity": n}
func (h *InventoryHandler) AdjustQuantity(c *gin.Context) {
	var req service.AdjustQuantityInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	item, err := h.inventory.AdjustQuantity(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, item)
}
