// Admin HTTP handlers.
//
// This file exposes the shopkeeper-facing REST endpoints:
//   - GET    /admin/inventory               (list all fish)
//   - POST   /admin/inventory               (add a fish)
//   - PUT    /admin/inventory/:id           (update price / availability)
//   - PUT    /admin/inventory/price         (update price by fish name)
//   - GET    /admin/orders                  (list orders, paginated)
//   - PUT    /admin/orders/:id/status       (update status, optionally notify)
//
// Handlers are transport-thin: they validate input, call the repo layer, and
// translate results into HTTP responses. Authentication (basic auth) is
// applied at the router level.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/channel/whatsapp"
	"github.com/maachbazar/maachbazar-bot/internal/domain"
	"github.com/maachbazar/maachbazar-bot/internal/http/middleware"
	"github.com/maachbazar/maachbazar-bot/internal/repo"
	"github.com/maachbazar/maachbazar-bot/internal/utils"
)

// SessionChecker reports whether a user has an active conversation window.
type SessionChecker interface {
	IsActive(userID string) bool
}

// Notifier delivers order updates to customers. Free-text messages are only
// deliverable inside the 24-hour service window; outside it the channel
// requires a pre-approved template.
type Notifier interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendTemplate(ctx context.Context, to, name, languageCode string, components []whatsapp.TemplateComponent) (string, error)
}

// AdminHandlers groups the shopkeeper endpoints.
type AdminHandlers struct {
	db       *gorm.DB
	sessions SessionChecker
	notifier Notifier
}

// NewAdmin constructs AdminHandlers bound to the given database, session
// tracker, and outbound channel.
func NewAdmin(db *gorm.DB, sessions SessionChecker, notifier Notifier) *AdminHandlers {
	return &AdminHandlers{db: db, sessions: sessions, notifier: notifier}
}

//
// DTOs
//

// AddInventoryRequest is the JSON payload for adding a fish to the catalog.
type AddInventoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Price       int    `json:"price" binding:"required,gt=0"`
	IsAvailable *bool  `json:"is_available"`
}

// UpdateInventoryRequest is the JSON payload for updating a catalog entry.
type UpdateInventoryRequest struct {
	Price       int   `json:"price" binding:"required,gt=0"`
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// UpdatePriceRequest is the JSON payload for updating a price by fish name.
type UpdatePriceRequest struct {
	Name  string `json:"name" binding:"required"`
	Price int    `json:"price" binding:"required,gt=0"`
}

// UpdateOrderStatusRequest is the JSON payload for changing an order status.
// When Notify is true the customer is informed over WhatsApp.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notify bool   `json:"notify"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Inventory
//

// ListInventory returns the full fish catalog, including unavailable entries.
func (h *AdminHandlers) ListInventory(c *gin.Context) {
	items, err := repo.ListInventory(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list inventory")
		return
	}
	ok(c, http.StatusOK, gin.H{"inventory": items})
}

// AddInventory adds a new fish to the catalog. Names are normalized to title
// case so "rohu" and "Rohu" are the same entry.
func (h *AdminHandlers) AddInventory(c *gin.Context) {
	var req AddInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and positive price required")
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	item, err := repo.AddInventoryItem(c.Request.Context(), h.db, req.Name, req.Price, available)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			fail(c, http.StatusConflict, ErrCodeConflict, "fish already in catalog")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not add inventory item")
		return
	}
	ok(c, http.StatusCreated, item)
}

// UpdateInventory updates price and availability of a catalog entry by id.
func (h *AdminHandlers) UpdateInventory(c *gin.Context) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "inventory id must be a positive integer")
		return
	}

	var req UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "positive price and is_available required")
		return
	}

	if err := repo.UpdateInventoryItem(c.Request.Context(), h.db, uint(id), req.Price, *req.IsAvailable); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "inventory item not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not update inventory item")
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePrice updates the price of a fish identified by name.
func (h *AdminHandlers) UpdatePrice(c *gin.Context) {
	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and positive price required")
		return
	}

	if err := repo.UpdatePriceByName(c.Request.Context(), h.db, req.Name, req.Price); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "fish not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not update price")
		return
	}
	c.Status(http.StatusNoContent)
}

//
// Orders
//

// ListOrders returns a page of orders, newest first, items preloaded.
func (h *AdminHandlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountOrders(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not count orders")
		return
	}
	orders, err := repo.ListOrdersPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list orders")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListOrdersResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// UpdateOrderStatus changes an order's status and optionally notifies the
// customer. Inside the 24-hour service window the notification is a free-text
// message; outside it the order_update template is used instead.
func (h *AdminHandlers) UpdateOrderStatus(c *gin.Context) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a positive integer")
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusRejected:
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be pending, confirmed, or rejected")
		return
	}

	order, err := repo.UpdateOrderStatus(c.Request.Context(), h.db, uint(id), status)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not update order status")
		return
	}

	notified := false
	if req.Notify {
		if err := h.notifyCustomer(c.Request.Context(), order); err != nil {
			middleware.LoggerFrom(c).Error().Err(err).
				Uint("order_id", order.ID).
				Msg("order status notification failed")
			fail(c, http.StatusBadGateway, ErrCodeNotifyFailed, "status updated but notification failed")
			return
		}
		notified = true
	}

	ok(c, http.StatusOK, gin.H{"order": order, "notified": notified})
}

// notifyCustomer sends the status update over WhatsApp, picking free text or
// the order_update template depending on the customer's session window.
func (h *AdminHandlers) notifyCustomer(ctx context.Context, order *domain.Order) error {
	orderRef := fmt.Sprintf("#%d", order.ID)
	if h.sessions.IsActive(order.UserPhone) {
		body := fmt.Sprintf("Update on your order %s: it is now %s. 🐟", orderRef, order.Status)
		_, err := h.notifier.SendText(ctx, order.UserPhone, body)
		return err
	}
	_, err := h.notifier.SendTemplate(ctx, order.UserPhone, "order_update", "en",
		whatsapp.BodyTextComponent(orderRef, order.Status))
	return err
}
