package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/service"
	"github.com/ignatzorin/campus-trade/internal/validation"
)

// OrderUseCase операции заказов, которые вызывает хэндлер.
type OrderUseCase interface {
	CreateOrder(ctx context.Context, buyerID, listingID int64, finalPrice *decimal.Decimal) (*models.Order, service.Result, error)
	GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
	ListUserOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	Transition(ctx context.Context, orderID, actorID int64, to models.OrderStatus, remark string) (service.Result, error)
	History(ctx context.Context, orderID, userID int64) ([]models.OrderStatusChange, error)
	ListExpiring(ctx context.Context, within time.Duration) ([]models.Order, error)
	ListStalledNegotiations(ctx context.Context, idle time.Duration) ([]models.Order, error)
}

type OrderHandler struct {
	orders OrderUseCase
}

// NewOrderHandler создаёт новый хэндлер.
func NewOrderHandler(orders OrderUseCase) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder обрабатывает POST /orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateOrderRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, res, err := h.orders.CreateOrder(c.Request.Context(), userID, req.ListingID, nil)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, res, order)
}

// GetOrder обрабатывает GET /orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	role := order.RoleOf(userID)
	c.JSON(http.StatusOK, dto.OrderDetailResponse{
		Order:              order,
		Role:               role,
		AllowedTransitions: service.AllowedTransitions(order.Status, role),
	})
}

// ListMyOrders обрабатывает GET /orders/my?role=buyer&status=paid.
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	filter := models.OrderFilter{UserID: userID}
	filter.Limit, filter.Offset = common.GetPagination(c)

	switch role := models.Role(c.Query("role")); role {
	case models.RoleBuyer, models.RoleSeller, models.RoleNone:
		filter.Role = role
	default:
		common.RespondBadRequest(c, "role должен быть buyer или seller")
		return
	}

	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.IsValid() {
			common.RespondBadRequest(c, "неизвестный статус заказа")
			return
		}
		filter.Status = status
	}

	orders, err := h.orders.ListUserOrders(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: orders, Limit: filter.Limit, Offset: filter.Offset})
}

// UpdateStatus обрабатывает PATCH /orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.TransitionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	to := models.OrderStatus(req.Status)
	if !to.IsValid() {
		common.RespondBadRequest(c, "неизвестный статус заказа")
		return
	}

	if err := validation.ValidateRemark(req.Remark); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.orders.Transition(c.Request.Context(), orderID, userID, to, req.Remark)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, nil)
}

// History обрабатывает GET /orders/:id/history.
func (h *OrderHandler) History(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	changes, err := h.orders.History(c.Request.Context(), orderID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, changes)
}

// ListExpiring обрабатывает GET /admin/orders/expiring?within=15m.
// Возвращает неоплаченные заказы, срок которых истекает в ближайшее время.
func (h *OrderHandler) ListExpiring(c *gin.Context) {
	within := 15 * time.Minute
	if raw := c.Query("within"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			common.RespondBadRequest(c, "within должен быть положительной длительностью, например 15m")
			return
		}
		within = parsed
	}

	orders, err := h.orders.ListExpiring(c.Request.Context(), within)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// ListStalledNegotiations обрабатывает GET /admin/orders/stalled?idle=24h.
// Торг без срока оплаты не отменяется обходом, список помогает найти зависшие заказы.
func (h *OrderHandler) ListStalledNegotiations(c *gin.Context) {
	idle := 24 * time.Hour
	if raw := c.Query("idle"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			common.RespondBadRequest(c, "idle должен быть положительной длительностью, например 24h")
			return
		}
		idle = parsed
	}

	orders, err := h.orders.ListStalledNegotiations(c.Request.Context(), idle)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}
