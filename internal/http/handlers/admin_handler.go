package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/service"
	"github.com/ignatzorin/campus-trade/internal/validation"
)

// AdminHandler модерация и обслуживание. Доступ только с ролью admin.
type AdminHandler struct {
	moderation *service.ModerationService
	audit      *service.AuditService
	sweeper    *service.Sweeper
}

// NewAdminHandler создаёт новый хэндлер.
func NewAdminHandler(moderation *service.ModerationService, audit *service.AuditService, sweeper *service.Sweeper) *AdminHandler {
	return &AdminHandler{moderation: moderation, audit: audit, sweeper: sweeper}
}

// PenalizeUser обрабатывает POST /admin/users/:id/penalties.
func (h *AdminHandler) PenalizeUser(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	userID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.PenalizeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateReason(req.Reason); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	entry, res, err := h.moderation.PenalizeUser(c.Request.Context(), adminID, userID, service.Severity(req.Severity), req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, entry)
}

// ListAudit обрабатывает GET /admin/audit/:id.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	targetID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, _ := common.GetPagination(c)
	logs, err := h.audit.ListByTarget(c.Request.Context(), targetID, limit)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// RunSweep обрабатывает POST /admin/orders/sweep: внеочередной проход по просроченным заказам.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	result, err := h.sweeper.SweepExpired(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
