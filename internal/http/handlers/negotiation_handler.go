package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/service"
)

// NegotiationHandler обслуживает торг по заказу.
type NegotiationHandler struct {
	negotiations *service.NegotiationService
}

// NewNegotiationHandler создаёт новый хэндлер.
func NewNegotiationHandler(negotiations *service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiations: negotiations}
}

// Start обрабатывает POST /orders/:id/negotiations.
func (h *NegotiationHandler) Start(c *gin.Context) {
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

	var req dto.StartNegotiationRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	negotiation, res, err := h.negotiations.Start(c.Request.Context(), orderID, userID, req.ProposedPrice)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, res, negotiation)
}

// Respond обрабатывает POST /negotiations/:id/respond.
func (h *NegotiationHandler) Respond(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	negotiationID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RespondNegotiationRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	action := models.NegotiationAction(req.Action)
	if action == models.ActionCounterOffer && req.ProposedPrice == nil {
		common.RespondBadRequest(c, "для встречного предложения нужна цена")
		return
	}

	res, err := h.negotiations.Respond(c.Request.Context(), negotiationID, userID, action, req.ProposedPrice)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, nil)
}

// Thread обрабатывает GET /orders/:id/negotiations.
func (h *NegotiationHandler) Thread(c *gin.Context) {
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

	rounds, err := h.negotiations.Thread(c.Request.Context(), orderID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rounds)
}
