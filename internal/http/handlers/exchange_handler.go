package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/service"
	"github.com/ignatzorin/campus-trade/internal/validation"
)

// ExchangeUseCase операции обмена, нужные HTTP слою.
type ExchangeUseCase interface {
	Create(ctx context.Context, userID, offerListingID, requestListingID int64, terms string) (*models.ExchangeRequest, service.Result, error)
	Respond(ctx context.Context, exchangeID, userID int64, accept bool) (service.Result, error)
	ListMine(ctx context.Context, userID int64, limit, offset int) ([]models.ExchangeRequest, error)
}

type ExchangeHandler struct {
	exchanges ExchangeUseCase
}

func NewExchangeHandler(exchanges ExchangeUseCase) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges}
}

// CreateExchange POST /exchanges
func (h *ExchangeHandler) CreateExchange(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateExchangeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateExchangeTerms(req.Terms); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	exchange, res, err := h.exchanges.Create(c.Request.Context(), userID, req.OfferListingID, req.RequestListingID, req.Terms)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, res, exchange)
}

// Respond POST /exchanges/:id/respond
func (h *ExchangeHandler) Respond(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	exchangeID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный exchange_id")
		return
	}

	var req dto.RespondExchangeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.exchanges.Respond(c.Request.Context(), exchangeID, userID, *req.Accept)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, nil)
}

// ListMyExchanges GET /exchanges/my
func (h *ExchangeHandler) ListMyExchanges(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	exchanges, err := h.exchanges.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: exchanges, Limit: limit, Offset: offset})
}
