package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/service"
)

type CreditHandler struct {
	credit *service.CreditService
}

func NewCreditHandler(credit *service.CreditService) *CreditHandler {
	return &CreditHandler{credit: credit}
}

// MyScore обрабатывает GET /credit.
func (h *CreditHandler) MyScore(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	h.respondScore(c, userID)
}

// UserScore обрабатывает GET /users/:id/credit. Рейтинг продавца виден всем.
func (h *CreditHandler) UserScore(c *gin.Context) {
	userID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	h.respondScore(c, userID)
}

func (h *CreditHandler) respondScore(c *gin.Context, userID int64) {
	score, err := h.credit.Score(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CreditResponse{UserID: userID, Score: score})
}

// History обрабатывает GET /credit/history.
func (h *CreditHandler) History(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.credit.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: items, Limit: limit, Offset: offset})
}
