package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/service"
)

// WalletHandler баланс, выписка и пополнения.
type WalletHandler struct {
	ledger    *service.LedgerService
	recharges *service.RechargeService
}

// NewWalletHandler создаёт новый хэндлер.
func NewWalletHandler(ledger *service.LedgerService, recharges *service.RechargeService) *WalletHandler {
	return &WalletHandler{ledger: ledger, recharges: recharges}
}

// GetBalance обрабатывает GET /wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: balance})
}

// ListEntries обрабатывает GET /wallet/entries.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	entries, err := h.ledger.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: entries, Limit: limit, Offset: offset})
}

// CreateRecharge обрабатывает POST /wallet/recharges.
func (h *WalletHandler) CreateRecharge(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateRechargeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	recharge, res, err := h.recharges.Create(c.Request.Context(), userID, req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, res, recharge)
}

// CompleteRecharge обрабатывает POST /wallet/recharges/:id/complete.
// Вызывается после подтверждения оплаты платёжной страницей.
func (h *WalletHandler) CompleteRecharge(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	rechargeID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.recharges.Complete(c.Request.Context(), rechargeID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, nil)
}
