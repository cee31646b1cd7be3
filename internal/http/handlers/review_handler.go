package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/dto"
	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/service"
	"github.com/ignatzorin/campus-trade/internal/validation"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// CreateReview POST /orders/:id/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "рейтинг должен быть от 1 до 5")
		return
	}

	if err := validation.ValidateReviewComment(req.Comment); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	review, res, err := h.reviews.Submit(c.Request.Context(), orderID, userID, req.Rating, req.Comment)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, res, review)
}

// ReplyToReview POST /reviews/:id/reply
func (h *ReviewHandler) ReplyToReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	reviewID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный review_id")
		return
	}

	var req dto.ReplyReviewRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateReviewReply(req.Reply); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.reviews.Reply(c.Request.Context(), reviewID, userID, req.Reply)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, nil)
}

// DeleteReview DELETE /reviews/:id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	reviewID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный review_id")
		return
	}

	res, err := h.reviews.Delete(c.Request.Context(), reviewID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, res, nil)
}

// ListUserReviews GET /users/:id/reviews
func (h *ReviewHandler) ListUserReviews(c *gin.Context) {
	userID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный user_id")
		return
	}

	limit, offset := common.GetPagination(c)
	reviews, err := h.reviews.ListUserReviews(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: reviews, Limit: limit, Offset: offset})
}
