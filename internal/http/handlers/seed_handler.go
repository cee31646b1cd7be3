package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/campus-trade/internal/http/handlers/common"
	"github.com/ignatzorin/campus-trade/internal/service"
)

// SeedHandler обрабатывает запросы для генерации тестовых данных. Подключается только в development.
type SeedHandler struct {
	seedService *service.SeedService
}

// NewSeedHandler создаёт новый seed handler.
func NewSeedHandler(seedService *service.SeedService) *SeedHandler {
	return &SeedHandler{seedService: seedService}
}

// SeedRequest представляет запрос на генерацию данных.
type SeedRequest struct {
	NumUsers    int `json:"num_users" form:"num_users"`
	NumListings int `json:"num_listings" form:"num_listings"`
}

// Seed генерирует пользователей, балансы и товары.
// POST /api/seed?num_users=5&num_listings=3
func (h *SeedHandler) Seed(c *gin.Context) {
	req := SeedRequest{
		NumUsers:    common.ParseIntQuery(c, "num_users", 4),
		NumListings: common.ParseIntQuery(c, "num_listings", 3),
	}

	if req.NumUsers < 1 || req.NumUsers > 100 {
		common.RespondBadRequest(c, "num_users должен быть от 1 до 100")
		return
	}
	if req.NumListings < 0 || req.NumListings > 20 {
		common.RespondBadRequest(c, "num_listings должен быть от 0 до 20")
		return
	}

	result, err := h.seedService.SeedData(c.Request.Context(), req.NumUsers, req.NumListings)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "тестовые данные созданы", result)
}
