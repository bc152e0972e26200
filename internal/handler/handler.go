package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tapcoin/internal/config"
	"tapcoin/internal/economy"
	"tapcoin/internal/model"

	"github.com/gin-gonic/gin"
)

// Handler manages HTTP request handling for the economy service
type Handler struct {
	economy *economy.Service
	cfg     *config.Config
}

func NewHandler(svc *economy.Service, cfg *config.Config) *Handler {
	return &Handler{
		economy: svc,
		cfg:     cfg,
	}
}

// AdminAuth middleware checks if the request has a valid admin API key
func (h *Handler) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if h.cfg.Admin.APIKey == "" || apiKey != h.cfg.Admin.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Response{
				Success: false,
				Error:   "invalid API key",
			})
			return
		}
		c.Next()
	}
}

// GetEconomyConfig returns the public economic constants so the client can
// display rates and prices that match what the engine charges.
func (h *Handler) GetEconomyConfig(c *gin.Context) {
	eco := h.cfg.Economy
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data: gin.H{
			"exchange_points":       eco.ExchangePoints,
			"exchange_coin":         eco.ExchangeCoin,
			"base_upgrade_cost":     eco.BaseUpgradeCost,
			"upgrade_multiplier":    eco.UpgradeMultiplier,
			"base_points_per_click": eco.BasePointsPerClick,
			"click_multiplier":      eco.ClickMultiplier,
			"base_coin_per_hour":    eco.BaseCoinPerHour,
			"idle_multiplier":       eco.IdleMultiplier,
			"max_idle_hours":        eco.MaxIdleHours,
			"min_withdraw":          eco.MinWithdraw,
		},
	})
}

// GetProfile handles ledger snapshot requests
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.economy.GetProfile(c.Param("address"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    profile,
	})
}

// RecordClick handles click batch submissions
func (h *Handler) RecordClick(c *gin.Context) {
	var req struct {
		Clicks int64 `json:"clicks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.economy.RecordClick(c.Param("address"), req.Clicks)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
	})
}

// ExchangePoints handles points-to-coin conversions
func (h *Handler) ExchangePoints(c *gin.Context) {
	var req struct {
		PointsToExchange int64 `json:"points_to_exchange" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.economy.ExchangePoints(c.Param("address"), req.PointsToExchange)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
	})
}

// Upgrade handles level upgrade purchases
func (h *Handler) Upgrade(c *gin.Context) {
	var req struct {
		UpgradeType string `json:"upgrade_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.economy.Upgrade(c.Param("address"), req.UpgradeType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
	})
}

// RequestWithdraw handles player withdrawal requests
func (h *Handler) RequestWithdraw(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.economy.RequestWithdraw(c.Param("address"), req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.Response{
		Success: true,
		Data:    result,
	})
}

// ListWithdrawals handles the admin withdrawal list (status filter, paging)
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	list, err := h.economy.ListWithdrawRequests(c.Query("status"), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    list,
	})
}

// ReviewWithdrawal handles the admin approve/reject decision. Approval
// performs the on-chain settlement synchronously before responding.
func (h *Handler) ReviewWithdrawal(c *gin.Context) {
	var req model.ReviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.economy.ReviewWithdrawRequest(c.Request.Context(), c.Param("id"), req.Approve, req.Note, req.ReviewerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
	})
}

// ListStaleWithdrawals reports requests stuck in processing (admin only)
func (h *Handler) ListStaleWithdrawals(c *gin.Context) {
	stale, err := h.economy.StaleProcessing(h.cfg.Admin.StaleProcessingAge)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    stale,
	})
}

// SetPlayerStatus bans or reinstates a player (admin only)
func (h *Handler) SetPlayerStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	profile, err := h.economy.SetPlayerStatus(c.Param("address"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    profile,
	})
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, model.Response{
		Success: false,
		Error:   message,
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var econErr *economy.Error
	if errors.As(err, &econErr) {
		c.JSON(econErr.HTTPStatus(), model.Response{
			Success: false,
			Error:   econErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, model.Response{
		Success: false,
		Error:   "internal server error",
	})
}
