package handler

import (
	"net/http"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/model"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	walletService service.WalletService
	tokens        *auth.Tokens
}

func NewWalletHandler(walletService service.WalletService, tokens *auth.Tokens) *WalletHandler {
	return &WalletHandler{walletService: walletService, tokens: tokens}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet")
	{
		wallet.GET("", middleware.RequireAuth(h.tokens), h.GetBalance)
		wallet.POST("/top-up", middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer), h.TopUp)
	}
}

// GetBalance returns the caller's e-wallet balance
// @Summary      Wallet balance
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.WalletResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/wallet [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	wallet, err := h.walletService.Balance(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, wallet))
}

// TopUp
// @Summary      Top up a user's e-wallet
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.TopUpRequest  true  "Top-up"
// @Success      200      {object}  response.Response{data=service.WalletResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/wallet/top-up [post]
func (h *WalletHandler) TopUp(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	wallet, err := h.walletService.TopUp(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, wallet))
}
