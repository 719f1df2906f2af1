package handler

import (
	"net/http"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/pagination"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	tokens              *auth.Tokens
}

func NewSubscriptionHandler(subscriptionService service.SubscriptionService, tokens *auth.Tokens) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService, tokens: tokens}
}

func (h *SubscriptionHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer)

	subs := router.Group("/subscriptions")
	subs.Use(middleware.RequireAuth(h.tokens))
	{
		subs.GET("", h.SearchSubscriptions)
		subs.GET("/:id", h.GetSubscription)
		subs.POST("", staff, h.CreateSubscription)
		subs.PUT("/:id", staff, h.UpdateSubscription)
		subs.DELETE("/:id", staff, h.DeleteSubscription)
	}
}

// CreateSubscription
// @Summary      Create subscription
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateSubscriptionRequest  true  "Subscription"
// @Success      201      {object}  response.Response{data=model.Subscription}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/subscriptions [post]
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	sub, err := h.subscriptionService.CreateSubscription(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sub))
}

// SearchSubscriptions
// @Summary      Search subscriptions
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        userId     query     string  false  "Subscriber ID"
// @Param        routeId    query     string  false  "Route ID"
// @Param        status     query     string  false  "ACTIVE or INACTIVE"
// @Param        date       query     string  false  "Day the subscription must cover (YYYY-MM-DD)"
// @Param        sortBy     query     string  false  "created_at, start_date, end_date, monthly_charge or status"
// @Param        sortOrder  query     string  false  "asc or desc"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Result}
// @Failure      400        {object}  response.Response
// @Router       /api/subscriptions [get]
func (h *SubscriptionHandler) SearchSubscriptions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	filter := repository.SubscriptionFilter{
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	var err error
	if filter.UserID, err = queryUUID(c, "userId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.RouteID, err = queryUUID(c, "routeId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.Date, err = queryTime(c, "date"); err != nil {
		badRequest(c, err.Error())
		return
	}
	p := pagination.Parse(c)
	filter.Offset, filter.Limit = p.Offset, p.Limit

	subs, total, err := h.subscriptionService.SearchSubscriptions(c.Request.Context(), filter, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(subs, total, p)))
}

// GetSubscription
// @Summary      Get subscription
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  response.Response{data=model.Subscription}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sub, err := h.subscriptionService.GetSubscription(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sub))
}

// UpdateSubscription
// @Summary      Update subscription
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                             true  "Subscription ID"
// @Param        payload  body      service.UpdateSubscriptionRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=model.Subscription}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/subscriptions/{id} [put]
func (h *SubscriptionHandler) UpdateSubscription(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	sub, err := h.subscriptionService.UpdateSubscription(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sub))
}

// DeleteSubscription
// @Summary      Delete subscription
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/subscriptions/{id} [delete]
func (h *SubscriptionHandler) DeleteSubscription(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.subscriptionService.DeleteSubscription(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Subscription deleted successfully"))
}
