package handler

import (
	"net/http"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/model"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/pagination"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RouteHandler struct {
	routeService service.RouteService
	tokens       *auth.Tokens
}

func NewRouteHandler(routeService service.RouteService, tokens *auth.Tokens) *RouteHandler {
	return &RouteHandler{routeService: routeService, tokens: tokens}
}

func (h *RouteHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer)

	routes := router.Group("/routes")
	routes.Use(middleware.RequireAuth(h.tokens))
	{
		routes.GET("", h.ListRoutes)
		routes.GET("/:id", h.GetRoute)
		routes.POST("", staff, h.CreateRoute)
		routes.PUT("/:id", staff, h.UpdateRoute)
	}
}

// CreateRoute
// @Summary      Create shuttle route
// @Tags         routes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRouteRequest  true  "Route"
// @Success      201      {object}  response.Response{data=model.Route}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/routes [post]
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	route, err := h.routeService.CreateRoute(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, route))
}

// ListRoutes
// @Summary      List shuttle routes
// @Tags         routes
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Result}
// @Router       /api/routes [get]
func (h *RouteHandler) ListRoutes(c *gin.Context) {
	p := pagination.Parse(c)
	routes, total, err := h.routeService.ListRoutes(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(routes, total, p)))
}

// GetRoute
// @Summary      Get shuttle route
// @Tags         routes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Route ID"
// @Success      200  {object}  response.Response{data=model.Route}
// @Failure      404  {object}  response.Response
// @Router       /api/routes/{id} [get]
func (h *RouteHandler) GetRoute(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	route, err := h.routeService.GetRoute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, route))
}

// UpdateRoute
// @Summary      Update shuttle route
// @Tags         routes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Route ID"
// @Param        payload  body      service.UpdateRouteRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=model.Route}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/routes/{id} [put]
func (h *RouteHandler) UpdateRoute(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	route, err := h.routeService.UpdateRoute(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, route))
}

// queryUUID reads an optional UUID query parameter.
func queryUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, queryError{param: name, want: "a UUID"}
	}
	return &id, nil
}
