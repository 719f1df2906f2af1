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
)

type DriverHandler struct {
	driverService service.DriverService
	tokens        *auth.Tokens
}

func NewDriverHandler(driverService service.DriverService, tokens *auth.Tokens) *DriverHandler {
	return &DriverHandler{driverService: driverService, tokens: tokens}
}

func (h *DriverHandler) RegisterRoutes(router *gin.RouterGroup) {
	drivers := router.Group("/drivers")
	drivers.Use(middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer))
	{
		drivers.POST("", h.CreateDriver)
		drivers.GET("", h.ListDrivers)
		drivers.GET("/:id", h.GetDriver)
		drivers.PUT("/:id", h.UpdateDriver)
	}
}

// CreateDriver registers an existing user as a driver
// @Summary      Register driver
// @Description  The user's role becomes DRIVER.
// @Tags         drivers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateDriverRequest  true  "Driver"
// @Success      201      {object}  response.Response{data=model.Driver}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/drivers [post]
func (h *DriverHandler) CreateDriver(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req service.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	driver, err := h.driverService.CreateDriver(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, driver))
}

// ListDrivers
// @Summary      List drivers
// @Tags         drivers
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "ACTIVE, ON_LEAVE or INACTIVE"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Result}
// @Router       /api/drivers [get]
func (h *DriverHandler) ListDrivers(c *gin.Context) {
	p := pagination.Parse(c)
	drivers, total, err := h.driverService.ListDrivers(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(drivers, total, p)))
}

// GetDriver
// @Summary      Get driver
// @Tags         drivers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Driver ID"
// @Success      200  {object}  response.Response{data=model.Driver}
// @Failure      404  {object}  response.Response
// @Router       /api/drivers/{id} [get]
func (h *DriverHandler) GetDriver(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	driver, err := h.driverService.GetDriver(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, driver))
}

// UpdateDriver
// @Summary      Update driver
// @Tags         drivers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Driver ID"
// @Param        payload  body      service.UpdateDriverRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Driver}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/drivers/{id} [put]
func (h *DriverHandler) UpdateDriver(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	driver, err := h.driverService.UpdateDriver(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, driver))
}
