package handler

import (
	"net/http"
	"strconv"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/pagination"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type VehicleHandler struct {
	vehicleService service.VehicleService
	tokens         *auth.Tokens
}

func NewVehicleHandler(vehicleService service.VehicleService, tokens *auth.Tokens) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService, tokens: tokens}
}

func (h *VehicleHandler) RegisterRoutes(router *gin.RouterGroup) {
	vehicles := router.Group("/vehicles")
	vehicles.Use(middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer))
	{
		vehicles.POST("", h.CreateVehicle)
		vehicles.GET("", h.ListVehicles)
		vehicles.GET("/search/query", h.SearchVehicles)
		vehicles.GET("/:id", h.GetVehicle)
		vehicles.PUT("/:id", h.UpdateVehicle)
		vehicles.PUT("/:id/status", h.ChangeStatus)
	}
}

// CreateVehicle
// @Summary      Create vehicle
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateVehicleRequest  true  "Vehicle"
// @Success      201      {object}  response.Response{data=model.Vehicle}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/vehicles [post]
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req service.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	vehicle, err := h.vehicleService.CreateVehicle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, vehicle))
}

// ListVehicles
// @Summary      List vehicles
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Result}
// @Router       /api/vehicles [get]
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	p := pagination.Parse(c)
	vehicles, total, err := h.vehicleService.ListVehicles(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(vehicles, total, p)))
}

// SearchVehicles finds vehicles by status, type and capacity. With a date it
// leaves out vehicles already booked on that day.
// @Summary      Search vehicles
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "Status (default ACTIVE)"
// @Param        type      query     string  false  "Vehicle type"
// @Param        capacity  query     int     false  "Minimum capacity"
// @Param        date      query     string  false  "Day the vehicle must be free (YYYY-MM-DD)"
// @Success      200       {object}  response.Response{data=[]model.Vehicle}
// @Failure      400       {object}  response.Response
// @Router       /api/vehicles/search/query [get]
func (h *VehicleHandler) SearchVehicles(c *gin.Context) {
	filter := repository.VehicleFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
	}
	if raw := c.Query("capacity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "Invalid capacity: expected an integer")
			return
		}
		filter.MinCapacity = n
	}
	date, err := queryTime(c, "date")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	filter.Date = date

	vehicles, err := h.vehicleService.SearchAvailable(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vehicles))
}

// GetVehicle
// @Summary      Get vehicle
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vehicle ID"
// @Success      200  {object}  response.Response{data=model.Vehicle}
// @Failure      404  {object}  response.Response
// @Router       /api/vehicles/{id} [get]
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	vehicle, err := h.vehicleService.GetVehicle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vehicle))
}

// UpdateVehicle
// @Summary      Update vehicle
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Vehicle ID"
// @Param        payload  body      service.UpdateVehicleRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Vehicle}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/vehicles/{id} [put]
func (h *VehicleHandler) UpdateVehicle(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	vehicle, err := h.vehicleService.UpdateVehicle(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vehicle))
}

// ChangeStatus
// @Summary      Change vehicle status
// @Description  Refused with 409 while the vehicle is assigned to upcoming approved trips.
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Vehicle ID"
// @Param        payload  body      service.ChangeVehicleStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=model.Vehicle}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/vehicles/{id}/status [put]
func (h *VehicleHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.ChangeVehicleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: status is required")
		return
	}

	vehicle, err := h.vehicleService.ChangeStatus(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vehicle))
}
