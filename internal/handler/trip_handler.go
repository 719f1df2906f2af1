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

type TripHandler struct {
	tripService service.TripService
	tokens      *auth.Tokens
}

func NewTripHandler(tripService service.TripService, tokens *auth.Tokens) *TripHandler {
	return &TripHandler{tripService: tripService, tokens: tokens}
}

func (h *TripHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer)

	trips := router.Group("/trips")
	trips.Use(middleware.RequireAuth(h.tokens))
	{
		trips.GET("", h.SearchTrips)
		trips.GET("/:id", h.GetTrip)
		trips.POST("", staff, h.CreateTrip)
		trips.PUT("/:id", staff, h.UpdateTrip)
		trips.DELETE("/:id", staff, h.DeleteTrip)
	}
}

// CreateTrip schedules a shuttle run on a route
// @Summary      Create trip
// @Tags         trips
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTripRequest  true  "Trip"
// @Success      201      {object}  response.Response{data=model.Trip}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/trips [post]
func (h *TripHandler) CreateTrip(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, trip))
}

// SearchTrips
// @Summary      Search trips
// @Tags         trips
// @Produce      json
// @Security     BearerAuth
// @Param        routeId    query     string  false  "Route ID"
// @Param        vehicleId  query     string  false  "Vehicle ID"
// @Param        driverId   query     string  false  "Driver ID"
// @Param        status     query     string  false  "BOOKED or CANCELED"
// @Param        date       query     string  false  "Scheduled day (YYYY-MM-DD)"
// @Param        sortBy     query     string  false  "scheduled_date_time, available_seats, status or created_at"
// @Param        sortOrder  query     string  false  "asc or desc"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Result}
// @Failure      400        {object}  response.Response
// @Router       /api/trips [get]
func (h *TripHandler) SearchTrips(c *gin.Context) {
	filter := repository.TripFilter{
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	var err error
	if filter.RouteID, err = queryUUID(c, "routeId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.VehicleID, err = queryUUID(c, "vehicleId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.DriverID, err = queryUUID(c, "driverId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.Date, err = queryTime(c, "date"); err != nil {
		badRequest(c, err.Error())
		return
	}
	p := pagination.Parse(c)
	filter.Offset, filter.Limit = p.Offset, p.Limit

	trips, total, err := h.tripService.SearchTrips(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(trips, total, p)))
}

// GetTrip
// @Summary      Get trip
// @Tags         trips
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Trip ID"
// @Success      200  {object}  response.Response{data=model.Trip}
// @Failure      404  {object}  response.Response
// @Router       /api/trips/{id} [get]
func (h *TripHandler) GetTrip(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	trip, err := h.tripService.GetTrip(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, trip))
}

// UpdateTrip edits a trip. Setting status CANCELED refunds every confirmed ticket.
// @Summary      Update trip
// @Tags         trips
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Trip ID"
// @Param        payload  body      service.UpdateTripRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=model.Trip}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/trips/{id} [put]
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	trip, err := h.tripService.UpdateTrip(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, trip))
}

// DeleteTrip
// @Summary      Delete trip
// @Tags         trips
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Trip ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/trips/{id} [delete]
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.tripService.DeleteTrip(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Trip deleted successfully"))
}
