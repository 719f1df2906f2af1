package handler

import (
	"net/http"
	"strconv"
	"time"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/pagination"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequisitionHandler struct {
	requisitionService service.RequisitionService
	tokens             *auth.Tokens
}

func NewRequisitionHandler(requisitionService service.RequisitionService, tokens *auth.Tokens) *RequisitionHandler {
	return &RequisitionHandler{requisitionService: requisitionService, tokens: tokens}
}

func (h *RequisitionHandler) RegisterRoutes(router *gin.RouterGroup) {
	reviewers := middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer, model.RoleHOD)

	requisitions := router.Group("/requisitions")
	requisitions.Use(middleware.RequireAuth(h.tokens))
	{
		requisitions.POST("", h.CreateRequisition)
		requisitions.GET("/my-requisitions", h.GetMyRequisitions)
		requisitions.GET("/all", reviewers, h.GetAllRequisitions)
		requisitions.GET("/search/query", reviewers, h.SearchRequisitions)
		requisitions.GET("/:id", h.GetRequisitionByID)
		requisitions.PUT("/:id", h.UpdateRequisition)
		requisitions.DELETE("/:id", h.DeleteRequisition)
		requisitions.POST("/:id/assign", middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer), h.AssignVehicleAndDriver)
	}
}

// CreateRequisition submits a new request and opens its first approval stage
// @Summary      Create requisition
// @Tags         requisitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequisitionRequest  true  "Requisition"
// @Success      201      {object}  response.Response{data=model.Requisition}
// @Failure      400      {object}  response.Response
// @Router       /api/requisitions [post]
func (h *RequisitionHandler) CreateRequisition(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req service.CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	requisition, err := h.requisitionService.CreateRequisition(c.Request.Context(), actor.UserID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, requisition))
}

// GetMyRequisitions
// @Summary      Caller's requisitions
// @Tags         requisitions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Requisition}
// @Router       /api/requisitions/my-requisitions [get]
func (h *RequisitionHandler) GetMyRequisitions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	requisitions, err := h.requisitionService.GetRequisitionsByRequester(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisitions))
}

// GetAllRequisitions lists every requisition; HODs only see their department
// @Summary      All requisitions
// @Tags         requisitions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Requisition}
// @Failure      403  {object}  response.Response
// @Router       /api/requisitions/all [get]
func (h *RequisitionHandler) GetAllRequisitions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	requisitions, err := h.requisitionService.GetAllRequisitions(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisitions))
}

// GetRequisitionByID
// @Summary      Get requisition
// @Tags         requisitions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=model.Requisition}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requisitions/{id} [get]
func (h *RequisitionHandler) GetRequisitionByID(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	requisition, err := h.requisitionService.GetRequisitionByID(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisition))
}

// UpdateRequisition
// @Summary      Update requisition
// @Description  Owners may edit while PENDING; ADMIN and TRANSPORT_OFFICER at any time.
// @Tags         requisitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                            true  "Requisition ID"
// @Param        payload  body      service.UpdateRequisitionRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Requisition}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requisitions/{id} [put]
func (h *RequisitionHandler) UpdateRequisition(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	requisition, err := h.requisitionService.UpdateRequisition(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisition))
}

// DeleteRequisition removes a requisition together with its approvals
// @Summary      Delete requisition
// @Tags         requisitions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requisitions/{id} [delete]
func (h *RequisitionHandler) DeleteRequisition(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.requisitionService.DeleteRequisition(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Requisition deleted successfully"))
}

// SearchRequisitions
// @Summary      Search requisitions
// @Tags         requisitions
// @Produce      json
// @Security     BearerAuth
// @Param        purpose        query     string  false  "Purpose contains"
// @Param        placesToVisit  query     string  false  "Destination contains"
// @Param        placeToPickup  query     string  false  "Pickup contains"
// @Param        contactNumber  query     string  false  "Contact number contains"
// @Param        passengers     query     int     false  "Exact passenger count"
// @Param        minPassengers  query     int     false  "Minimum passengers"
// @Param        maxPassengers  query     int     false  "Maximum passengers"
// @Param        date           query     string  false  "Trip day (YYYY-MM-DD)"
// @Param        startDate      query     string  false  "Range start (RFC3339 or YYYY-MM-DD)"
// @Param        endDate        query     string  false  "Range end (RFC3339 or YYYY-MM-DD)"
// @Param        status         query     string  false  "PENDING, APPROVED or REJECTED"
// @Param        sortBy         query     string  false  "created_at, date_time_required, number_of_passengers, purpose, status"
// @Param        sortOrder      query     string  false  "asc or desc"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Items per page (default 20)"
// @Success      200            {object}  response.Response{data=pagination.Result}
// @Failure      400            {object}  response.Response
// @Router       /api/requisitions/search/query [get]
func (h *RequisitionHandler) SearchRequisitions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	filter, err := parseRequisitionFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	p := pagination.Parse(c)
	filter.Offset, filter.Limit = p.Offset, p.Limit

	requisitions, total, err := h.requisitionService.SearchRequisitions(c.Request.Context(), filter, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(requisitions, total, p)))
}

// AssignVehicleAndDriver binds a vehicle and driver to an approved requisition
// @Summary      Assign vehicle and driver
// @Tags         requisitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Requisition ID"
// @Param        payload  body      service.AssignRequest  true  "Resources"
// @Success      200      {object}  response.Response{data=model.Requisition}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requisitions/{id}/assign [post]
func (h *RequisitionHandler) AssignVehicleAndDriver(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: vehicleId and driverId are required")
		return
	}

	requisition, err := h.requisitionService.AssignVehicleAndDriver(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisition))
}

type queryError struct{ param, want string }

func (e queryError) Error() string { return "Invalid " + e.param + ": expected " + e.want }

func queryInt(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, queryError{param: name, want: "an integer"}
	}
	return &n, nil
}

// queryTime accepts RFC3339 timestamps or plain dates.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, queryError{param: name, want: "RFC3339 or YYYY-MM-DD"}
}

func parseRequisitionFilter(c *gin.Context) (repository.RequisitionFilter, error) {
	f := repository.RequisitionFilter{
		Purpose:       c.Query("purpose"),
		PlacesToVisit: c.Query("placesToVisit"),
		PlaceToPickup: c.Query("placeToPickup"),
		ContactNumber: c.Query("contactNumber"),
		Status:        c.Query("status"),
		SortBy:        c.Query("sortBy"),
		SortOrder:     c.Query("sortOrder"),
	}
	if f.Status != "" && f.Status != model.StatusPending && f.Status != model.StatusApproved && f.Status != model.StatusRejected {
		return f, queryError{param: "status", want: "PENDING, APPROVED or REJECTED"}
	}

	var err error
	if f.Passengers, err = queryInt(c, "passengers"); err != nil {
		return f, err
	}
	if f.MinPassengers, err = queryInt(c, "minPassengers"); err != nil {
		return f, err
	}
	if f.MaxPassengers, err = queryInt(c, "maxPassengers"); err != nil {
		return f, err
	}
	if f.Date, err = queryTime(c, "date"); err != nil {
		return f, err
	}
	if f.StartDate, err = queryTime(c, "startDate"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryTime(c, "endDate"); err != nil {
		return f, err
	}
	return f, nil
}
