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

type TicketHandler struct {
	ticketService service.TicketService
	tokens        *auth.Tokens
}

func NewTicketHandler(ticketService service.TicketService, tokens *auth.Tokens) *TicketHandler {
	return &TicketHandler{ticketService: ticketService, tokens: tokens}
}

func (h *TicketHandler) RegisterRoutes(router *gin.RouterGroup) {
	tickets := router.Group("/tickets")
	tickets.Use(middleware.RequireAuth(h.tokens))
	{
		tickets.POST("", middleware.RequireRole(h.tokens, model.RoleUser, model.RoleAdmin), h.BookTicket)
		tickets.GET("", h.SearchTickets)
		tickets.GET("/:id", h.GetTicket)
		tickets.POST("/:id/cancel", h.CancelTicket)
		tickets.DELETE("/:id", middleware.RequireRole(h.tokens, model.RoleAdmin, model.RoleTransportOfficer), h.DeleteTicket)
	}
}

// BookTicket pays the fare from the holder's e-wallet and takes a seat
// @Summary      Book ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.BookTicketRequest  true  "Booking"
// @Success      201      {object}  response.Response{data=model.Ticket}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/tickets [post]
func (h *TicketHandler) BookTicket(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.BookTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	ticket, err := h.ticketService.BookTicket(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, ticket))
}

// SearchTickets lists tickets. Callers other than ADMIN and TRANSPORT_OFFICER
// only see their own.
// @Summary      Search tickets
// @Tags         tickets
// @Produce      json
// @Security     BearerAuth
// @Param        tripId     query     string  false  "Trip ID"
// @Param        userId     query     string  false  "Holder ID"
// @Param        status     query     string  false  "CONFIRMED or CANCELED"
// @Param        date       query     string  false  "Booking day (YYYY-MM-DD)"
// @Param        sortBy     query     string  false  "booking_date_time, fare or status"
// @Param        sortOrder  query     string  false  "asc or desc"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Result}
// @Failure      400        {object}  response.Response
// @Router       /api/tickets [get]
func (h *TicketHandler) SearchTickets(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	filter := repository.TicketFilter{
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	var err error
	if filter.TripID, err = queryUUID(c, "tripId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.UserID, err = queryUUID(c, "userId"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.Date, err = queryTime(c, "date"); err != nil {
		badRequest(c, err.Error())
		return
	}
	p := pagination.Parse(c)
	filter.Offset, filter.Limit = p.Offset, p.Limit

	tickets, total, err := h.ticketService.SearchTickets(c.Request.Context(), filter, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewResult(tickets, total, p)))
}

// GetTicket
// @Summary      Get ticket
// @Tags         tickets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  response.Response{data=model.Ticket}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tickets/{id} [get]
func (h *TicketHandler) GetTicket(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ticket, err := h.ticketService.GetTicket(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, ticket))
}

// CancelTicket refunds a confirmed ticket to the holder's e-wallet
// @Summary      Cancel ticket
// @Tags         tickets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  response.Response{data=model.Ticket}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/tickets/{id}/cancel [post]
func (h *TicketHandler) CancelTicket(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ticket, err := h.ticketService.CancelTicket(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, ticket))
}

// DeleteTicket
// @Summary      Delete ticket
// @Tags         tickets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tickets/{id} [delete]
func (h *TicketHandler) DeleteTicket(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.ticketService.DeleteTicket(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Ticket deleted successfully"))
}
