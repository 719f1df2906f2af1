package handler

import (
	"net/http"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/apperror"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups every HTTP handler so main can register them in one place.
type Handlers struct {
	User         *UserHandler
	Approval     *ApprovalHandler
	Requisition  *RequisitionHandler
	Vehicle      *VehicleHandler
	Driver       *DriverHandler
	Route        *RouteHandler
	Trip         *TripHandler
	Ticket       *TicketHandler
	Subscription *SubscriptionHandler
	Wallet       *WalletHandler
	Audit        *AuditHandler
}

type Services struct {
	User         service.UserService
	Approval     service.ApprovalService
	Requisition  service.RequisitionService
	Vehicle      service.VehicleService
	Driver       service.DriverService
	Route        service.RouteService
	Trip         service.TripService
	Ticket       service.TicketService
	Subscription service.SubscriptionService
	Wallet       service.WalletService
	Audit        service.AuditService
}

func NewHandlers(svc Services, tokens *auth.Tokens) *Handlers {
	return &Handlers{
		User:         NewUserHandler(svc.User, tokens),
		Approval:     NewApprovalHandler(svc.Approval, tokens),
		Requisition:  NewRequisitionHandler(svc.Requisition, tokens),
		Vehicle:      NewVehicleHandler(svc.Vehicle, tokens),
		Driver:       NewDriverHandler(svc.Driver, tokens),
		Route:        NewRouteHandler(svc.Route, tokens),
		Trip:         NewTripHandler(svc.Trip, tokens),
		Ticket:       NewTicketHandler(svc.Ticket, tokens),
		Subscription: NewSubscriptionHandler(svc.Subscription, tokens),
		Wallet:       NewWalletHandler(svc.Wallet, tokens),
		Audit:        NewAuditHandler(svc.Audit, tokens),
	}
}

// RegisterRoutes mounts every resource under the given group (normally /api).
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	h.User.RegisterRoutes(router)
	h.Approval.RegisterRoutes(router)
	h.Requisition.RegisterRoutes(router)
	h.Vehicle.RegisterRoutes(router)
	h.Driver.RegisterRoutes(router)
	h.Route.RegisterRoutes(router)
	h.Trip.RegisterRoutes(router)
	h.Ticket.RegisterRoutes(router)
	h.Subscription.RegisterRoutes(router)
	h.Wallet.RegisterRoutes(router)
	h.Audit.RegisterRoutes(router)
}

// respondError maps domain errors onto status codes. Unknown errors become a
// 500 whose message is hidden outside debug/test mode.
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case apperror.IsValidation(err):
		status = http.StatusBadRequest
	case apperror.IsUnauthorized(err):
		status = http.StatusUnauthorized
	case apperror.IsForbidden(err):
		status = http.StatusForbidden
	case apperror.IsNotFound(err):
		status = http.StatusNotFound
	case apperror.IsConflict(err):
		status = http.StatusConflict
	default:
		_ = c.Error(err)
		msg := err.Error()
		if gin.Mode() == gin.ReleaseMode {
			msg = "Internal server error"
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, msg).WithRequestID(c.GetString(middleware.CtxRequestID)))
		return
	}
	c.JSON(status, response.Error(status, err.Error()).WithRequestID(c.GetString(middleware.CtxRequestID)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg).WithRequestID(c.GetString(middleware.CtxRequestID)))
}

// actorFrom reads the identity placed on the context by the auth middleware.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	id, err := uuid.Parse(c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:     id,
		Role:       c.GetString(middleware.CtxUserRole),
		Department: c.GetString(middleware.CtxUserDepartment),
	}, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
