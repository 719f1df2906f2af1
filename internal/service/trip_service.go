package service

import (
	"context"
	"fmt"
	"time"

	"transport-requisition/internal/lock"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateTripRequest struct {
	RouteID           uuid.UUID `json:"routeId" binding:"required"`
	VehicleID         uuid.UUID `json:"vehicleId" binding:"required"`
	DriverID          uuid.UUID `json:"driverId" binding:"required"`
	ScheduledDateTime time.Time `json:"scheduledDateTime" binding:"required"`
	AvailableSeats    int       `json:"availableSeats" binding:"required,min=1"`
}

type UpdateTripRequest struct {
	RouteID           *uuid.UUID `json:"routeId"`
	VehicleID         *uuid.UUID `json:"vehicleId"`
	DriverID          *uuid.UUID `json:"driverId"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
	AvailableSeats    *int       `json:"availableSeats"`
	Status            *string    `json:"status"`
}

// TripCanceledEvent is broadcast after a trip and its tickets are canceled.
type TripCanceledEvent struct {
	TripID          uuid.UUID `json:"trip_id"`
	RefundedTickets int       `json:"refunded_tickets"`
}

type TripService interface {
	CreateTrip(ctx context.Context, req CreateTripRequest, actor Actor) (*model.Trip, error)
	GetTrip(ctx context.Context, id uuid.UUID) (*model.Trip, error)
	SearchTrips(ctx context.Context, filter repository.TripFilter) ([]model.Trip, int64, error)
	UpdateTrip(ctx context.Context, id uuid.UUID, req UpdateTripRequest, actor Actor) (*model.Trip, error)
	DeleteTrip(ctx context.Context, id uuid.UUID, actor Actor) error
}

type tripService struct {
	repos  repository.Repositories
	locker lock.Locker
	events EventPublisher
	log    *zap.Logger
}

func NewTripService(repos repository.Repositories, locker lock.Locker, events EventPublisher, log *zap.Logger) TripService {
	return &tripService{repos: repos, locker: locker, events: publisherOrNop(events), log: log}
}

// CreateTrip schedules a run with an ACTIVE vehicle and driver. The seats on
// sale cannot exceed the vehicle's capacity.
func (s *tripService) CreateTrip(ctx context.Context, req CreateTripRequest, actor Actor) (*model.Trip, error) {
	if req.AvailableSeats < 1 {
		return nil, apperror.ValidationError{Field: "availableSeats", Msg: "must be at least 1"}
	}
	if req.ScheduledDateTime.IsZero() {
		return nil, apperror.ValidationError{Field: "scheduledDateTime", Msg: "is required"}
	}

	release, err := lockResources(ctx, s.locker, "trip", vehicleKey(req.VehicleID), driverKey(req.DriverID))
	if err != nil {
		return nil, err
	}
	defer release()

	trip := &model.Trip{
		RouteID:           req.RouteID,
		VehicleID:         req.VehicleID,
		DriverID:          req.DriverID,
		ScheduledDateTime: req.ScheduledDateTime,
		AvailableSeats:    req.AvailableSeats,
		Status:            model.TripStatusBooked,
	}
	err = s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repos.Route.GetByID(txCtx, req.RouteID); err != nil {
			return err
		}
		if err := s.checkResources(txCtx, trip); err != nil {
			return err
		}
		if err := s.repos.Trip.Create(txCtx, trip); err != nil {
			return fmt.Errorf("failed to create trip: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionCreateTrip, trip.ID.String(), trip.ScheduledDateTime.Format(time.RFC3339), map[string]any{
			"route_id":        trip.RouteID,
			"vehicle_id":      trip.VehicleID,
			"driver_id":       trip.DriverID,
			"available_seats": trip.AvailableSeats,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Trip.FindByIDWithRelations(ctx, trip.ID)
}

// checkResources locks the trip's vehicle and driver rows and requires both
// ACTIVE, with seats within the vehicle's capacity.
func (s *tripService) checkResources(ctx context.Context, trip *model.Trip) error {
	vehicle, err := s.repos.Vehicle.GetByIDForUpdate(ctx, trip.VehicleID)
	if err != nil {
		return err
	}
	if vehicle.Status != model.VehicleStatusActive {
		return apperror.ValidationError{Field: "vehicleId", Msg: "vehicle not available: " + vehicle.Status}
	}
	driver, err := s.repos.Driver.GetByIDForUpdate(ctx, trip.DriverID)
	if err != nil {
		return err
	}
	if driver.Status != model.DriverStatusActive {
		return apperror.ValidationError{Field: "driverId", Msg: "driver not available: " + driver.Status}
	}
	if trip.AvailableSeats > vehicle.Capacity {
		return apperror.ValidationError{Field: "availableSeats", Msg: fmt.Sprintf("exceeds vehicle capacity of %d", vehicle.Capacity)}
	}
	return nil
}

func (s *tripService) GetTrip(ctx context.Context, id uuid.UUID) (*model.Trip, error) {
	return s.repos.Trip.FindByIDWithRelations(ctx, id)
}

func (s *tripService) SearchTrips(ctx context.Context, filter repository.TripFilter) ([]model.Trip, int64, error) {
	order, err := checkSort(filter.SortBy, repository.TripSortFields, filter.SortOrder)
	if err != nil {
		return nil, 0, err
	}
	filter.SortOrder = order
	if filter.Status != "" && !model.ValidTripStatus(filter.Status) {
		return nil, 0, apperror.ValidationError{Field: "status", Msg: "unknown trip status " + filter.Status}
	}
	trips, total, err := s.repos.Trip.Search(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search trips: %w", err)
	}
	return trips, total, nil
}

// UpdateTrip edits a BOOKED trip. Setting status CANCELED refunds every
// CONFIRMED ticket in the same transaction; a canceled trip is read-only.
func (s *tripService) UpdateTrip(ctx context.Context, id uuid.UUID, req UpdateTripRequest, actor Actor) (*model.Trip, error) {
	if req.Status != nil && !model.ValidTripStatus(*req.Status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "must be BOOKED or CANCELED"}
	}
	if req.AvailableSeats != nil && *req.AvailableSeats < 0 {
		return nil, apperror.ValidationError{Field: "availableSeats", Msg: "must not be negative"}
	}

	if keys := resourceKeys(req.VehicleID, req.DriverID); len(keys) > 0 {
		release, err := lockResources(ctx, s.locker, "trip", keys...)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	refunded := -1
	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		trip, err := s.repos.Trip.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if trip.Status == model.TripStatusCanceled {
			return apperror.Conflict("trip", "is already CANCELED")
		}

		changed := map[string]any{}
		if req.RouteID != nil && *req.RouteID != trip.RouteID {
			if _, err := s.repos.Route.GetByID(txCtx, *req.RouteID); err != nil {
				return err
			}
			trip.RouteID = *req.RouteID
			changed["route_id"] = trip.RouteID
		}
		if req.ScheduledDateTime != nil {
			trip.ScheduledDateTime = *req.ScheduledDateTime
			changed["scheduled_date_time"] = trip.ScheduledDateTime
		}
		if req.AvailableSeats != nil {
			trip.AvailableSeats = *req.AvailableSeats
			changed["available_seats"] = trip.AvailableSeats
		}
		resourcesChanged := false
		if req.VehicleID != nil && *req.VehicleID != trip.VehicleID {
			trip.VehicleID = *req.VehicleID
			changed["vehicle_id"] = trip.VehicleID
			resourcesChanged = true
		}
		if req.DriverID != nil && *req.DriverID != trip.DriverID {
			trip.DriverID = *req.DriverID
			changed["driver_id"] = trip.DriverID
			resourcesChanged = true
		}
		if resourcesChanged {
			if err := s.checkResources(txCtx, trip); err != nil {
				return err
			}
		}

		action := model.ActionUpdateTrip
		if req.Status != nil && *req.Status == model.TripStatusCanceled {
			n, err := s.cancelTickets(txCtx, trip)
			if err != nil {
				return err
			}
			refunded = n
			trip.Status = model.TripStatusCanceled
			changed["status"] = trip.Status
			changed["refunded_tickets"] = n
			action = model.ActionCancelTrip
		}
		if len(changed) == 0 {
			return nil
		}

		if err := s.repos.Trip.Update(txCtx, trip); err != nil {
			return fmt.Errorf("failed to update trip: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), action, trip.ID.String(), trip.ScheduledDateTime.Format(time.RFC3339), changed)
	})
	if err != nil {
		return nil, err
	}

	if refunded >= 0 {
		s.events.Publish(EventTripCanceled, TripCanceledEvent{TripID: id, RefundedTickets: refunded})
		s.log.Info("trip canceled", zap.String("trip_id", id.String()), zap.Int("refunded_tickets", refunded))
	}
	return s.repos.Trip.FindByIDWithRelations(ctx, id)
}

// cancelTickets refunds every CONFIRMED ticket of trip, which the caller has
// locked, and returns the seats to it.
func (s *tripService) cancelTickets(ctx context.Context, trip *model.Trip) (int, error) {
	tickets, err := s.repos.Ticket.ListConfirmedByTrip(ctx, trip.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tickets: %w", err)
	}
	for i := range tickets {
		if _, err := refundTicket(ctx, s.repos, &tickets[i]); err != nil {
			return 0, err
		}
	}
	trip.AvailableSeats += len(tickets)
	return len(tickets), nil
}

// DeleteTrip removes a trip that has no CONFIRMED tickets left. Cancel it
// first to refund its passengers.
func (s *tripService) DeleteTrip(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		trip, err := s.repos.Trip.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		confirmed, err := s.repos.Ticket.ListConfirmedByTrip(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load tickets: %w", err)
		}
		if len(confirmed) > 0 {
			return apperror.Conflict("trip", fmt.Sprintf("has %d confirmed tickets, cancel it first", len(confirmed)))
		}
		if err := s.repos.Trip.Delete(txCtx, id); err != nil {
			return err
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionDeleteTrip, id.String(), trip.ScheduledDateTime.Format(time.RFC3339), map[string]any{
			"status": trip.Status,
		})
	})
}
