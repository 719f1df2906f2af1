package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transport-requisition/internal/lock"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
)

type CreateVehicleRequest struct {
	RegistrationNumber string `json:"registrationNumber" binding:"required"`
	Type               string `json:"type" binding:"required"`
	Capacity           int    `json:"capacity" binding:"required,min=1"`
	Status             string `json:"status"`
}

type UpdateVehicleRequest struct {
	RegistrationNumber *string `json:"registrationNumber"`
	Type               *string `json:"type"`
	Capacity           *int    `json:"capacity"`
}

type ChangeVehicleStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type VehicleService interface {
	CreateVehicle(ctx context.Context, req CreateVehicleRequest) (*model.Vehicle, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	ListVehicles(ctx context.Context, page, limit int) ([]model.Vehicle, int64, error)
	UpdateVehicle(ctx context.Context, id uuid.UUID, req UpdateVehicleRequest) (*model.Vehicle, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status string, actor Actor) (*model.Vehicle, error)
	SearchAvailable(ctx context.Context, filter repository.VehicleFilter) ([]model.Vehicle, error)
}

type vehicleService struct {
	repos  repository.Repositories
	locker lock.Locker
}

func NewVehicleService(repos repository.Repositories, locker lock.Locker) VehicleService {
	return &vehicleService{repos: repos, locker: locker}
}

func (s *vehicleService) ensureRegistrationFree(ctx context.Context, registration string, self uuid.UUID) error {
	existing, err := s.repos.Vehicle.GetByRegistration(ctx, registration)
	if err == nil {
		if existing.ID == self {
			return nil
		}
		return apperror.Conflict("vehicle", "registration number already exists")
	}
	if apperror.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *vehicleService) CreateVehicle(ctx context.Context, req CreateVehicleRequest) (*model.Vehicle, error) {
	registration := strings.ToUpper(strings.TrimSpace(req.RegistrationNumber))
	if registration == "" {
		return nil, apperror.ValidationError{Field: "registrationNumber", Msg: "is required"}
	}
	if req.Capacity < 1 {
		return nil, apperror.ValidationError{Field: "capacity", Msg: "must be at least 1"}
	}
	status := req.Status
	if status == "" {
		status = model.VehicleStatusActive
	}
	if !model.ValidVehicleStatus(status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "unknown vehicle status " + status}
	}

	if err := s.ensureRegistrationFree(ctx, registration, uuid.Nil); err != nil {
		return nil, err
	}

	vehicle := &model.Vehicle{
		RegistrationNumber: registration,
		Type:               req.Type,
		Capacity:           req.Capacity,
		Status:             status,
	}
	if err := s.repos.Vehicle.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return vehicle, nil
}

func (s *vehicleService) GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	return s.repos.Vehicle.GetByID(ctx, id)
}

func (s *vehicleService) ListVehicles(ctx context.Context, page, limit int) ([]model.Vehicle, int64, error) {
	page, limit = normalizePage(page, limit)
	vehicles, total, err := s.repos.Vehicle.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, total, nil
}

func (s *vehicleService) UpdateVehicle(ctx context.Context, id uuid.UUID, req UpdateVehicleRequest) (*model.Vehicle, error) {
	vehicle, err := s.repos.Vehicle.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.RegistrationNumber != nil {
		registration := strings.ToUpper(strings.TrimSpace(*req.RegistrationNumber))
		if registration == "" {
			return nil, apperror.ValidationError{Field: "registrationNumber", Msg: "must not be empty"}
		}
		if err := s.ensureRegistrationFree(ctx, registration, vehicle.ID); err != nil {
			return nil, err
		}
		vehicle.RegistrationNumber = registration
	}
	if req.Type != nil {
		vehicle.Type = *req.Type
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, apperror.ValidationError{Field: "capacity", Msg: "must be at least 1"}
		}
		vehicle.Capacity = *req.Capacity
	}

	if err := s.repos.Vehicle.Update(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("failed to update vehicle: %w", err)
	}
	return vehicle, nil
}

// ChangeStatus refuses to take a vehicle out of service while it is still
// assigned to upcoming approved requisitions. It holds the vehicle lock so an
// assignment cannot slip in between the check and the write.
func (s *vehicleService) ChangeStatus(ctx context.Context, id uuid.UUID, status string, actor Actor) (*model.Vehicle, error) {
	if !model.ValidVehicleStatus(status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "unknown vehicle status " + status}
	}

	release, err := lockResources(ctx, s.locker, "vehicle", vehicleKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var vehicle *model.Vehicle
	err = s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		vehicle, err = s.repos.Vehicle.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if vehicle.Status == status {
			return nil
		}

		if status != model.VehicleStatusActive {
			upcoming, err := s.repos.Requisition.CountUpcomingForVehicle(txCtx, id, time.Now())
			if err != nil {
				return fmt.Errorf("failed to check upcoming assignments: %w", err)
			}
			if upcoming > 0 {
				return apperror.Conflict("vehicle", fmt.Sprintf("vehicle has %d upcoming assigned requisitions", upcoming))
			}
		}

		previous := vehicle.Status
		vehicle.Status = status
		if err := s.repos.Vehicle.Update(txCtx, vehicle); err != nil {
			return fmt.Errorf("failed to update vehicle status: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionChangeVehicle, vehicle.ID.String(), vehicle.RegistrationNumber, map[string]any{
			"from": previous,
			"to":   status,
		})
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *vehicleService) SearchAvailable(ctx context.Context, filter repository.VehicleFilter) ([]model.Vehicle, error) {
	if filter.Status == "" {
		filter.Status = model.VehicleStatusActive
	}
	if !model.ValidVehicleStatus(filter.Status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "unknown vehicle status " + filter.Status}
	}
	if filter.MinCapacity < 0 {
		return nil, apperror.ValidationError{Field: "capacity", Msg: "must not be negative"}
	}
	vehicles, err := s.repos.Vehicle.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search vehicles: %w", err)
	}
	return vehicles, nil
}
