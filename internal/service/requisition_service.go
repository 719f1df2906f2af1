package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transport-requisition/internal/lock"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/internal/workflow"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateRequisitionRequest struct {
	Purpose             string    `json:"purpose" binding:"required"`
	PlacesToVisit       string    `json:"placesToVisit" binding:"required"`
	PlaceToPickup       string    `json:"placeToPickup" binding:"required"`
	NumberOfPassengers  int       `json:"numberOfPassengers" binding:"required,min=1"`
	DateTimeRequired    time.Time `json:"dateTimeRequired" binding:"required"`
	ContactPersonNumber string    `json:"contactPersonNumber" binding:"required"`
}

// UpdateRequisitionRequest only changes the fields that are present.
type UpdateRequisitionRequest struct {
	Purpose             *string    `json:"purpose"`
	PlacesToVisit       *string    `json:"placesToVisit"`
	PlaceToPickup       *string    `json:"placeToPickup"`
	NumberOfPassengers  *int       `json:"numberOfPassengers"`
	DateTimeRequired    *time.Time `json:"dateTimeRequired"`
	ContactPersonNumber *string    `json:"contactPersonNumber"`
}

type AssignRequest struct {
	VehicleID uuid.UUID `json:"vehicleId" binding:"required"`
	DriverID  uuid.UUID `json:"driverId" binding:"required"`
}

type RequisitionCreatedEvent struct {
	RequisitionID uuid.UUID `json:"requisition_id"`
	RequesterID   uuid.UUID `json:"requester_id"`
	ApprovalID    uuid.UUID `json:"approval_id"`
	StageRole     string    `json:"stage_role"`
	ApproverID    uuid.UUID `json:"approver_id"`
}

type RequisitionAssignedEvent struct {
	RequisitionID uuid.UUID `json:"requisition_id"`
	VehicleID     uuid.UUID `json:"vehicle_id"`
	DriverID      uuid.UUID `json:"driver_id"`
}

// --- Interface ---

type RequisitionService interface {
	CreateRequisition(ctx context.Context, requesterID uuid.UUID, req CreateRequisitionRequest) (*model.Requisition, error)
	GetRequisitionByID(ctx context.Context, id uuid.UUID, actor Actor) (*model.Requisition, error)
	GetRequisitionsByRequester(ctx context.Context, userID uuid.UUID) ([]model.Requisition, error)
	GetAllRequisitions(ctx context.Context, actor Actor) ([]model.Requisition, error)
	UpdateRequisition(ctx context.Context, id uuid.UUID, req UpdateRequisitionRequest, actor Actor) (*model.Requisition, error)
	DeleteRequisition(ctx context.Context, id uuid.UUID, actor Actor) error
	SearchRequisitions(ctx context.Context, filter repository.RequisitionFilter, actor Actor) ([]model.Requisition, int64, error)
	AssignVehicleAndDriver(ctx context.Context, id uuid.UUID, req AssignRequest, actor Actor) (*model.Requisition, error)
}

type requisitionService struct {
	repos          repository.Repositories
	approvals      ApprovalService
	chain          workflow.Chain
	resolver       ApproverResolver
	locker         lock.Locker
	conflictWindow time.Duration
	events         EventPublisher
	log            *zap.Logger
}

// NewRequisitionService wires the controller. A zero conflictWindow turns off
// double-booking detection.
func NewRequisitionService(
	repos repository.Repositories,
	approvals ApprovalService,
	chain workflow.Chain,
	resolver ApproverResolver,
	locker lock.Locker,
	conflictWindow time.Duration,
	events EventPublisher,
	log *zap.Logger,
) RequisitionService {
	return &requisitionService{
		repos:          repos,
		approvals:      approvals,
		chain:          chain,
		resolver:       resolver,
		locker:         locker,
		conflictWindow: conflictWindow,
		events:         publisherOrNop(events),
		log:            log,
	}
}

func validateRequisitionFields(purpose, visit, pickup, contact string, passengers int) error {
	switch {
	case strings.TrimSpace(purpose) == "":
		return apperror.ValidationError{Field: "purpose", Msg: "is required"}
	case strings.TrimSpace(visit) == "":
		return apperror.ValidationError{Field: "placesToVisit", Msg: "is required"}
	case strings.TrimSpace(pickup) == "":
		return apperror.ValidationError{Field: "placeToPickup", Msg: "is required"}
	case strings.TrimSpace(contact) == "":
		return apperror.ValidationError{Field: "contactPersonNumber", Msg: "is required"}
	case passengers < 1:
		return apperror.ValidationError{Field: "numberOfPassengers", Msg: "must be at least 1"}
	}
	return nil
}

func (s *requisitionService) CreateRequisition(ctx context.Context, requesterID uuid.UUID, req CreateRequisitionRequest) (*model.Requisition, error) {
	if err := validateRequisitionFields(req.Purpose, req.PlacesToVisit, req.PlaceToPickup, req.ContactPersonNumber, req.NumberOfPassengers); err != nil {
		return nil, err
	}
	if req.DateTimeRequired.IsZero() {
		return nil, apperror.ValidationError{Field: "dateTimeRequired", Msg: "is required"}
	}

	requester, err := s.repos.User.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	requisition := &model.Requisition{
		UserID:              requester.ID,
		Purpose:             req.Purpose,
		PlacesToVisit:       req.PlacesToVisit,
		PlaceToPickup:       req.PlaceToPickup,
		NumberOfPassengers:  req.NumberOfPassengers,
		DateTimeRequired:    req.DateTimeRequired,
		ContactPersonNumber: req.ContactPersonNumber,
		Status:              model.StatusPending,
	}
	actor := Actor{UserID: requester.ID, Role: requester.Role, Department: requester.Department}
	firstRole := s.chain.First()

	var first *model.Approval
	err = s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repos.Requisition.Create(txCtx, requisition); err != nil {
			return fmt.Errorf("failed to create requisition: %w", err)
		}
		if err := writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionCreateRequisition, requisition.ID.String(), requisition.Purpose, map[string]any{
			"number_of_passengers": requisition.NumberOfPassengers,
			"date_time_required":   requisition.DateTimeRequired,
		}); err != nil {
			return err
		}

		approverID, err := s.resolver.Resolve(txCtx, firstRole, requester)
		if err != nil {
			return fmt.Errorf("failed to resolve %s approver: %w", firstRole, err)
		}
		first, err = s.approvals.CreateApproval(txCtx, CreateApprovalRequest{
			RequisitionID:  requisition.ID,
			ApproverUserID: approverID,
			ApproverRole:   firstRole,
		}, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventRequisitionCreated, RequisitionCreatedEvent{
		RequisitionID: requisition.ID,
		RequesterID:   requester.ID,
		ApprovalID:    first.ID,
		StageRole:     first.ApproverRole,
		ApproverID:    first.ApproverUserID,
	})
	s.log.Info("requisition created",
		zap.String("requisition_id", requisition.ID.String()),
		zap.String("requester_id", requester.ID.String()),
		zap.String("first_stage", firstRole),
	)

	requisition.Requester = requester
	requisition.Approvals = []model.Approval{*first}
	return requisition, nil
}

// canView: the requester, or any role that takes part in processing requisitions.
func canView(r *model.Requisition, actor Actor) bool {
	if r.UserID == actor.UserID {
		return true
	}
	return actor.IsStaff() || actor.Role == model.RoleHOD
}

func (s *requisitionService) GetRequisitionByID(ctx context.Context, id uuid.UUID, actor Actor) (*model.Requisition, error) {
	requisition, err := s.repos.Requisition.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(requisition, actor) {
		return nil, apperror.Forbidden("you do not have access to this requisition")
	}
	return requisition, nil
}

func (s *requisitionService) GetRequisitionsByRequester(ctx context.Context, userID uuid.UUID) ([]model.Requisition, error) {
	requisitions, err := s.repos.Requisition.ListByRequester(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requisitions: %w", err)
	}
	return requisitions, nil
}

// departmentScope returns the department an actor's listing is limited to.
// Empty means unrestricted.
func departmentScope(actor Actor) string {
	if actor.Role == model.RoleHOD {
		return actor.Department
	}
	return ""
}

func (s *requisitionService) GetAllRequisitions(ctx context.Context, actor Actor) ([]model.Requisition, error) {
	if !actor.IsStaff() && actor.Role != model.RoleHOD {
		return nil, apperror.Forbidden("access denied: insufficient permissions")
	}
	requisitions, err := s.repos.Requisition.ListAll(ctx, departmentScope(actor))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requisitions: %w", err)
	}
	return requisitions, nil
}

// UpdateRequisition applies the non-nil fields. Moving the required time of a
// requisition that already has resources re-runs the assignment conflict check
// under the same vehicle and driver locks AssignVehicleAndDriver takes.
func (s *requisitionService) UpdateRequisition(ctx context.Context, id uuid.UUID, req UpdateRequisitionRequest, actor Actor) (*model.Requisition, error) {
	var lockedVehicle, lockedDriver *uuid.UUID
	if req.DateTimeRequired != nil {
		current, err := s.repos.Requisition.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if keys := resourceKeys(current.VehicleID, current.DriverID); len(keys) > 0 {
			release, err := lockResources(ctx, s.locker, "assignment", keys...)
			if err != nil {
				return nil, err
			}
			defer release()
			lockedVehicle, lockedDriver = current.VehicleID, current.DriverID
		}
	}

	var requisition *model.Requisition
	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		requisition, err = s.repos.Requisition.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if !actor.IsStaff() {
			if requisition.UserID != actor.UserID {
				return apperror.Forbidden("only the requester can update this requisition")
			}
			if requisition.Status != model.StatusPending {
				return apperror.Validation("only pending requisitions can be updated")
			}
		}

		changed := map[string]any{}
		if req.Purpose != nil {
			requisition.Purpose = *req.Purpose
			changed["purpose"] = *req.Purpose
		}
		if req.PlacesToVisit != nil {
			requisition.PlacesToVisit = *req.PlacesToVisit
			changed["places_to_visit"] = *req.PlacesToVisit
		}
		if req.PlaceToPickup != nil {
			requisition.PlaceToPickup = *req.PlaceToPickup
			changed["place_to_pickup"] = *req.PlaceToPickup
		}
		if req.NumberOfPassengers != nil {
			requisition.NumberOfPassengers = *req.NumberOfPassengers
			changed["number_of_passengers"] = *req.NumberOfPassengers
		}
		if req.DateTimeRequired != nil && !req.DateTimeRequired.Equal(requisition.DateTimeRequired) {
			requisition.DateTimeRequired = *req.DateTimeRequired
			changed["date_time_required"] = *req.DateTimeRequired
		}
		if req.ContactPersonNumber != nil {
			requisition.ContactPersonNumber = *req.ContactPersonNumber
			changed["contact_person_number"] = *req.ContactPersonNumber
		}
		if len(changed) == 0 {
			return nil
		}

		if err := validateRequisitionFields(requisition.Purpose, requisition.PlacesToVisit, requisition.PlaceToPickup,
			requisition.ContactPersonNumber, requisition.NumberOfPassengers); err != nil {
			return err
		}
		if _, moved := changed["date_time_required"]; moved && (requisition.VehicleID != nil || requisition.DriverID != nil) {
			// assigned between our read and the row lock
			if !sameResource(requisition.VehicleID, lockedVehicle) || !sameResource(requisition.DriverID, lockedDriver) {
				return apperror.Conflict("assignment", "vehicle or driver changed while updating, retry")
			}
			if err := s.checkAssignmentConflicts(txCtx, requisition, derefOrNil(requisition.VehicleID), derefOrNil(requisition.DriverID)); err != nil {
				return err
			}
		}
		if err := s.repos.Requisition.Update(txCtx, requisition); err != nil {
			return fmt.Errorf("failed to update requisition: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionUpdateRequisition, requisition.ID.String(), requisition.Purpose, changed)
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Requisition.FindByIDWithRelations(ctx, requisition.ID)
}

func (s *requisitionService) DeleteRequisition(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err := s.repos.Requisition.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if !actor.IsAdmin() {
			if requisition.UserID != actor.UserID {
				return apperror.Forbidden("only the requester can delete this requisition")
			}
			if requisition.Status != model.StatusPending {
				return apperror.Validation("only pending requisitions can be deleted")
			}
		}

		if err := s.repos.Approval.DeleteByRequisition(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete approvals: %w", err)
		}
		if err := s.repos.Requisition.Delete(txCtx, id); err != nil {
			return err
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionDeleteRequisition, id.String(), requisition.Purpose, map[string]any{
			"status": requisition.Status,
		})
	})
}

func (s *requisitionService) SearchRequisitions(ctx context.Context, filter repository.RequisitionFilter, actor Actor) ([]model.Requisition, int64, error) {
	order, err := checkSort(filter.SortBy, repository.RequisitionSortFields, filter.SortOrder)
	if err != nil {
		return nil, 0, err
	}
	filter.SortOrder = order
	if filter.MinPassengers != nil && filter.MaxPassengers != nil && *filter.MinPassengers > *filter.MaxPassengers {
		return nil, 0, apperror.ValidationError{Field: "minPassengers", Msg: "must not exceed maxPassengers"}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, 0, apperror.ValidationError{Field: "startDate", Msg: "must not be after endDate"}
	}

	switch {
	case actor.IsStaff():
	case actor.Role == model.RoleHOD:
		filter.Department = actor.Department
	default:
		// everyone else only ever sees their own
		self := actor.UserID
		filter.RequesterID = &self
	}

	requisitions, total, err := s.repos.Requisition.Search(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search requisitions: %w", err)
	}
	return requisitions, total, nil
}

// AssignVehicleAndDriver binds resources to an APPROVED requisition. The
// vehicle and driver locks are held across the conflict check and the write
// so two concurrent assignments cannot both pass the check.
func (s *requisitionService) AssignVehicleAndDriver(ctx context.Context, id uuid.UUID, req AssignRequest, actor Actor) (*model.Requisition, error) {
	if req.VehicleID == uuid.Nil || req.DriverID == uuid.Nil {
		return nil, apperror.Validation("vehicleId and driverId are required")
	}

	release, err := lockResources(ctx, s.locker, "assignment", vehicleKey(req.VehicleID), driverKey(req.DriverID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err := s.repos.Requisition.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if requisition.Status != model.StatusApproved {
			return apperror.Validation("requisition must be approved before assignment")
		}

		vehicle, err := s.repos.Vehicle.GetByIDForUpdate(txCtx, req.VehicleID)
		if err != nil {
			return err
		}
		if vehicle.Status != model.VehicleStatusActive {
			return apperror.ValidationError{Field: "vehicleId", Msg: "vehicle is " + vehicle.Status}
		}

		driver, err := s.repos.Driver.GetByIDForUpdate(txCtx, req.DriverID)
		if err != nil {
			return err
		}
		if driver.Status != model.DriverStatusActive {
			return apperror.ValidationError{Field: "driverId", Msg: "driver is " + driver.Status}
		}

		if err := s.checkAssignmentConflicts(txCtx, requisition, vehicle.ID, driver.ID); err != nil {
			return err
		}

		requisition.VehicleID = &vehicle.ID
		requisition.DriverID = &driver.ID
		if err := s.repos.Requisition.Update(txCtx, requisition); err != nil {
			return fmt.Errorf("failed to assign resources: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionAssignResources, requisition.ID.String(), requisition.Purpose, map[string]any{
			"vehicle_id": vehicle.ID,
			"driver_id":  driver.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventRequisitionAssigned, RequisitionAssignedEvent{
		RequisitionID: id,
		VehicleID:     req.VehicleID,
		DriverID:      req.DriverID,
	})
	s.log.Info("vehicle and driver assigned",
		zap.String("requisition_id", id.String()),
		zap.String("vehicle_id", req.VehicleID.String()),
		zap.String("driver_id", req.DriverID.String()),
	)
	return s.repos.Requisition.FindByIDWithRelations(ctx, id)
}

// checkAssignmentConflicts rejects requisition's time slot when another
// APPROVED requisition uses the vehicle or the driver within the window.
// Callers hold the vehicle and driver locks.
func (s *requisitionService) checkAssignmentConflicts(ctx context.Context, requisition *model.Requisition, vehicleID, driverID uuid.UUID) error {
	if s.conflictWindow <= 0 {
		return nil
	}
	at := requisition.DateTimeRequired
	conflicts, err := s.repos.Requisition.FindAssignmentConflicts(ctx, requisition.ID, vehicleID, driverID,
		at.Add(-s.conflictWindow), at.Add(s.conflictWindow))
	if err != nil {
		return fmt.Errorf("failed to check assignment conflicts: %w", err)
	}
	if len(conflicts) > 0 {
		return apperror.Conflict("assignment", fmt.Sprintf("vehicle or driver already assigned to requisition %s at %s",
			conflicts[0].ID, conflicts[0].DateTimeRequired.Format(time.RFC3339)))
	}
	return nil
}
