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

type CreateDriverRequest struct {
	UserID        uuid.UUID `json:"userId" binding:"required"`
	LicenseNumber string    `json:"licenseNumber" binding:"required"`
	Status        string    `json:"status"`
}

type UpdateDriverRequest struct {
	LicenseNumber *string `json:"licenseNumber"`
	Status        *string `json:"status"`
}

type DriverService interface {
	CreateDriver(ctx context.Context, req CreateDriverRequest, actor Actor) (*model.Driver, error)
	GetDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	ListDrivers(ctx context.Context, status string, page, limit int) ([]model.Driver, int64, error)
	UpdateDriver(ctx context.Context, id uuid.UUID, req UpdateDriverRequest, actor Actor) (*model.Driver, error)
}

type driverService struct {
	repos  repository.Repositories
	locker lock.Locker
}

func NewDriverService(repos repository.Repositories, locker lock.Locker) DriverService {
	return &driverService{repos: repos, locker: locker}
}

func (s *driverService) ensureLicenseFree(ctx context.Context, license string, self uuid.UUID) error {
	existing, err := s.repos.Driver.GetByLicense(ctx, license)
	if err == nil {
		if existing.ID == self {
			return nil
		}
		return apperror.Conflict("driver", "license number already registered")
	}
	if apperror.IsNotFound(err) {
		return nil
	}
	return err
}

// CreateDriver registers an existing user as a driver and switches the
// user's role to DRIVER in the same transaction.
func (s *driverService) CreateDriver(ctx context.Context, req CreateDriverRequest, actor Actor) (*model.Driver, error) {
	license := strings.TrimSpace(req.LicenseNumber)
	if license == "" {
		return nil, apperror.ValidationError{Field: "licenseNumber", Msg: "is required"}
	}
	status := req.Status
	if status == "" {
		status = model.DriverStatusActive
	}
	if !model.ValidDriverStatus(status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "unknown driver status " + status}
	}

	driver := &model.Driver{
		UserID:        req.UserID,
		LicenseNumber: license,
		Status:        status,
	}

	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repos.User.GetByID(txCtx, req.UserID)
		if err != nil {
			return err
		}

		_, err = s.repos.Driver.GetByUserID(txCtx, req.UserID)
		if err == nil {
			return apperror.Conflict("driver", "user is already registered as a driver")
		}
		if !apperror.IsNotFound(err) {
			return err
		}
		if err := s.ensureLicenseFree(txCtx, license, uuid.Nil); err != nil {
			return err
		}

		if err := s.repos.Driver.Create(txCtx, driver); err != nil {
			return fmt.Errorf("failed to create driver: %w", err)
		}
		if err := s.repos.User.UpdateRole(txCtx, user.ID, model.RoleDriver); err != nil {
			return fmt.Errorf("failed to update user role: %w", err)
		}

		user.Role = model.RoleDriver
		driver.User = user
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionRegisterDriver, driver.ID.String(), user.Name, map[string]any{
			"user_id":        user.ID,
			"license_number": license,
		})
	})
	if err != nil {
		return nil, err
	}
	return driver, nil
}

func (s *driverService) GetDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	return s.repos.Driver.GetByID(ctx, id)
}

func (s *driverService) ListDrivers(ctx context.Context, status string, page, limit int) ([]model.Driver, int64, error) {
	if status != "" && !model.ValidDriverStatus(status) {
		return nil, 0, apperror.ValidationError{Field: "status", Msg: "unknown driver status " + status}
	}
	page, limit = normalizePage(page, limit)
	drivers, total, err := s.repos.Driver.List(ctx, status, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, total, nil
}

// UpdateDriver changes the license and/or status. Taking a driver off ACTIVE
// is refused while upcoming approved requisitions still name them, checked
// under the driver lock the assignment path also takes.
func (s *driverService) UpdateDriver(ctx context.Context, id uuid.UUID, req UpdateDriverRequest, actor Actor) (*model.Driver, error) {
	if req.Status != nil && !model.ValidDriverStatus(*req.Status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "unknown driver status " + *req.Status}
	}
	var license string
	if req.LicenseNumber != nil {
		license = strings.TrimSpace(*req.LicenseNumber)
		if license == "" {
			return nil, apperror.ValidationError{Field: "licenseNumber", Msg: "must not be empty"}
		}
	}

	release, err := lockResources(ctx, s.locker, "driver", driverKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		driver, err := s.repos.Driver.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if req.LicenseNumber != nil {
			if err := s.ensureLicenseFree(txCtx, license, driver.ID); err != nil {
				return err
			}
			driver.LicenseNumber = license
		}

		previous := driver.Status
		if req.Status != nil && *req.Status != previous {
			if *req.Status != model.DriverStatusActive {
				upcoming, err := s.repos.Requisition.CountUpcomingForDriver(txCtx, id, time.Now())
				if err != nil {
					return fmt.Errorf("failed to check upcoming assignments: %w", err)
				}
				if upcoming > 0 {
					return apperror.Conflict("driver", fmt.Sprintf("driver has %d upcoming assigned requisitions", upcoming))
				}
			}
			driver.Status = *req.Status
		}

		if err := s.repos.Driver.Update(txCtx, driver); err != nil {
			return fmt.Errorf("failed to update driver: %w", err)
		}
		if driver.Status == previous {
			return nil
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionChangeDriver, driver.ID.String(), driver.LicenseNumber, map[string]any{
			"from": previous,
			"to":   driver.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Driver.GetByID(ctx, id)
}
