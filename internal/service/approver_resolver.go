package service

import (
	"context"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApproverResolver picks the user who must decide a stage of a requisition.
type ApproverResolver interface {
	Resolve(ctx context.Context, stageRole string, requester *model.User) (uuid.UUID, error)
}

type directoryResolver struct {
	users repository.UserRepository
	log   *zap.Logger
}

// NewDirectoryResolver resolves approvers from the user table: the HOD of the
// requester's department, or the longest-standing holder of any other stage
// role. With nobody holding the role the requester is used as a placeholder
// approver and a warning is logged; ADMIN can still decide such a stage.
func NewDirectoryResolver(users repository.UserRepository, log *zap.Logger) ApproverResolver {
	return &directoryResolver{users: users, log: log}
}

func (r *directoryResolver) Resolve(ctx context.Context, stageRole string, requester *model.User) (uuid.UUID, error) {
	department := ""
	if stageRole == model.RoleHOD {
		department = requester.Department
	}

	approver, err := r.users.FirstByRole(ctx, stageRole, department)
	if err == nil {
		return approver.ID, nil
	}
	if !apperror.IsNotFound(err) {
		return uuid.Nil, err
	}

	r.log.Warn("no approver holds stage role, using requester as placeholder",
		zap.String("stage_role", stageRole),
		zap.String("department", department),
		zap.String("requester_id", requester.ID.String()),
	)
	return requester.ID, nil
}
