package repository

import (
	"context"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Approval, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Approval, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Approval, error)
	ListPendingForUser(ctx context.Context, userID uuid.UUID, role string) ([]model.Approval, error)
	ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.Approval, error)
	CountPending(ctx context.Context, requisitionID uuid.UUID) (int64, error)
	Update(ctx context.Context, approval *model.Approval) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByRequisition(ctx context.Context, requisitionID uuid.UUID) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Create(approval).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Approval, error) {
	var approval model.Approval
	if err := GetDB(ctx, r.db).First(&approval, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "approval")
	}
	return &approval, nil
}

func (r *approvalRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Approval, error) {
	var approval model.Approval
	if err := forUpdate(GetDB(ctx, r.db)).First(&approval, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "approval")
	}
	return &approval, nil
}

func (r *approvalRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Approval, error) {
	var approval model.Approval
	err := GetDB(ctx, r.db).
		Preload("Requisition").
		Preload("Requisition.Requester").
		Preload("ApproverUser").
		First(&approval, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "approval")
	}
	return &approval, nil
}

func (r *approvalRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID, role string) ([]model.Approval, error) {
	var approvals []model.Approval
	err := GetDB(ctx, r.db).
		Preload("Requisition").
		Preload("Requisition.Requester").
		Where("approver_user_id = ? AND approver_role = ? AND approval_status = ?", userID, role, model.StatusPending).
		Order("created_at DESC").
		Find(&approvals).Error
	return approvals, err
}

func (r *approvalRepository) ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.Approval, error) {
	var approvals []model.Approval
	err := GetDB(ctx, r.db).
		Preload("ApproverUser").
		Where("requisition_id = ?", requisitionID).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}

func (r *approvalRepository) CountPending(ctx context.Context, requisitionID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Approval{}).
		Where("requisition_id = ? AND approval_status = ?", requisitionID, model.StatusPending).
		Count(&count).Error
	return count, err
}

func (r *approvalRepository) Update(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Model(approval).Select("ApprovalStatus", "Comments", "ApprovalDate").Updates(approval).Error
}

func (r *approvalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&model.Approval{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "approval")
	}
	return nil
}

func (r *approvalRepository) DeleteByRequisition(ctx context.Context, requisitionID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("requisition_id = ?", requisitionID).Delete(&model.Approval{}).Error
}
