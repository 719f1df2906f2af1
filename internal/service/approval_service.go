package service

import (
	"context"
	"fmt"
	"time"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/internal/workflow"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateApprovalRequest struct {
	RequisitionID  uuid.UUID `json:"requisitionId" binding:"required"`
	ApproverUserID uuid.UUID `json:"approverUserId" binding:"required"`
	ApproverRole   string    `json:"approverRole" binding:"required"`
	Comments       string    `json:"comments"`
}

type ProcessApprovalRequest struct {
	Status   string `json:"status" binding:"required"`
	Comments string `json:"comments"`
}

// ApprovalProcessedEvent is broadcast after a decision commits.
type ApprovalProcessedEvent struct {
	ApprovalID        uuid.UUID  `json:"approval_id"`
	RequisitionID     uuid.UUID  `json:"requisition_id"`
	Decision          string     `json:"decision"`
	StageRole         string     `json:"stage_role"`
	RequisitionStatus string     `json:"requisition_status"`
	NextApprovalID    *uuid.UUID `json:"next_approval_id,omitempty"`
	NextRole          string     `json:"next_role,omitempty"`
}

// --- Interface ---

type ApprovalService interface {
	CreateApproval(ctx context.Context, req CreateApprovalRequest, actor Actor) (*model.Approval, error)
	ProcessApproval(ctx context.Context, id uuid.UUID, req ProcessApprovalRequest, actor Actor) (*model.Approval, error)
	GetPendingApprovalsForUser(ctx context.Context, userID uuid.UUID, role string) ([]model.Approval, error)
	GetApprovalByID(ctx context.Context, id uuid.UUID) (*model.Approval, error)
	GetApprovalsByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.Approval, error)
	DeleteApproval(ctx context.Context, id uuid.UUID, actor Actor) error
}

type approvalService struct {
	repos    repository.Repositories
	chain    workflow.Chain
	resolver ApproverResolver
	events   EventPublisher
	log      *zap.Logger
}

func NewApprovalService(repos repository.Repositories, chain workflow.Chain, resolver ApproverResolver, events EventPublisher, log *zap.Logger) ApprovalService {
	return &approvalService{
		repos:    repos,
		chain:    chain,
		resolver: resolver,
		events:   publisherOrNop(events),
		log:      log,
	}
}

// --- Implementation ---

// CreateApproval opens a stage. A requisition has at most one PENDING approval
// at a time, so opening a second one is a conflict.
func (s *approvalService) CreateApproval(ctx context.Context, req CreateApprovalRequest, actor Actor) (*model.Approval, error) {
	if !s.chain.Contains(req.ApproverRole) {
		return nil, apperror.ValidationError{Field: "approverRole", Msg: fmt.Sprintf("must be one of %v", s.chain.Stages())}
	}

	approval := &model.Approval{
		RequisitionID:  req.RequisitionID,
		ApproverUserID: req.ApproverUserID,
		ApproverRole:   req.ApproverRole,
		ApprovalStatus: model.StatusPending,
		Comments:       req.Comments,
	}

	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err := s.repos.Requisition.FindByIDForUpdate(txCtx, req.RequisitionID)
		if err != nil {
			return err
		}
		if requisition.Status != model.StatusPending {
			return apperror.Conflict("requisition", "is already "+requisition.Status)
		}
		if _, err := s.repos.User.GetByID(txCtx, req.ApproverUserID); err != nil {
			return fmt.Errorf("approver: %w", err)
		}

		pending, err := s.repos.Approval.CountPending(txCtx, req.RequisitionID)
		if err != nil {
			return fmt.Errorf("failed to count pending approvals: %w", err)
		}
		if pending > 0 {
			return apperror.Conflict("approval", "requisition already has a pending approval")
		}

		if err := s.repos.Approval.Create(txCtx, approval); err != nil {
			return fmt.Errorf("failed to create approval: %w", err)
		}

		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionCreateApproval, approval.ID.String(), approval.ApproverRole, map[string]any{
			"requisition_id":   req.RequisitionID,
			"approver_user_id": req.ApproverUserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return approval, nil
}

// ProcessApproval records a stage decision and advances the requisition along
// the chain. The decision, the requisition change and the next stage commit
// together or not at all.
func (s *approvalService) ProcessApproval(ctx context.Context, id uuid.UUID, req ProcessApprovalRequest, actor Actor) (*model.Approval, error) {
	if !workflow.ValidDecision(req.Status) {
		return nil, apperror.ValidationError{Field: "status", Msg: "must be APPROVED or REJECTED"}
	}

	var (
		approval *model.Approval
		outcome  workflow.Outcome
		next     *model.Approval
	)

	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Row locks follow requisition then approval, the same order
		// DeleteRequisition takes them in.
		unlocked, err := s.repos.Approval.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		requisition, err := s.repos.Requisition.FindByIDForUpdate(txCtx, unlocked.RequisitionID)
		if err != nil {
			return err
		}
		approval, err = s.repos.Approval.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if !workflow.CanDecide(actor.Role, approval.ApproverRole) {
			return apperror.Forbidden(fmt.Sprintf("role %s cannot decide a %s stage", actor.Role, approval.ApproverRole))
		}
		if approval.ApprovalStatus != model.StatusPending {
			return apperror.Conflict("approval", "already "+approval.ApprovalStatus)
		}
		if requisition.Status != model.StatusPending {
			return apperror.Conflict("requisition", "is already "+requisition.Status)
		}

		outcome, err = s.chain.Decide(approval.ApproverRole, req.Status)
		if err != nil {
			return apperror.ValidationError{Msg: err.Error(), Err: err}
		}

		now := time.Now()
		approval.ApprovalStatus = req.Status
		if req.Comments != "" {
			approval.Comments = req.Comments
		}
		approval.ApprovalDate = &now
		if err := s.repos.Approval.Update(txCtx, approval); err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}

		switch outcome.Kind {
		case workflow.OpenNextStage:
			requester, err := s.repos.User.GetByID(txCtx, requisition.UserID)
			if err != nil {
				return fmt.Errorf("requester: %w", err)
			}
			approverID, err := s.resolver.Resolve(txCtx, outcome.NextRole, requester)
			if err != nil {
				return fmt.Errorf("failed to resolve %s approver: %w", outcome.NextRole, err)
			}
			next = &model.Approval{
				RequisitionID:  requisition.ID,
				ApproverUserID: approverID,
				ApproverRole:   outcome.NextRole,
				ApprovalStatus: model.StatusPending,
			}
			if err := s.repos.Approval.Create(txCtx, next); err != nil {
				return fmt.Errorf("failed to open %s stage: %w", outcome.NextRole, err)
			}
		case workflow.FinalApproved, workflow.Rejected:
			if err := s.repos.Requisition.UpdateStatus(txCtx, requisition.ID, outcome.NewStatus); err != nil {
				return fmt.Errorf("failed to update requisition status: %w", err)
			}
		}

		action := model.ActionApproveStage
		if req.Status == model.StatusRejected {
			action = model.ActionRejectStage
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), action, approval.ID.String(), approval.ApproverRole, map[string]any{
			"requisition_id":     requisition.ID,
			"acting_role":        actor.Role,
			"outcome":            outcome.Kind.String(),
			"next_stage":         outcome.NextRole,
			"requisition_status": outcome.NewStatus,
			"comments":           req.Comments,
		})
	})
	if err != nil {
		return nil, err
	}

	event := ApprovalProcessedEvent{
		ApprovalID:        approval.ID,
		RequisitionID:     approval.RequisitionID,
		Decision:          approval.ApprovalStatus,
		StageRole:         approval.ApproverRole,
		RequisitionStatus: outcome.NewStatus,
		NextRole:          outcome.NextRole,
	}
	if next != nil {
		event.NextApprovalID = &next.ID
	}
	s.events.Publish(EventApprovalProcessed, event)

	s.log.Info("approval processed",
		zap.String("approval_id", approval.ID.String()),
		zap.String("requisition_id", approval.RequisitionID.String()),
		zap.String("stage_role", approval.ApproverRole),
		zap.String("decision", approval.ApprovalStatus),
		zap.String("outcome", outcome.Kind.String()),
		zap.String("acting_role", actor.Role),
	)
	return approval, nil
}

func (s *approvalService) GetPendingApprovalsForUser(ctx context.Context, userID uuid.UUID, role string) ([]model.Approval, error) {
	approvals, err := s.repos.Approval.ListPendingForUser(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending approvals: %w", err)
	}
	return approvals, nil
}

func (s *approvalService) GetApprovalByID(ctx context.Context, id uuid.UUID) (*model.Approval, error) {
	return s.repos.Approval.FindByIDWithRelations(ctx, id)
}

func (s *approvalService) GetApprovalsByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.Approval, error) {
	if _, err := s.repos.Requisition.FindByID(ctx, requisitionID); err != nil {
		return nil, err
	}
	approvals, err := s.repos.Approval.ListByRequisition(ctx, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approvals: %w", err)
	}
	return approvals, nil
}

func (s *approvalService) DeleteApproval(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		approval, err := s.repos.Approval.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repos.Approval.Delete(txCtx, id); err != nil {
			return err
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionDeleteApproval, id.String(), approval.ApproverRole, map[string]any{
			"requisition_id":  approval.RequisitionID,
			"approval_status": approval.ApprovalStatus,
		})
	})
}
