package service

import (
	"context"
	"fmt"
	"time"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateSubscriptionRequest struct {
	UserID        uuid.UUID       `json:"userId" binding:"required"`
	RouteID       uuid.UUID       `json:"routeId" binding:"required"`
	StartDate     time.Time       `json:"startDate" binding:"required"`
	EndDate       *time.Time      `json:"endDate"`
	MonthlyCharge decimal.Decimal `json:"monthlyCharge"`
}

type UpdateSubscriptionRequest struct {
	RouteID       *uuid.UUID       `json:"routeId"`
	StartDate     *time.Time       `json:"startDate"`
	EndDate       *time.Time       `json:"endDate"`
	MonthlyCharge *decimal.Decimal `json:"monthlyCharge"`
	Status        *string          `json:"status"`
}

type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest, actor Actor) (*model.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID, actor Actor) (*model.Subscription, error)
	SearchSubscriptions(ctx context.Context, filter repository.SubscriptionFilter, actor Actor) ([]model.Subscription, int64, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, req UpdateSubscriptionRequest, actor Actor) (*model.Subscription, error)
	DeleteSubscription(ctx context.Context, id uuid.UUID, actor Actor) error
}

type subscriptionService struct {
	repos repository.Repositories
}

func NewSubscriptionService(repos repository.Repositories) SubscriptionService {
	return &subscriptionService{repos: repos}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest, actor Actor) (*model.Subscription, error) {
	sub := &model.Subscription{
		UserID:        req.UserID,
		RouteID:       req.RouteID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MonthlyCharge: req.MonthlyCharge.Round(2),
		Status:        model.SubscriptionStatusActive,
	}
	if err := validateSubscription(sub); err != nil {
		return nil, err
	}

	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repos.User.GetByID(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if _, err := s.repos.Route.GetByID(txCtx, req.RouteID); err != nil {
			return err
		}
		if err := s.repos.Subscription.Create(txCtx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionCreateSubscription, sub.ID.String(), user.Name, map[string]any{
			"route_id":       sub.RouteID,
			"monthly_charge": sub.MonthlyCharge.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Subscription.FindByIDWithRelations(ctx, sub.ID)
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id uuid.UUID, actor Actor) (*model.Subscription, error) {
	sub, err := s.repos.Subscription.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && sub.UserID != actor.UserID {
		return nil, apperror.Forbidden("access denied: not your subscription")
	}
	return sub, nil
}

// SearchSubscriptions scopes non-staff callers to their own passes.
func (s *subscriptionService) SearchSubscriptions(ctx context.Context, filter repository.SubscriptionFilter, actor Actor) ([]model.Subscription, int64, error) {
	order, err := checkSort(filter.SortBy, repository.SubscriptionSortFields, filter.SortOrder)
	if err != nil {
		return nil, 0, err
	}
	filter.SortOrder = order
	if filter.Status != "" && !model.ValidSubscriptionStatus(filter.Status) {
		return nil, 0, apperror.ValidationError{Field: "status", Msg: "unknown subscription status " + filter.Status}
	}
	if !actor.IsStaff() {
		self := actor.UserID
		filter.UserID = &self
	}

	subs, total, err := s.repos.Subscription.Search(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search subscriptions: %w", err)
	}
	return subs, total, nil
}

func (s *subscriptionService) UpdateSubscription(ctx context.Context, id uuid.UUID, req UpdateSubscriptionRequest, actor Actor) (*model.Subscription, error) {
	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.repos.Subscription.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if req.RouteID != nil && *req.RouteID != sub.RouteID {
			if _, err := s.repos.Route.GetByID(txCtx, *req.RouteID); err != nil {
				return err
			}
			sub.RouteID = *req.RouteID
		}
		if req.StartDate != nil {
			sub.StartDate = *req.StartDate
		}
		if req.EndDate != nil {
			end := *req.EndDate
			sub.EndDate = &end
		}
		if req.MonthlyCharge != nil {
			sub.MonthlyCharge = req.MonthlyCharge.Round(2)
		}
		if req.Status != nil {
			sub.Status = *req.Status
		}
		if err := validateSubscription(sub); err != nil {
			return err
		}

		if err := s.repos.Subscription.Update(txCtx, sub); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionUpdateSubscription, sub.ID.String(), sub.UserID.String(), map[string]any{
			"route_id":       sub.RouteID,
			"status":         sub.Status,
			"monthly_charge": sub.MonthlyCharge.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Subscription.FindByIDWithRelations(ctx, id)
}

func (s *subscriptionService) DeleteSubscription(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.repos.Subscription.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repos.Subscription.Delete(txCtx, id); err != nil {
			return err
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionDeleteSubscription, id.String(), sub.UserID.String(), map[string]any{
			"route_id": sub.RouteID,
		})
	})
}

func validateSubscription(sub *model.Subscription) error {
	switch {
	case sub.StartDate.IsZero():
		return apperror.ValidationError{Field: "startDate", Msg: "is required"}
	case sub.EndDate != nil && sub.EndDate.Before(sub.StartDate):
		return apperror.ValidationError{Field: "endDate", Msg: "must not be before startDate"}
	case sub.MonthlyCharge.IsNegative():
		return apperror.ValidationError{Field: "monthlyCharge", Msg: "must not be negative"}
	case !model.ValidSubscriptionStatus(sub.Status):
		return apperror.ValidationError{Field: "status", Msg: "must be ACTIVE or INACTIVE"}
	}
	return nil
}
