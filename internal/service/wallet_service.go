package service

import (
	"context"
	"fmt"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TopUpRequest struct {
	UserID uuid.UUID       `json:"userId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type WalletResponse struct {
	UserID  uuid.UUID       `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type WalletService interface {
	Balance(ctx context.Context, userID uuid.UUID) (*WalletResponse, error)
	TopUp(ctx context.Context, req TopUpRequest, actor Actor) (*WalletResponse, error)
}

type walletService struct {
	repos repository.Repositories
	log   *zap.Logger
}

func NewWalletService(repos repository.Repositories, log *zap.Logger) WalletService {
	return &walletService{repos: repos, log: log}
}

func (s *walletService) Balance(ctx context.Context, userID uuid.UUID) (*WalletResponse, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &WalletResponse{UserID: user.ID, Balance: user.EWalletBalance}, nil
}

// TopUp credits a positive amount to a user's e-wallet under the user row lock
// that ticket debits also take.
func (s *walletService) TopUp(ctx context.Context, req TopUpRequest, actor Actor) (*WalletResponse, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperror.ValidationError{Field: "amount", Msg: "must be greater than zero"}
	}

	var balance decimal.Decimal
	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repos.User.GetByIDForUpdate(txCtx, req.UserID)
		if err != nil {
			return err
		}
		balance = user.EWalletBalance.Add(amount)
		if err := s.repos.User.UpdateWalletBalance(txCtx, user.ID, balance); err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionTopUpWallet, user.ID.String(), user.Name, map[string]any{
			"amount":        amount.StringFixed(2),
			"balance_after": balance.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("wallet topped up", zap.String("user_id", req.UserID.String()), zap.String("amount", amount.StringFixed(2)))
	return &WalletResponse{UserID: req.UserID, Balance: balance}, nil
}
