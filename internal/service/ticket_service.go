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
	"go.uber.org/zap"
)

// BookTicketRequest books one seat. UserID defaults to the caller; only an
// ADMIN may book for someone else.
type BookTicketRequest struct {
	TripID uuid.UUID       `json:"tripId" binding:"required"`
	UserID *uuid.UUID      `json:"userId"`
	Fare   decimal.Decimal `json:"fare"`
}

type TicketService interface {
	BookTicket(ctx context.Context, req BookTicketRequest, actor Actor) (*model.Ticket, error)
	GetTicket(ctx context.Context, id uuid.UUID, actor Actor) (*model.Ticket, error)
	SearchTickets(ctx context.Context, filter repository.TicketFilter, actor Actor) ([]model.Ticket, int64, error)
	CancelTicket(ctx context.Context, id uuid.UUID, actor Actor) (*model.Ticket, error)
	DeleteTicket(ctx context.Context, id uuid.UUID, actor Actor) error
}

type ticketService struct {
	repos repository.Repositories
	log   *zap.Logger
}

func NewTicketService(repos repository.Repositories, log *zap.Logger) TicketService {
	return &ticketService{repos: repos, log: log}
}

// BookTicket debits the fare, creates the ticket and takes the seat in one
// transaction. Rows are locked trip first, then the holder.
func (s *ticketService) BookTicket(ctx context.Context, req BookTicketRequest, actor Actor) (*model.Ticket, error) {
	holder := actor.UserID
	if req.UserID != nil && *req.UserID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, apperror.Forbidden("only an admin can book for another user")
		}
		holder = *req.UserID
	}
	if req.Fare.IsNegative() {
		return nil, apperror.ValidationError{Field: "fare", Msg: "must not be negative"}
	}
	fare := req.Fare.Round(2)

	var (
		ticket  *model.Ticket
		balance decimal.Decimal
	)
	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		trip, err := s.repos.Trip.FindByIDForUpdate(txCtx, req.TripID)
		if err != nil {
			return err
		}
		if trip.Status != model.TripStatusBooked {
			return apperror.ValidationError{Field: "tripId", Msg: "trip is " + trip.Status}
		}
		if trip.AvailableSeats <= 0 {
			return apperror.ValidationError{Field: "tripId", Msg: "no available seats for this trip"}
		}

		user, err := s.repos.User.GetByIDForUpdate(txCtx, holder)
		if err != nil {
			return err
		}
		if user.EWalletBalance.LessThan(fare) {
			return apperror.ValidationError{Field: "fare", Msg: "insufficient e-wallet balance"}
		}
		balance = user.EWalletBalance.Sub(fare)
		if err := s.repos.User.UpdateWalletBalance(txCtx, user.ID, balance); err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}

		ticket = &model.Ticket{
			TripID:          trip.ID,
			UserID:          user.ID,
			Fare:            fare,
			Status:          model.TicketStatusConfirmed,
			BookingDateTime: time.Now(),
		}
		if err := s.repos.Ticket.Create(txCtx, ticket); err != nil {
			return fmt.Errorf("failed to create ticket: %w", err)
		}

		trip.AvailableSeats--
		if err := s.repos.Trip.Update(txCtx, trip); err != nil {
			return fmt.Errorf("failed to take seat: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionBookTicket, ticket.ID.String(), user.Name, map[string]any{
			"trip_id":        trip.ID,
			"fare":           fare.StringFixed(2),
			"balance_after":  balance.StringFixed(2),
			"seats_left":     trip.AvailableSeats,
			"booked_for_id":  user.ID,
			"booked_by_role": actor.Role,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ticket booked",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("trip_id", ticket.TripID.String()),
		zap.String("user_id", ticket.UserID.String()),
		zap.String("fare", fare.StringFixed(2)),
	)
	return s.repos.Ticket.FindByIDWithRelations(ctx, ticket.ID)
}

func (s *ticketService) GetTicket(ctx context.Context, id uuid.UUID, actor Actor) (*model.Ticket, error) {
	ticket, err := s.repos.Ticket.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && ticket.UserID != actor.UserID {
		return nil, apperror.Forbidden("access denied: not your ticket")
	}
	return ticket, nil
}

// SearchTickets scopes everyone but ADMIN and TRANSPORT_OFFICER to their own tickets.
func (s *ticketService) SearchTickets(ctx context.Context, filter repository.TicketFilter, actor Actor) ([]model.Ticket, int64, error) {
	order, err := checkSort(filter.SortBy, repository.TicketSortFields, filter.SortOrder)
	if err != nil {
		return nil, 0, err
	}
	filter.SortOrder = order
	if filter.Status != "" && !model.ValidTicketStatus(filter.Status) {
		return nil, 0, apperror.ValidationError{Field: "status", Msg: "unknown ticket status " + filter.Status}
	}
	if !actor.IsStaff() {
		self := actor.UserID
		filter.UserID = &self
	}

	tickets, total, err := s.repos.Ticket.Search(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search tickets: %w", err)
	}
	return tickets, total, nil
}

// CancelTicket refunds a CONFIRMED ticket and gives its seat back. Holders
// may cancel their own tickets; staff may cancel any.
func (s *ticketService) CancelTicket(ctx context.Context, id uuid.UUID, actor Actor) (*model.Ticket, error) {
	err := s.withLockedTicket(ctx, id, func(txCtx context.Context, trip *model.Trip, ticket *model.Ticket) error {
		if !actor.IsStaff() && ticket.UserID != actor.UserID {
			return apperror.Forbidden("only the holder can cancel this ticket")
		}
		if ticket.Status != model.TicketStatusConfirmed {
			return apperror.Conflict("ticket", "is already "+ticket.Status)
		}
		refunded, err := refundTicket(txCtx, s.repos, ticket)
		if err != nil {
			return err
		}
		if err := releaseSeats(txCtx, s.repos, trip, 1); err != nil {
			return err
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionCancelTicket, ticket.ID.String(), trip.ID.String(), map[string]any{
			"refund":        ticket.Fare.StringFixed(2),
			"balance_after": refunded.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Ticket.FindByIDWithRelations(ctx, id)
}

// DeleteTicket removes a ticket, refunding it first when still CONFIRMED.
func (s *ticketService) DeleteTicket(ctx context.Context, id uuid.UUID, actor Actor) error {
	if !actor.IsStaff() {
		return apperror.Forbidden("access denied: insufficient permissions")
	}
	return s.withLockedTicket(ctx, id, func(txCtx context.Context, trip *model.Trip, ticket *model.Ticket) error {
		details := map[string]any{"status": ticket.Status}
		if ticket.Status == model.TicketStatusConfirmed {
			if _, err := refundTicket(txCtx, s.repos, ticket); err != nil {
				return err
			}
			if err := releaseSeats(txCtx, s.repos, trip, 1); err != nil {
				return err
			}
			details["refund"] = ticket.Fare.StringFixed(2)
		}
		if err := s.repos.Ticket.Delete(txCtx, ticket.ID); err != nil {
			return err
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionDeleteTicket, ticket.ID.String(), trip.ID.String(), details)
	})
}

// withLockedTicket runs fn in a transaction holding the trip row and then the
// ticket row, the order BookTicket and trip cancellation use.
func (s *ticketService) withLockedTicket(ctx context.Context, id uuid.UUID, fn func(txCtx context.Context, trip *model.Trip, ticket *model.Ticket) error) error {
	return s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		unlocked, err := s.repos.Ticket.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		trip, err := s.repos.Trip.FindByIDForUpdate(txCtx, unlocked.TripID)
		if err != nil {
			return err
		}
		ticket, err := s.repos.Ticket.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		return fn(txCtx, trip, ticket)
	})
}

// refundTicket credits the fare back to the holder and marks the ticket
// CANCELED. It returns the holder's new balance. Must run inside a transaction.
func refundTicket(ctx context.Context, repos repository.Repositories, ticket *model.Ticket) (decimal.Decimal, error) {
	user, err := repos.User.GetByIDForUpdate(ctx, ticket.UserID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticket holder: %w", err)
	}
	balance := user.EWalletBalance.Add(ticket.Fare)
	if err := repos.User.UpdateWalletBalance(ctx, user.ID, balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to refund wallet: %w", err)
	}
	if err := repos.Ticket.UpdateStatus(ctx, ticket.ID, model.TicketStatusCanceled); err != nil {
		return decimal.Zero, fmt.Errorf("failed to cancel ticket: %w", err)
	}
	ticket.Status = model.TicketStatusCanceled
	return balance, nil
}

func releaseSeats(ctx context.Context, repos repository.Repositories, trip *model.Trip, n int) error {
	trip.AvailableSeats += n
	if err := repos.Trip.Update(ctx, trip); err != nil {
		return fmt.Errorf("failed to release seat: %w", err)
	}
	return nil
}
