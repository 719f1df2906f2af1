package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
)

// Actor is the authenticated caller an operation runs for.
type Actor struct {
	UserID     uuid.UUID
	Role       string
	Department string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// IsStaff covers the roles with unrestricted access to requisitions.
func (a Actor) IsStaff() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleTransportOfficer
}

// Workflow events pushed to live clients after commit.
const (
	EventApprovalProcessed   = "approval.processed"
	EventRequisitionCreated  = "requisition.created"
	EventRequisitionAssigned = "requisition.assigned"
	EventTripCanceled        = "trip.canceled"
)

// EventPublisher must not block the caller.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// writeAudit records an audit row. Called with the transaction context so the
// row commits or rolls back with the change it describes.
func writeAudit(ctx context.Context, audits repository.AuditRepository, actor *uuid.UUID, action, entityID, entityName string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := &model.AuditLog{
		UserID:     actor,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := audits.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func actorRef(a Actor) *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}

// checkSort validates a search's sort field against allowed and normalises
// the order to lower case. Empty values are left for the repository default.
func checkSort(sortBy string, allowed map[string]bool, sortOrder string) (string, error) {
	if sortBy != "" && !allowed[sortBy] {
		return "", apperror.ValidationError{Field: "sortBy", Msg: "unsupported sort field " + sortBy}
	}
	sortOrder = strings.ToLower(sortOrder)
	if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
		return "", apperror.ValidationError{Field: "sortOrder", Msg: "must be asc or desc"}
	}
	return sortOrder, nil
}
