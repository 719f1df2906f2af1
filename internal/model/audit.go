package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateRequisition = "CREATE_REQUISITION"
	ActionUpdateRequisition = "UPDATE_REQUISITION"
	ActionDeleteRequisition = "DELETE_REQUISITION"
	ActionAssignResources   = "ASSIGN_VEHICLE_DRIVER"

	// Approval workflow actions
	ActionCreateApproval = "CREATE_APPROVAL"
	ActionApproveStage   = "APPROVE_STAGE"
	ActionRejectStage    = "REJECT_STAGE"
	ActionDeleteApproval = "DELETE_APPROVAL"
	ActionChangeVehicle  = "CHANGE_VEHICLE_STATUS"
	ActionRegisterDriver = "REGISTER_DRIVER"
	ActionChangeDriver   = "CHANGE_DRIVER_STATUS"

	// Shuttle service actions
	ActionCreateRoute        = "CREATE_ROUTE"
	ActionUpdateRoute        = "UPDATE_ROUTE"
	ActionCreateTrip         = "CREATE_TRIP"
	ActionUpdateTrip         = "UPDATE_TRIP"
	ActionCancelTrip         = "CANCEL_TRIP"
	ActionDeleteTrip         = "DELETE_TRIP"
	ActionBookTicket         = "BOOK_TICKET"
	ActionCancelTicket       = "CANCEL_TICKET"
	ActionDeleteTicket       = "DELETE_TICKET"
	ActionCreateSubscription = "CREATE_SUBSCRIPTION"
	ActionUpdateSubscription = "UPDATE_SUBSCRIPTION"
	ActionDeleteSubscription = "DELETE_SUBSCRIPTION"
	ActionTopUpWallet        = "TOP_UP_WALLET"
)

// AuditLog tracks Who, What, and When for workflow changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
