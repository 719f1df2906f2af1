package model

import (
	"time"

	"github.com/google/uuid"
)

// Approval is one stage decision in a requisition's approval chain.
// Created PENDING and decided exactly once.
type Approval struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequisitionID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"requisition_id"`
	Requisition    *Requisition `gorm:"foreignKey:RequisitionID" json:"requisition,omitempty"`
	ApproverUserID uuid.UUID    `gorm:"type:uuid;not null;index" json:"approver_user_id"`
	ApproverUser   *User        `gorm:"foreignKey:ApproverUserID" json:"approver_user,omitempty"`
	ApproverRole   string       `gorm:"type:varchar(30);not null;index" json:"approver_role"` // HOD, TRANSPORT_OFFICER
	ApprovalStatus string       `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"approval_status"`
	Comments       string       `gorm:"type:text" json:"comments"`
	ApprovalDate   *time.Time   `json:"approval_date"`
	CreatedAt      time.Time    `gorm:"index" json:"created_at"`
}
