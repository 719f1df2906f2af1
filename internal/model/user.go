package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is anyone who can log in: requesters, approvers, drivers and administrators
type User struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Email          string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string          `gorm:"type:varchar(255);not null" json:"-"`
	Designation    string          `gorm:"type:varchar(255);not null" json:"designation"`
	ContactNumber  string          `gorm:"type:varchar(50);not null" json:"contact_number"`
	Role           string          `gorm:"type:varchar(30);not null;default:'USER';index" json:"role"`
	Department     string          `gorm:"type:varchar(20);not null;default:'GENERAL';index" json:"department"`
	EWalletBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"e_wallet_balance"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"` // GORM soft delete
}
