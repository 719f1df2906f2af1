package model

import (
	"time"

	"github.com/google/uuid"
)

// DriverStatus enum constants
const (
	DriverStatusActive   = "ACTIVE"
	DriverStatusOnLeave  = "ON_LEAVE"
	DriverStatusInactive = "INACTIVE"
)

// Driver binds a user account to a driving licence
type Driver struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LicenseNumber string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"license_number"`
	Status        string    `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ValidDriverStatus(status string) bool {
	return status == DriverStatusActive || status == DriverStatusOnLeave || status == DriverStatusInactive
}
