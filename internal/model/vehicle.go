package model

import (
	"time"

	"github.com/google/uuid"
)

// VehicleStatus enum constants
const (
	VehicleStatusActive           = "ACTIVE"
	VehicleStatusUnderMaintenance = "UNDER_MAINTENANCE"
	VehicleStatusInactive         = "INACTIVE"
)

type Vehicle struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RegistrationNumber string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"registration_number"`
	Type               string    `gorm:"type:varchar(50);not null;index" json:"type"`
	Capacity           int       `gorm:"type:int;not null" json:"capacity"`
	Status             string    `gorm:"type:varchar(30);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func ValidVehicleStatus(status string) bool {
	return status == VehicleStatusActive || status == VehicleStatusUnderMaintenance || status == VehicleStatusInactive
}
