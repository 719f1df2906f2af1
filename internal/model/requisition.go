package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus enum constants, shared by requisitions and approvals
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Requisition is a user's request for a vehicle and driver for a trip.
// It only becomes APPROVED once every stage of the approval chain approved it.
type Requisition struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Requester           *User      `gorm:"foreignKey:UserID" json:"requester,omitempty"`
	Purpose             string     `gorm:"type:text;not null" json:"purpose"`
	PlacesToVisit       string     `gorm:"type:text;not null" json:"places_to_visit"`
	PlaceToPickup       string     `gorm:"type:text;not null" json:"place_to_pickup"`
	NumberOfPassengers  int        `gorm:"type:int;not null" json:"number_of_passengers"`
	DateTimeRequired    time.Time  `gorm:"not null;index" json:"date_time_required"`
	ContactPersonNumber string     `gorm:"type:varchar(50);not null" json:"contact_person_number"`
	Status              string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	VehicleID           *uuid.UUID `gorm:"type:uuid;index" json:"vehicle_id"`
	Vehicle             *Vehicle   `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	DriverID            *uuid.UUID `gorm:"type:uuid;index" json:"driver_id"`
	Driver              *Driver    `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	Approvals           []Approval `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE" json:"approvals,omitempty"`
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
