package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trip, ticket and subscription status values
const (
	TripStatusBooked   = "BOOKED"
	TripStatusCanceled = "CANCELED"

	TicketStatusConfirmed = "CONFIRMED"
	TicketStatusCanceled  = "CANCELED"

	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusInactive = "INACTIVE"
)

// Route is a fixed line the shuttle service runs trips on.
type Route struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Origin      string    `gorm:"type:varchar(255);not null" json:"origin"`
	Destination string    `gorm:"type:varchar(255);not null" json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Trip is one scheduled run of a route. AvailableSeats goes down by one per
// confirmed ticket and never below zero.
type Trip struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RouteID           uuid.UUID `gorm:"type:uuid;not null;index" json:"route_id"`
	Route             *Route    `gorm:"foreignKey:RouteID" json:"route,omitempty"`
	VehicleID         uuid.UUID `gorm:"type:uuid;not null;index" json:"vehicle_id"`
	Vehicle           *Vehicle  `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	DriverID          uuid.UUID `gorm:"type:uuid;not null;index" json:"driver_id"`
	Driver            *Driver   `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	ScheduledDateTime time.Time `gorm:"not null;index" json:"scheduled_date_time"`
	AvailableSeats    int       `gorm:"type:int;not null;check:available_seats >= 0" json:"available_seats"`
	Status            string    `gorm:"type:varchar(20);not null;default:'BOOKED';index" json:"status"`
	Tickets           []Ticket  `gorm:"foreignKey:TripID" json:"tickets,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Ticket is a seat on a trip paid from the holder's e-wallet.
type Ticket struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TripID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"trip_id"`
	Trip            *Trip           `gorm:"foreignKey:TripID" json:"trip,omitempty"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Fare            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"fare"`
	Status          string          `gorm:"type:varchar(20);not null;default:'CONFIRMED';index" json:"status"`
	BookingDateTime time.Time       `gorm:"not null;index" json:"booking_date_time"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Subscription is a monthly pass on a route. A nil EndDate runs open-ended.
type Subscription struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RouteID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"route_id"`
	Route         *Route          `gorm:"foreignKey:RouteID" json:"route,omitempty"`
	StartDate     time.Time       `gorm:"not null" json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	MonthlyCharge decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"monthly_charge"`
	Status        string          `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func ValidTripStatus(status string) bool {
	return status == TripStatusBooked || status == TripStatusCanceled
}

func ValidTicketStatus(status string) bool {
	return status == TicketStatusConfirmed || status == TicketStatusCanceled
}

func ValidSubscriptionStatus(status string) bool {
	return status == SubscriptionStatusActive || status == SubscriptionStatusInactive
}
