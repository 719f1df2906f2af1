package repository

import "gorm.io/gorm"

// Repositories is the persistence gateway handed to the services.
type Repositories struct {
	Tx           TransactionManager
	User         UserRepository
	Vehicle      VehicleRepository
	Driver       DriverRepository
	Requisition  RequisitionRepository
	Approval     ApprovalRepository
	Route        RouteRepository
	Trip         TripRepository
	Ticket       TicketRepository
	Subscription SubscriptionRepository
	Audit        AuditRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Tx:           NewTransactionManager(db),
		User:         NewUserRepository(db),
		Vehicle:      NewVehicleRepository(db),
		Driver:       NewDriverRepository(db),
		Requisition:  NewRequisitionRepository(db),
		Approval:     NewApprovalRepository(db),
		Route:        NewRouteRepository(db),
		Trip:         NewTripRepository(db),
		Ticket:       NewTicketRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Audit:        NewAuditRepository(db),
	}
}
