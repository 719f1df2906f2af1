package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the postgres schema. RunInTx takes a
// snapshot and restores it when fn fails, so rollback behaviour is observable.
type memStore struct {
	mu           sync.Mutex
	tick         time.Time
	users        map[uuid.UUID]model.User
	vehicles     map[uuid.UUID]model.Vehicle
	drivers      map[uuid.UUID]model.Driver
	requisitions map[uuid.UUID]model.Requisition
	approvals    map[uuid.UUID]model.Approval
	routes       map[uuid.UUID]model.Route
	trips        map[uuid.UUID]model.Trip
	tickets      map[uuid.UUID]model.Ticket
	subs         map[uuid.UUID]model.Subscription
	audits       []model.AuditLog

	lastSearch  repository.RequisitionFilter
	failApprove error    // returned by Approval.Create when set
	rowLocks    []string // "<table>:<id>" per FOR UPDATE read, in call order
}

func newMemStore() *memStore {
	return &memStore{
		tick:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:        map[uuid.UUID]model.User{},
		vehicles:     map[uuid.UUID]model.Vehicle{},
		drivers:      map[uuid.UUID]model.Driver{},
		requisitions: map[uuid.UUID]model.Requisition{},
		approvals:    map[uuid.UUID]model.Approval{},
		routes:       map[uuid.UUID]model.Route{},
		trips:        map[uuid.UUID]model.Trip{},
		tickets:      map[uuid.UUID]model.Ticket{},
		subs:         map[uuid.UUID]model.Subscription{},
	}
}

func (s *memStore) repos() repository.Repositories {
	return repository.Repositories{
		Tx:           memTx{s},
		User:         memUsers{s},
		Vehicle:      memVehicles{s},
		Driver:       memDrivers{s},
		Requisition:  memRequisitions{s},
		Approval:     memApprovals{s},
		Route:        memRoutes{s},
		Trip:         memTrips{s},
		Ticket:       memTickets{s},
		Subscription: memSubscriptions{s},
		Audit:        memAudits{s},
	}
}

// now must be called with mu held. Strictly increasing so ordering by
// created_at is deterministic.
func (s *memStore) now() time.Time {
	s.tick = s.tick.Add(time.Millisecond)
	return s.tick
}

func missing(resource string) error {
	return apperror.NotFoundError{Resource: resource, Err: gorm.ErrRecordNotFound}
}

// --- seed helpers ---

func (s *memStore) addUser(name, role, department string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: uuid.New(), Name: name, Email: strings.ToLower(name) + "@uni.test", Role: role, Department: department, CreatedAt: s.now()}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addVehicle(registration, status string) model.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := model.Vehicle{ID: uuid.New(), RegistrationNumber: registration, Type: "Microbus", Capacity: 12, Status: status, CreatedAt: s.now()}
	s.vehicles[v.ID] = v
	return v
}

func (s *memStore) addDriver(user model.User, license, status string) model.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := model.Driver{ID: uuid.New(), UserID: user.ID, LicenseNumber: license, Status: status, CreatedAt: s.now()}
	s.drivers[d.ID] = d
	return d
}

func (s *memStore) addRequisition(owner model.User, status string, at time.Time) model.Requisition {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Requisition{
		ID: uuid.New(), UserID: owner.ID, Purpose: "Seminar", PlacesToVisit: "City hall", PlaceToPickup: "Gate 1",
		NumberOfPassengers: 3, DateTimeRequired: at, ContactPersonNumber: "01700000000", Status: status, CreatedAt: s.now(),
	}
	s.requisitions[r.ID] = r
	return r
}

func (s *memStore) setBalance(userID uuid.UUID, balance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	u.EWalletBalance = decimal.RequireFromString(balance)
	s.users[userID] = u
}

func (s *memStore) balance(userID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].EWalletBalance
}

func (s *memStore) addRoute(name string) model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Route{ID: uuid.New(), Name: name, Origin: "Main campus", Destination: name, CreatedAt: s.now()}
	s.routes[r.ID] = r
	return r
}

func (s *memStore) trip(id uuid.UUID) model.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips[id]
}

func (s *memStore) ticket(id uuid.UUID) (model.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

func (s *memStore) approvalsFor(requisitionID uuid.UUID) []model.Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Approval
	for _, a := range s.approvals {
		if a.RequisitionID == requisitionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *memStore) requisition(id uuid.UUID) model.Requisition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requisitions[id]
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

func (s *memStore) lockRow(table string, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowLocks = append(s.rowLocks, table+":"+id.String())
}

func (s *memStore) lockedRows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rowLocks)
}

// --- transactions ---

type memTx struct{ s *memStore }

type memSnapshot struct {
	users        map[uuid.UUID]model.User
	vehicles     map[uuid.UUID]model.Vehicle
	drivers      map[uuid.UUID]model.Driver
	requisitions map[uuid.UUID]model.Requisition
	approvals    map[uuid.UUID]model.Approval
	routes       map[uuid.UUID]model.Route
	trips        map[uuid.UUID]model.Trip
	tickets      map[uuid.UUID]model.Ticket
	subs         map[uuid.UUID]model.Subscription
	audits       []model.AuditLog
}

type memTxKey struct{}

func (t memTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	t.s.mu.Lock()
	snap := memSnapshot{
		users:        maps.Clone(t.s.users),
		vehicles:     maps.Clone(t.s.vehicles),
		drivers:      maps.Clone(t.s.drivers),
		requisitions: maps.Clone(t.s.requisitions),
		approvals:    maps.Clone(t.s.approvals),
		routes:       maps.Clone(t.s.routes),
		trips:        maps.Clone(t.s.trips),
		tickets:      maps.Clone(t.s.tickets),
		subs:         maps.Clone(t.s.subs),
		audits:       slices.Clone(t.s.audits),
	}
	t.s.mu.Unlock()

	err := fn(context.WithValue(ctx, memTxKey{}, true))
	if err != nil {
		t.s.mu.Lock()
		t.s.users, t.s.vehicles, t.s.drivers = snap.users, snap.vehicles, snap.drivers
		t.s.requisitions, t.s.approvals, t.s.audits = snap.requisitions, snap.approvals, snap.audits
		t.s.routes, t.s.trips, t.s.tickets, t.s.subs = snap.routes, snap.trips, snap.tickets, snap.subs
		t.s.mu.Unlock()
	}
	return err
}

// --- users ---

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, missing("user")
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, missing("user")
}

func (r memUsers) FirstByRole(_ context.Context, role, department string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.User
	for _, u := range r.s.users {
		if u.Role != role || (department != "" && u.Department != department) {
			continue
		}
		if best == nil || u.CreatedAt.Before(best.CreatedAt) {
			u := u
			best = &u
		}
	}
	if best == nil {
		return nil, missing("user")
	}
	return best, nil
}

func (r memUsers) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.User
	for _, u := range r.s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := min(offset+limit, len(out))
	return out[offset:end], total, nil
}

func (r memUsers) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.lockRow("user", id)
	return r.GetByID(ctx, id)
}

func (r memUsers) UpdateWalletBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return missing("user")
	}
	u.EWalletBalance = balance
	r.s.users[id] = u
	return nil
}

func (r memUsers) UpdateRole(_ context.Context, id uuid.UUID, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return missing("user")
	}
	u.Role = role
	r.s.users[id] = u
	return nil
}

// --- vehicles ---

type memVehicles struct{ s *memStore }

func (r memVehicles) Create(_ context.Context, vehicle *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	vehicle.ID = uuid.New()
	vehicle.CreatedAt = r.s.now()
	r.s.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (r memVehicles) GetByID(_ context.Context, id uuid.UUID) (*model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vehicles[id]
	if !ok {
		return nil, missing("vehicle")
	}
	return &v, nil
}

func (r memVehicles) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	r.s.lockRow("vehicle", id)
	return r.GetByID(ctx, id)
}

func (r memVehicles) GetByRegistration(_ context.Context, registration string) (*model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.vehicles {
		if v.RegistrationNumber == registration {
			return &v, nil
		}
	}
	return nil, missing("vehicle")
}

func (r memVehicles) List(_ context.Context, offset, limit int) ([]model.Vehicle, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := mapValues(r.s.vehicles)
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	return out[offset:min(offset+limit, len(out))], total, nil
}

func (r memVehicles) Search(_ context.Context, filter repository.VehicleFilter) ([]model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Vehicle
	for _, v := range r.s.vehicles {
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.MinCapacity > 0 && v.Capacity < filter.MinCapacity {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r memVehicles) Update(_ context.Context, vehicle *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.vehicles[vehicle.ID] = *vehicle
	return nil
}

// --- drivers ---

type memDrivers struct{ s *memStore }

func (r memDrivers) Create(_ context.Context, driver *model.Driver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	driver.ID = uuid.New()
	driver.CreatedAt = r.s.now()
	stored := *driver
	stored.User = nil
	r.s.drivers[driver.ID] = stored
	return nil
}

func (r memDrivers) GetByID(_ context.Context, id uuid.UUID) (*model.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return nil, missing("driver")
	}
	if u, ok := r.s.users[d.UserID]; ok {
		d.User = &u
	}
	return &d, nil
}

func (r memDrivers) GetByIDForUpdate(_ context.Context, id uuid.UUID) (*model.Driver, error) {
	r.s.lockRow("driver", id)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return nil, missing("driver")
	}
	return &d, nil
}

func (r memDrivers) find(match func(model.Driver) bool) (*model.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.drivers {
		if match(d) {
			return &d, nil
		}
	}
	return nil, missing("driver")
}

func (r memDrivers) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Driver, error) {
	return r.find(func(d model.Driver) bool { return d.UserID == userID })
}

func (r memDrivers) GetByLicense(_ context.Context, license string) (*model.Driver, error) {
	return r.find(func(d model.Driver) bool { return d.LicenseNumber == license })
}

func (r memDrivers) List(_ context.Context, status string, offset, limit int) ([]model.Driver, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Driver
	for _, d := range r.s.drivers {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	return out[offset:min(offset+limit, len(out))], total, nil
}

func (r memDrivers) Update(_ context.Context, driver *model.Driver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *driver
	stored.User = nil
	r.s.drivers[driver.ID] = stored
	return nil
}

// --- requisitions ---

type memRequisitions struct{ s *memStore }

func (r memRequisitions) Create(_ context.Context, req *model.Requisition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req.ID = uuid.New()
	req.CreatedAt = r.s.now()
	r.s.requisitions[req.ID] = *req
	return nil
}

func (r memRequisitions) FindByID(_ context.Context, id uuid.UUID) (*model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requisitions[id]
	if !ok {
		return nil, missing("requisition")
	}
	return &req, nil
}

func (r memRequisitions) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	r.s.lockRow("requisition", id)
	return r.FindByID(ctx, id)
}

// hydrate must be called with mu held.
func (r memRequisitions) hydrate(req model.Requisition) model.Requisition {
	if u, ok := r.s.users[req.UserID]; ok {
		req.Requester = &u
	}
	req.Approvals = nil
	for _, a := range r.s.approvals {
		if a.RequisitionID == req.ID {
			req.Approvals = append(req.Approvals, a)
		}
	}
	sort.Slice(req.Approvals, func(i, j int) bool { return req.Approvals[i].CreatedAt.Before(req.Approvals[j].CreatedAt) })
	if req.VehicleID != nil {
		if v, ok := r.s.vehicles[*req.VehicleID]; ok {
			req.Vehicle = &v
		}
	}
	if req.DriverID != nil {
		if d, ok := r.s.drivers[*req.DriverID]; ok {
			if u, ok := r.s.users[d.UserID]; ok {
				d.User = &u
			}
			req.Driver = &d
		}
	}
	return req
}

func (r memRequisitions) FindByIDWithRelations(_ context.Context, id uuid.UUID) (*model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requisitions[id]
	if !ok {
		return nil, missing("requisition")
	}
	req = r.hydrate(req)
	return &req, nil
}

func (r memRequisitions) list(match func(model.Requisition) bool) []model.Requisition {
	var out []model.Requisition
	for _, req := range r.s.requisitions {
		if match(req) {
			out = append(out, r.hydrate(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memRequisitions) ListByRequester(_ context.Context, userID uuid.UUID) ([]model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(req model.Requisition) bool { return req.UserID == userID }), nil
}

func (r memRequisitions) inDepartment(req model.Requisition, department string) bool {
	return department == "" || r.s.users[req.UserID].Department == department
}

func (r memRequisitions) ListAll(_ context.Context, department string) ([]model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(req model.Requisition) bool { return r.inDepartment(req, department) }), nil
}

// Search honours the scoping fields and the purpose/status predicates; the
// SQL for the rest is exercised in the repository package.
func (r memRequisitions) Search(_ context.Context, f repository.RequisitionFilter) ([]model.Requisition, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastSearch = f
	out := r.list(func(req model.Requisition) bool {
		if !r.inDepartment(req, f.Department) {
			return false
		}
		if f.RequesterID != nil && req.UserID != *f.RequesterID {
			return false
		}
		if f.Status != "" && req.Status != f.Status {
			return false
		}
		return f.Purpose == "" || strings.Contains(strings.ToLower(req.Purpose), strings.ToLower(f.Purpose))
	})
	return out, int64(len(out)), nil
}

func (r memRequisitions) FindAssignmentConflicts(_ context.Context, excludeID, vehicleID, driverID uuid.UUID, from, to time.Time) ([]model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Requisition
	for _, req := range r.s.requisitions {
		if req.ID == excludeID || req.Status != model.StatusApproved {
			continue
		}
		sameVehicle := req.VehicleID != nil && *req.VehicleID == vehicleID
		sameDriver := req.DriverID != nil && *req.DriverID == driverID
		if !sameVehicle && !sameDriver {
			continue
		}
		if req.DateTimeRequired.After(from) && req.DateTimeRequired.Before(to) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r memRequisitions) CountUpcomingForVehicle(_ context.Context, vehicleID uuid.UUID, from time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, req := range r.s.requisitions {
		if req.VehicleID != nil && *req.VehicleID == vehicleID && req.Status == model.StatusApproved && !req.DateTimeRequired.Before(from) {
			n++
		}
	}
	return n, nil
}

func (r memRequisitions) CountUpcomingForDriver(_ context.Context, driverID uuid.UUID, from time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, req := range r.s.requisitions {
		if req.DriverID != nil && *req.DriverID == driverID && req.Status == model.StatusApproved && !req.DateTimeRequired.Before(from) {
			n++
		}
	}
	return n, nil
}

func (r memRequisitions) Update(_ context.Context, req *model.Requisition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *req
	stored.Requester, stored.Vehicle, stored.Driver, stored.Approvals = nil, nil, nil, nil
	r.s.requisitions[req.ID] = stored
	return nil
}

func (r memRequisitions) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requisitions[id]
	if !ok {
		return missing("requisition")
	}
	req.Status = status
	r.s.requisitions[id] = req
	return nil
}

func (r memRequisitions) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requisitions[id]; !ok {
		return missing("requisition")
	}
	delete(r.s.requisitions, id)
	return nil
}

// --- approvals ---

type memApprovals struct{ s *memStore }

func (r memApprovals) Create(_ context.Context, approval *model.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failApprove != nil {
		return r.s.failApprove
	}
	approval.ID = uuid.New()
	approval.CreatedAt = r.s.now()
	r.s.approvals[approval.ID] = *approval
	return nil
}

func (r memApprovals) FindByID(_ context.Context, id uuid.UUID) (*model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, missing("approval")
	}
	return &a, nil
}

func (r memApprovals) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Approval, error) {
	r.s.lockRow("approval", id)
	return r.FindByID(ctx, id)
}

func (r memApprovals) FindByIDWithRelations(_ context.Context, id uuid.UUID) (*model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, missing("approval")
	}
	if req, ok := r.s.requisitions[a.RequisitionID]; ok {
		if u, ok := r.s.users[req.UserID]; ok {
			req.Requester = &u
		}
		a.Requisition = &req
	}
	if u, ok := r.s.users[a.ApproverUserID]; ok {
		a.ApproverUser = &u
	}
	return &a, nil
}

func (r memApprovals) ListPendingForUser(_ context.Context, userID uuid.UUID, role string) ([]model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Approval
	for _, a := range r.s.approvals {
		if a.ApproverUserID == userID && a.ApproverRole == role && a.ApprovalStatus == model.StatusPending {
			if req, ok := r.s.requisitions[a.RequisitionID]; ok {
				a.Requisition = &req
			}
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memApprovals) ListByRequisition(_ context.Context, requisitionID uuid.UUID) ([]model.Approval, error) {
	return r.s.approvalsFor(requisitionID), nil
}

func (r memApprovals) CountPending(_ context.Context, requisitionID uuid.UUID) (int64, error) {
	var n int64
	for _, a := range r.s.approvalsFor(requisitionID) {
		if a.ApprovalStatus == model.StatusPending {
			n++
		}
	}
	return n, nil
}

func (r memApprovals) Update(_ context.Context, approval *model.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.approvals[approval.ID]
	if !ok {
		return missing("approval")
	}
	stored.ApprovalStatus = approval.ApprovalStatus
	stored.Comments = approval.Comments
	stored.ApprovalDate = approval.ApprovalDate
	r.s.approvals[approval.ID] = stored
	return nil
}

func (r memApprovals) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.approvals[id]; !ok {
		return missing("approval")
	}
	delete(r.s.approvals, id)
	return nil
}

func (r memApprovals) DeleteByRequisition(_ context.Context, requisitionID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maps.DeleteFunc(r.s.approvals, func(_ uuid.UUID, a model.Approval) bool { return a.RequisitionID == requisitionID })
	return nil
}

// --- routes ---

type memRoutes struct{ s *memStore }

func (r memRoutes) Create(_ context.Context, route *model.Route) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.routes {
		if strings.EqualFold(existing.Name, route.Name) {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	route.ID = uuid.New()
	route.CreatedAt = r.s.now()
	r.s.routes[route.ID] = *route
	return nil
}

func (r memRoutes) GetByID(_ context.Context, id uuid.UUID) (*model.Route, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	route, ok := r.s.routes[id]
	if !ok {
		return nil, missing("route")
	}
	return &route, nil
}

func (r memRoutes) GetByName(_ context.Context, name string) (*model.Route, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, route := range r.s.routes {
		if strings.EqualFold(route.Name, name) {
			return &route, nil
		}
	}
	return nil, missing("route")
}

func (r memRoutes) List(_ context.Context, offset, limit int) ([]model.Route, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := mapValues(r.s.routes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	return out[offset:min(offset+limit, len(out))], total, nil
}

func (r memRoutes) Update(_ context.Context, route *model.Route) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.routes[route.ID] = *route
	return nil
}

// --- trips ---

type memTrips struct{ s *memStore }

func (r memTrips) Create(_ context.Context, trip *model.Trip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	trip.ID = uuid.New()
	trip.CreatedAt = r.s.now()
	r.s.trips[trip.ID] = *trip
	return nil
}

func (r memTrips) FindByID(_ context.Context, id uuid.UUID) (*model.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	trip, ok := r.s.trips[id]
	if !ok {
		return nil, missing("trip")
	}
	return &trip, nil
}

func (r memTrips) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Trip, error) {
	r.s.lockRow("trip", id)
	return r.FindByID(ctx, id)
}

// hydrate must be called with mu held.
func (r memTrips) hydrate(trip model.Trip) model.Trip {
	if route, ok := r.s.routes[trip.RouteID]; ok {
		trip.Route = &route
	}
	if v, ok := r.s.vehicles[trip.VehicleID]; ok {
		trip.Vehicle = &v
	}
	if d, ok := r.s.drivers[trip.DriverID]; ok {
		trip.Driver = &d
	}
	trip.Tickets = nil
	for _, t := range r.s.tickets {
		if t.TripID == trip.ID {
			trip.Tickets = append(trip.Tickets, t)
		}
	}
	sort.Slice(trip.Tickets, func(i, j int) bool { return trip.Tickets[i].BookingDateTime.Before(trip.Tickets[j].BookingDateTime) })
	return trip
}

func (r memTrips) FindByIDWithRelations(_ context.Context, id uuid.UUID) (*model.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	trip, ok := r.s.trips[id]
	if !ok {
		return nil, missing("trip")
	}
	trip = r.hydrate(trip)
	return &trip, nil
}

func (r memTrips) Search(_ context.Context, f repository.TripFilter) ([]model.Trip, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Trip
	for _, trip := range r.s.trips {
		if f.RouteID != nil && trip.RouteID != *f.RouteID {
			continue
		}
		if f.Status != "" && trip.Status != f.Status {
			continue
		}
		out = append(out, r.hydrate(trip))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDateTime.Before(out[j].ScheduledDateTime) })
	return out, int64(len(out)), nil
}

func (r memTrips) Update(_ context.Context, trip *model.Trip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if trip.AvailableSeats < 0 {
		return errors.New("violates check constraint available_seats")
	}
	stored := *trip
	stored.Route, stored.Vehicle, stored.Driver, stored.Tickets = nil, nil, nil, nil
	r.s.trips[trip.ID] = stored
	return nil
}

func (r memTrips) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.trips[id]; !ok {
		return missing("trip")
	}
	delete(r.s.trips, id)
	return nil
}

// --- tickets ---

type memTickets struct{ s *memStore }

func (r memTickets) Create(_ context.Context, ticket *model.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = uuid.New()
	ticket.CreatedAt = r.s.now()
	ticket.BookingDateTime = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTickets) FindByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, missing("ticket")
	}
	return &t, nil
}

func (r memTickets) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	r.s.lockRow("ticket", id)
	return r.FindByID(ctx, id)
}

func (r memTickets) FindByIDWithRelations(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, missing("ticket")
	}
	if u, ok := r.s.users[t.UserID]; ok {
		t.User = &u
	}
	if trip, ok := r.s.trips[t.TripID]; ok {
		t.Trip = &trip
	}
	return &t, nil
}

func (r memTickets) ListConfirmedByTrip(_ context.Context, tripID uuid.UUID) ([]model.Ticket, error) {
	r.s.mu.Lock()
	var out []model.Ticket
	for _, t := range r.s.tickets {
		if t.TripID == tripID && t.Status == model.TicketStatusConfirmed {
			out = append(out, t)
		}
	}
	r.s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDateTime.Before(out[j].BookingDateTime) })
	for _, t := range out {
		r.s.lockRow("ticket", t.ID)
	}
	return out, nil
}

func (r memTickets) Search(_ context.Context, f repository.TicketFilter) ([]model.Ticket, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Ticket
	for _, t := range r.s.tickets {
		if f.TripID != nil && t.TripID != *f.TripID {
			continue
		}
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDateTime.After(out[j].BookingDateTime) })
	return out, int64(len(out)), nil
}

func (r memTickets) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return missing("ticket")
	}
	t.Status = status
	r.s.tickets[id] = t
	return nil
}

func (r memTickets) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return missing("ticket")
	}
	delete(r.s.tickets, id)
	return nil
}

// --- subscriptions ---

type memSubscriptions struct{ s *memStore }

func (r memSubscriptions) Create(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub.ID = uuid.New()
	sub.CreatedAt = r.s.now()
	r.s.subs[sub.ID] = *sub
	return nil
}

func (r memSubscriptions) FindByID(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, missing("subscription")
	}
	return &sub, nil
}

func (r memSubscriptions) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	sub, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[sub.UserID]; ok {
		sub.User = &u
	}
	if route, ok := r.s.routes[sub.RouteID]; ok {
		sub.Route = &route
	}
	return sub, nil
}

func (r memSubscriptions) Search(_ context.Context, f repository.SubscriptionFilter) ([]model.Subscription, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Subscription
	for _, sub := range r.s.subs {
		if f.UserID != nil && sub.UserID != *f.UserID {
			continue
		}
		if f.RouteID != nil && sub.RouteID != *f.RouteID {
			continue
		}
		if f.Status != "" && sub.Status != f.Status {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r memSubscriptions) Update(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *sub
	stored.User, stored.Route = nil, nil
	r.s.subs[sub.ID] = stored
	return nil
}

func (r memSubscriptions) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subs[id]; !ok {
		return missing("subscription")
	}
	delete(r.s.subs, id)
	return nil
}

// --- audit ---

type memAudits struct{ s *memStore }

func (r memAudits) Log(_ context.Context, entry *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = r.s.now()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r memAudits) List(_ context.Context, filter repository.AuditFilter, offset, limit int) ([]model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.AuditLog
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		a := r.s.audits[i]
		if filter.Action != "" && a.Action != filter.Action {
			continue
		}
		if a.UserID != nil {
			if u, ok := r.s.users[*a.UserID]; ok {
				a.User = &u
			}
		}
		out = append(out, a)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	return out[offset:min(offset+limit, len(out))], total, nil
}

// --- events ---

type recordedEvent struct {
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// mapValues stands in for slices.Collect(maps.Values(m)) (Go 1.23+).
func mapValues[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
