package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"transport-requisition/internal/lock"
	"transport-requisition/internal/model"
	"transport-requisition/internal/workflow"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	store        *memStore
	events       *recordingPublisher
	locker       *lock.MemoryLocker
	approvals    ApprovalService
	requisitions RequisitionService
	vehicles     VehicleService
	drivers      DriverService
	routes       RouteService
	trips        TripService
	tickets      TicketService
	subs         SubscriptionService
	wallets      WalletService

	requester model.User
	hod       model.User
	officer   model.User
	admin     model.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithWindow(t, 8*time.Hour)
}

func newHarnessWithWindow(t *testing.T, window time.Duration) *harness {
	t.Helper()
	store := newMemStore()
	h := &harness{store: store, events: &recordingPublisher{}, locker: lock.NewMemoryLocker()}
	h.hod = store.addUser("Hod", model.RoleHOD, model.DepartmentCSE)
	h.officer = store.addUser("Officer", model.RoleTransportOfficer, model.DepartmentGeneral)
	h.admin = store.addUser("Admin", model.RoleAdmin, model.DepartmentGeneral)
	h.requester = store.addUser("Rahim", model.RoleUser, model.DepartmentCSE)

	repos := store.repos()
	log := zap.NewNop()
	resolver := NewDirectoryResolver(repos.User, log)
	h.approvals = NewApprovalService(repos, workflow.DefaultChain, resolver, h.events, log)
	h.requisitions = NewRequisitionService(repos, h.approvals, workflow.DefaultChain, resolver,
		h.locker, window, h.events, log)
	h.vehicles = NewVehicleService(repos, h.locker)
	h.drivers = NewDriverService(repos, h.locker)
	h.routes = NewRouteService(repos)
	h.trips = NewTripService(repos, h.locker, h.events, log)
	h.tickets = NewTicketService(repos, log)
	h.subs = NewSubscriptionService(repos)
	h.wallets = NewWalletService(repos, log)
	return h
}

func actorOf(u model.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, Department: u.Department}
}

func fieldTrip() CreateRequisitionRequest {
	return CreateRequisitionRequest{
		Purpose:             "Field trip",
		PlacesToVisit:       "Sylhet tea gardens",
		PlaceToPickup:       "Main gate",
		NumberOfPassengers:  5,
		DateTimeRequired:    time.Date(2026, 11, 20, 9, 0, 0, 0, time.UTC),
		ContactPersonNumber: "01711111111",
	}
}

func (h *harness) create(t *testing.T) *model.Requisition {
	t.Helper()
	req, err := h.requisitions.CreateRequisition(context.Background(), h.requester.ID, fieldTrip())
	require.NoError(t, err)
	return req
}

func (h *harness) pending(t *testing.T, requisitionID uuid.UUID) []model.Approval {
	t.Helper()
	var out []model.Approval
	for _, a := range h.store.approvalsFor(requisitionID) {
		if a.ApprovalStatus == model.StatusPending {
			out = append(out, a)
		}
	}
	return out
}

func (h *harness) decide(t *testing.T, approvalID uuid.UUID, decision string, as model.User) *model.Approval {
	t.Helper()
	a, err := h.approvals.ProcessApproval(context.Background(), approvalID, ProcessApprovalRequest{Status: decision}, actorOf(as))
	require.NoError(t, err)
	return a
}

func TestCreateRequisitionOpensHODStage(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	assert.Equal(t, model.StatusPending, req.Status)
	approvals := h.store.approvalsFor(req.ID)
	require.Len(t, approvals, 1)
	assert.Equal(t, model.RoleHOD, approvals[0].ApproverRole)
	assert.Equal(t, model.StatusPending, approvals[0].ApprovalStatus)
	// the HOD of the requester's department, not the requester
	assert.Equal(t, h.hod.ID, approvals[0].ApproverUserID)

	assert.Equal(t, []string{model.ActionCreateRequisition, model.ActionCreateApproval}, h.store.auditActions())
	assert.Equal(t, []string{EventRequisitionCreated}, h.events.types())
}

func TestCreateRequisitionWithoutDepartmentHOD(t *testing.T) {
	h := newHarness(t)
	outsider := h.store.addUser("Karim", model.RoleUser, model.DepartmentEEE)

	req, err := h.requisitions.CreateRequisition(context.Background(), outsider.ID, fieldTrip())
	require.NoError(t, err)

	approvals := h.store.approvalsFor(req.ID)
	require.Len(t, approvals, 1)
	assert.Equal(t, outsider.ID, approvals[0].ApproverUserID)
	assert.Equal(t, model.RoleHOD, approvals[0].ApproverRole)
}

func TestCreateRequisitionValidation(t *testing.T) {
	h := newHarness(t)

	bad := fieldTrip()
	bad.NumberOfPassengers = 0
	_, err := h.requisitions.CreateRequisition(context.Background(), h.requester.ID, bad)
	assert.True(t, apperror.IsValidation(err))

	bad = fieldTrip()
	bad.Purpose = "  "
	_, err = h.requisitions.CreateRequisition(context.Background(), h.requester.ID, bad)
	assert.True(t, apperror.IsValidation(err))

	_, err = h.requisitions.CreateRequisition(context.Background(), uuid.New(), fieldTrip())
	assert.True(t, apperror.IsNotFound(err))
}

func TestFullApprovalScenario(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	hodStage := h.pending(t, req.ID)[0]

	h.decide(t, hodStage.ID, model.StatusApproved, h.hod)

	assert.Equal(t, model.StatusPending, h.store.requisition(req.ID).Status)
	open := h.pending(t, req.ID)
	require.Len(t, open, 1)
	assert.Equal(t, model.RoleTransportOfficer, open[0].ApproverRole)
	assert.Equal(t, h.officer.ID, open[0].ApproverUserID)

	h.decide(t, open[0].ID, model.StatusApproved, h.officer)

	assert.Equal(t, model.StatusApproved, h.store.requisition(req.ID).Status)
	all := h.store.approvalsFor(req.ID)
	require.Len(t, all, 2)
	for _, a := range all {
		assert.Equal(t, model.StatusApproved, a.ApprovalStatus)
		assert.NotNil(t, a.ApprovalDate)
	}
	assert.Empty(t, h.pending(t, req.ID))
	assert.Equal(t, []string{EventRequisitionCreated, EventApprovalProcessed, EventApprovalProcessed}, h.events.types())
}

func TestHODRejectionScenario(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	hodStage := h.pending(t, req.ID)[0]

	_, err := h.approvals.ProcessApproval(context.Background(), hodStage.ID,
		ProcessApprovalRequest{Status: model.StatusRejected, Comments: "Not justified"}, actorOf(h.hod))
	require.NoError(t, err)

	assert.Equal(t, model.StatusRejected, h.store.requisition(req.ID).Status)
	all := h.store.approvalsFor(req.ID)
	require.Len(t, all, 1)
	assert.Equal(t, model.StatusRejected, all[0].ApprovalStatus)
	assert.Equal(t, "Not justified", all[0].Comments)
	assert.Contains(t, h.store.auditActions(), model.ActionRejectStage)
}

func TestOfficerRejectionTerminates(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	h.decide(t, h.pending(t, req.ID)[0].ID, model.StatusApproved, h.hod)
	h.decide(t, h.pending(t, req.ID)[0].ID, model.StatusRejected, h.officer)

	assert.Equal(t, model.StatusRejected, h.store.requisition(req.ID).Status)
	assert.Len(t, h.store.approvalsFor(req.ID), 2)
	assert.Empty(t, h.pending(t, req.ID))
}

func TestAdminMayDecideAnyStage(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	h.decide(t, h.pending(t, req.ID)[0].ID, model.StatusApproved, h.admin)
	h.decide(t, h.pending(t, req.ID)[0].ID, model.StatusApproved, h.admin)

	assert.Equal(t, model.StatusApproved, h.store.requisition(req.ID).Status)
}

func TestProcessApprovalErrors(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	hodStage := h.pending(t, req.ID)[0]
	ctx := context.Background()

	_, err := h.approvals.ProcessApproval(ctx, hodStage.ID, ProcessApprovalRequest{Status: "MAYBE"}, actorOf(h.hod))
	assert.True(t, apperror.IsValidation(err), "invalid status")

	_, err = h.approvals.ProcessApproval(ctx, uuid.New(), ProcessApprovalRequest{Status: model.StatusApproved}, actorOf(h.hod))
	assert.True(t, apperror.IsNotFound(err), "missing approval")

	_, err = h.approvals.ProcessApproval(ctx, hodStage.ID, ProcessApprovalRequest{Status: model.StatusApproved}, actorOf(h.requester))
	assert.True(t, apperror.IsForbidden(err), "requester cannot approve")

	_, err = h.approvals.ProcessApproval(ctx, hodStage.ID, ProcessApprovalRequest{Status: model.StatusApproved}, actorOf(h.officer))
	assert.True(t, apperror.IsForbidden(err), "officer cannot decide the HOD stage")

	h.decide(t, hodStage.ID, model.StatusApproved, h.hod)
	_, err = h.approvals.ProcessApproval(ctx, hodStage.ID, ProcessApprovalRequest{Status: model.StatusRejected}, actorOf(h.hod))
	assert.True(t, apperror.IsConflict(err), "already decided")

	// nothing above created extra stages
	assert.Len(t, h.store.approvalsFor(req.ID), 2)
}

func TestProcessApprovalLocksRequisitionBeforeApproval(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	hodStage := h.pending(t, req.ID)[0]
	h.store.rowLocks = nil

	h.decide(t, hodStage.ID, model.StatusApproved, h.hod)

	assert.Equal(t, []string{
		"requisition:" + req.ID.String(),
		"approval:" + hodStage.ID.String(),
	}, h.store.lockedRows())
}

func TestProcessApprovalKeepsCommentsWhenNoneGiven(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t)
	admin := actorOf(h.admin)

	require.NoError(t, h.approvals.DeleteApproval(ctx, h.pending(t, req.ID)[0].ID, admin))
	stage, err := h.approvals.CreateApproval(ctx, CreateApprovalRequest{
		RequisitionID: req.ID, ApproverUserID: h.hod.ID, ApproverRole: model.RoleHOD, Comments: "budget checked",
	}, admin)
	require.NoError(t, err)

	h.decide(t, stage.ID, model.StatusApproved, h.hod)

	all := h.store.approvalsFor(req.ID)
	require.Len(t, all, 2)
	assert.Equal(t, "budget checked", all[0].Comments)
	assert.Equal(t, model.StatusApproved, all[0].ApprovalStatus)

	// an explicit comment still replaces it
	_, err = h.approvals.ProcessApproval(ctx, all[1].ID,
		ProcessApprovalRequest{Status: model.StatusRejected, Comments: "no driver free"}, actorOf(h.officer))
	require.NoError(t, err)
	assert.Equal(t, "no driver free", h.store.approvalsFor(req.ID)[1].Comments)
}

func TestDecisionIsAtomic(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	hodStage := h.pending(t, req.ID)[0]
	auditsBefore := len(h.store.auditActions())

	boom := errors.New("insert failed")
	h.store.failApprove = boom
	_, err := h.approvals.ProcessApproval(context.Background(), hodStage.ID,
		ProcessApprovalRequest{Status: model.StatusApproved}, actorOf(h.hod))
	require.ErrorIs(t, err, boom)

	// the HOD decision rolled back with the failed next stage
	all := h.store.approvalsFor(req.ID)
	require.Len(t, all, 1)
	assert.Equal(t, model.StatusPending, all[0].ApprovalStatus)
	assert.Nil(t, all[0].ApprovalDate)
	assert.Equal(t, model.StatusPending, h.store.requisition(req.ID).Status)
	assert.Len(t, h.store.auditActions(), auditsBefore)
	assert.Equal(t, []string{EventRequisitionCreated}, h.events.types())

	h.store.failApprove = nil
	h.decide(t, hodStage.ID, model.StatusApproved, h.hod)
	assert.Len(t, h.pending(t, req.ID), 1)
}

func TestAtMostOnePendingApproval(t *testing.T) {
	sequences := [][]string{
		{model.StatusApproved, model.StatusApproved},
		{model.StatusApproved, model.StatusRejected},
		{model.StatusRejected},
	}
	for _, seq := range sequences {
		h := newHarness(t)
		req := h.create(t)
		for _, decision := range seq {
			open := h.pending(t, req.ID)
			require.Len(t, open, 1)
			h.decide(t, open[0].ID, decision, h.admin)
			assert.LessOrEqual(t, len(h.pending(t, req.ID)), 1)
		}
		status := h.store.requisition(req.ID).Status
		assert.NotEqual(t, model.StatusPending, status)
		assert.Empty(t, h.pending(t, req.ID))
		assert.Len(t, h.store.approvalsFor(req.ID), len(seq))
	}
}

func TestCreateApprovalRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t)
	admin := actorOf(h.admin)

	_, err := h.approvals.CreateApproval(ctx, CreateApprovalRequest{
		RequisitionID: req.ID, ApproverUserID: h.officer.ID, ApproverRole: model.RoleTransportOfficer,
	}, admin)
	assert.True(t, apperror.IsConflict(err), "HOD stage still pending")

	_, err = h.approvals.CreateApproval(ctx, CreateApprovalRequest{
		RequisitionID: uuid.New(), ApproverUserID: h.officer.ID, ApproverRole: model.RoleTransportOfficer,
	}, admin)
	assert.True(t, apperror.IsNotFound(err))

	_, err = h.approvals.CreateApproval(ctx, CreateApprovalRequest{
		RequisitionID: req.ID, ApproverUserID: h.officer.ID, ApproverRole: model.RoleDriver,
	}, admin)
	assert.True(t, apperror.IsValidation(err))

	// drop the open stage, then a missing approver is reported as such
	require.NoError(t, h.approvals.DeleteApproval(ctx, h.pending(t, req.ID)[0].ID, admin))
	_, err = h.approvals.CreateApproval(ctx, CreateApprovalRequest{
		RequisitionID: req.ID, ApproverUserID: uuid.New(), ApproverRole: model.RoleHOD,
	}, admin)
	assert.True(t, apperror.IsNotFound(err))

	created, err := h.approvals.CreateApproval(ctx, CreateApprovalRequest{
		RequisitionID: req.ID, ApproverUserID: h.hod.ID, ApproverRole: model.RoleHOD, Comments: "reopened",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, created.ApprovalStatus)
}

func TestCreateApprovalOnRejectedRequisition(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	h.decide(t, h.pending(t, req.ID)[0].ID, model.StatusRejected, h.hod)

	_, err := h.approvals.CreateApproval(context.Background(), CreateApprovalRequest{
		RequisitionID: req.ID, ApproverUserID: h.hod.ID, ApproverRole: model.RoleHOD,
	}, actorOf(h.admin))
	assert.True(t, apperror.IsConflict(err))
}

func TestApprovalQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.create(t)
	second := h.create(t)

	pending, err := h.approvals.GetPendingApprovalsForUser(ctx, h.hod.ID, model.RoleHOD)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// newest first
	assert.Equal(t, second.ID, pending[0].RequisitionID)
	assert.Equal(t, first.ID, pending[1].RequisitionID)
	require.NotNil(t, pending[0].Requisition)

	none, err := h.approvals.GetPendingApprovalsForUser(ctx, h.hod.ID, model.RoleTransportOfficer)
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := h.approvals.GetApprovalByID(ctx, pending[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got.Requisition)
	require.NotNil(t, got.Requisition.Requester)
	assert.Equal(t, h.requester.ID, got.Requisition.Requester.ID)
	require.NotNil(t, got.ApproverUser)
	assert.Equal(t, h.hod.ID, got.ApproverUser.ID)

	h.decide(t, pending[1].ID, model.StatusApproved, h.hod)
	history, err := h.approvals.GetApprovalsByRequisition(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleHOD, history[0].ApproverRole)
	assert.Equal(t, model.RoleTransportOfficer, history[1].ApproverRole)

	_, err = h.approvals.GetApprovalByID(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
	_, err = h.approvals.GetApprovalsByRequisition(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t)

	err := h.approvals.DeleteApproval(ctx, uuid.New(), actorOf(h.admin))
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, h.approvals.DeleteApproval(ctx, h.pending(t, req.ID)[0].ID, actorOf(h.admin)))
	assert.Empty(t, h.store.approvalsFor(req.ID))
	assert.Contains(t, h.store.auditActions(), model.ActionDeleteApproval)
}

func TestLongerChainAdvancesThroughEveryStage(t *testing.T) {
	h := newHarness(t)
	chain := workflow.MustChain(model.RoleHOD, model.RoleTransportOfficer, model.RoleDriver)
	repos := h.store.repos()
	log := zap.NewNop()
	resolver := NewDirectoryResolver(repos.User, log)
	approvals := NewApprovalService(repos, chain, resolver, nil, log)
	requisitions := NewRequisitionService(repos, approvals, chain, resolver, lock.NewMemoryLocker(), 0, nil, log)

	req, err := requisitions.CreateRequisition(context.Background(), h.requester.ID, fieldTrip())
	require.NoError(t, err)

	for _, role := range chain.Stages() {
		open := h.pending(t, req.ID)
		require.Len(t, open, 1)
		assert.Equal(t, role, open[0].ApproverRole)
		assert.Equal(t, model.StatusPending, h.store.requisition(req.ID).Status)
		_, err := approvals.ProcessApproval(context.Background(), open[0].ID,
			ProcessApprovalRequest{Status: model.StatusApproved}, actorOf(h.admin))
		require.NoError(t, err)
	}
	assert.Equal(t, model.StatusApproved, h.store.requisition(req.ID).Status)
	assert.Len(t, h.store.approvalsFor(req.ID), 3)
}
