package workflow

import (
	"testing"

	"transport-requisition/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChainOrder(t *testing.T) {
	assert.Equal(t, model.RoleHOD, DefaultChain.First())

	next, ok := DefaultChain.Next(model.RoleHOD)
	assert.True(t, ok)
	assert.Equal(t, model.RoleTransportOfficer, next)

	_, ok = DefaultChain.Next(model.RoleTransportOfficer)
	assert.False(t, ok)

	_, ok = DefaultChain.Next(model.RoleDriver)
	assert.False(t, ok)
}

func TestNewChainRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
	}{
		{name: "empty", roles: nil},
		{name: "unknown role", roles: []string{"VC"}},
		{name: "admin stage", roles: []string{model.RoleHOD, model.RoleAdmin}},
		{name: "duplicate", roles: []string{model.RoleHOD, model.RoleHOD}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChain(tc.roles...)
			assert.Error(t, err)
		})
	}
}

func TestStagesIsACopy(t *testing.T) {
	stages := DefaultChain.Stages()
	stages[0] = model.RoleDriver
	assert.Equal(t, model.RoleHOD, DefaultChain.First())
}

func TestCanDecide(t *testing.T) {
	assert.True(t, CanDecide(model.RoleAdmin, model.RoleHOD))
	assert.True(t, CanDecide(model.RoleAdmin, model.RoleTransportOfficer))
	assert.True(t, CanDecide(model.RoleHOD, model.RoleHOD))
	assert.False(t, CanDecide(model.RoleHOD, model.RoleTransportOfficer))
	assert.False(t, CanDecide(model.RoleUser, model.RoleHOD))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		stage     string
		decision  string
		kind      OutcomeKind
		nextRole  string
		newStatus string
	}{
		{name: "hod approves", stage: model.RoleHOD, decision: model.StatusApproved, kind: OpenNextStage, nextRole: model.RoleTransportOfficer, newStatus: model.StatusPending},
		{name: "hod rejects", stage: model.RoleHOD, decision: model.StatusRejected, kind: Rejected, newStatus: model.StatusRejected},
		{name: "officer approves", stage: model.RoleTransportOfficer, decision: model.StatusApproved, kind: FinalApproved, newStatus: model.StatusApproved},
		{name: "officer rejects", stage: model.RoleTransportOfficer, decision: model.StatusRejected, kind: Rejected, newStatus: model.StatusRejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := DefaultChain.Decide(tc.stage, tc.decision)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, out.Kind)
			assert.Equal(t, tc.nextRole, out.NextRole)
			assert.Equal(t, tc.newStatus, out.NewStatus)
		})
	}
}

func TestDecideThreeStageChain(t *testing.T) {
	chain := MustChain(model.RoleHOD, model.RoleUser, model.RoleTransportOfficer)

	out, err := chain.Decide(model.RoleUser, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, OpenNextStage, out.Kind)
	assert.Equal(t, model.RoleTransportOfficer, out.NextRole)
}

func TestDecideRejectsInvalidInput(t *testing.T) {
	_, err := DefaultChain.Decide(model.RoleHOD, model.StatusPending)
	assert.Error(t, err)

	_, err = DefaultChain.Decide(model.RoleDriver, model.StatusApproved)
	assert.Error(t, err)
}
