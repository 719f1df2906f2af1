package workflow

import (
	"fmt"

	"transport-requisition/internal/model"
)

// OutcomeKind describes what a stage decision does to its requisition.
type OutcomeKind int

const (
	// OpenNextStage leaves the requisition PENDING and opens the next approval.
	OpenNextStage OutcomeKind = iota + 1
	// FinalApproved moves the requisition to APPROVED.
	FinalApproved
	// Rejected moves the requisition to REJECTED. Terminal.
	Rejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OpenNextStage:
		return "open_next_stage"
	case FinalApproved:
		return "final_approved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Kind      OutcomeKind
	NextRole  string // set for OpenNextStage
	NewStatus string // requisition status after the decision
}

// Decide is the single state-machine step: the stage owned by stageRole was
// decided with decision. The chain is consulted for the next stage, never the
// literal role values.
func (c Chain) Decide(stageRole, decision string) (Outcome, error) {
	if !ValidDecision(decision) {
		return Outcome{}, fmt.Errorf("invalid decision %q", decision)
	}
	if !c.Contains(stageRole) {
		return Outcome{}, fmt.Errorf("role %s is not a stage of the approval chain", stageRole)
	}
	if decision == model.StatusRejected {
		return Outcome{Kind: Rejected, NewStatus: model.StatusRejected}, nil
	}
	if next, ok := c.Next(stageRole); ok {
		return Outcome{Kind: OpenNextStage, NextRole: next, NewStatus: model.StatusPending}, nil
	}
	return Outcome{Kind: FinalApproved, NewStatus: model.StatusApproved}, nil
}
