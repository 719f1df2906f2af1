// Package workflow holds the approval policy for requisitions: which roles must
// approve, in which order, and what a single decision does to the requisition.
package workflow

import (
	"errors"
	"fmt"

	"transport-requisition/internal/model"
)

// Chain is the ordered list of approver roles a requisition must pass.
type Chain struct {
	stages []string
}

// DefaultChain is Head of Department first, then the Transport Officer.
var DefaultChain = MustChain(model.RoleHOD, model.RoleTransportOfficer)

func NewChain(roles ...string) (Chain, error) {
	if len(roles) == 0 {
		return Chain{}, errors.New("approval chain needs at least one stage")
	}
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		if !model.ValidRole(r) {
			return Chain{}, fmt.Errorf("unknown role in approval chain: %s", r)
		}
		if r == model.RoleAdmin {
			return Chain{}, errors.New("ADMIN overrides stages and cannot be a stage itself")
		}
		if seen[r] {
			return Chain{}, fmt.Errorf("duplicate stage in approval chain: %s", r)
		}
		seen[r] = true
	}
	stages := make([]string, len(roles))
	copy(stages, roles)
	return Chain{stages: stages}, nil
}

func MustChain(roles ...string) Chain {
	c, err := NewChain(roles...)
	if err != nil {
		panic(err)
	}
	return c
}

// First returns the role of the stage opened when a requisition is created.
func (c Chain) First() string {
	return c.stages[0]
}

// Next returns the stage after role. ok is false when role is the final stage
// or not part of the chain.
func (c Chain) Next(role string) (next string, ok bool) {
	for i, r := range c.stages {
		if r == role {
			if i+1 < len(c.stages) {
				return c.stages[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

func (c Chain) Contains(role string) bool {
	for _, r := range c.stages {
		if r == role {
			return true
		}
	}
	return false
}

func (c Chain) Stages() []string {
	out := make([]string, len(c.stages))
	copy(out, c.stages)
	return out
}

// CanDecide reports whether a caller with actingRole may decide a stage owned by stageRole.
func CanDecide(actingRole, stageRole string) bool {
	return actingRole == model.RoleAdmin || actingRole == stageRole
}

// ValidDecision reports whether status is a terminal approval decision.
func ValidDecision(status string) bool {
	return status == model.StatusApproved || status == model.StatusRejected
}
