// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package drep tracks Conway-era DRep registration and the governance
// action lifecycle: submission, voting and ratification.
package drep

import (
	"errors"
	"sync"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

// ErrUnknownDRep is returned by operations targeting an unregistered
// DRep credential.
var ErrUnknownDRep = errors.New("drep: unknown DRep credential")

// ErrUnknownAction is returned by operations targeting a governance
// action ID that has no record.
var ErrUnknownAction = errors.New("drep: unknown governance action")

// Registration is a DRep's registration record.
type Registration struct {
	Credential ledger.DRepCredential
	Deposit    uint64
	Anchor     *string // off-chain metadata URL, if any
	Active     bool
	LastActiveEpoch uint64
}

// ActionKind enumerates the Conway governance action types.
type ActionKind uint8

const (
	ActionParameterChange ActionKind = iota
	ActionHardForkInitiation
	ActionTreasuryWithdrawals
	ActionNewConstitution
	ActionUpdateCommittee
	ActionNoConfidence
	ActionInfo
)

// ActionID identifies a governance action by its submitting
// transaction hash and the certificate index within it.
type ActionID struct {
	TxHash ledger.TxHash
	Index  uint16
}

// Vote is a single DRep/SPO/committee vote on an action.
type Vote uint8

const (
	VoteNo Vote = iota
	VoteYes
	VoteAbstain
)

// GovernanceAction tracks one submitted action through its lifetime.
type GovernanceAction struct {
	ID          ActionID
	Kind        ActionKind
	ExpiryEpoch uint64
	Votes       map[string]Vote // voter credential key -> vote
	Ratified    bool
	Enacted     bool
}

const (
	topicDRepLifecycle   = "ledger.drep.lifecycle"
	topicActionLifecycle = "ledger.drep.action_lifecycle"
)

// snapshot deep-copies every map the module owns, for rollback.
type snapshot struct {
	dreps   map[string]*Registration
	actions map[ActionID]*GovernanceAction
}

// Module is the DRep/governance module.
type Module struct {
	bus *bus.Bus
	k   uint64 // security parameter, reported on a rejected deep rollback

	mu      sync.RWMutex
	dreps   map[string]*Registration
	actions map[ActionID]*GovernanceAction

	history *statehistory.StateHistory[snapshot]
}

// New constructs an empty Module. k is the node's security parameter,
// used only to annotate a rejected too-deep rollback.
func New(b *bus.Bus, k uint64) *Module {
	return &Module{
		bus:     b,
		k:       k,
		dreps:   make(map[string]*Registration),
		actions: make(map[ActionID]*GovernanceAction),
		history: statehistory.NewEpochState[snapshot](),
	}
}

func cloneDReps(m map[string]*Registration) map[string]*Registration {
	out := make(map[string]*Registration, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func cloneActions(m map[ActionID]*GovernanceAction) map[ActionID]*GovernanceAction {
	out := make(map[ActionID]*GovernanceAction, len(m))
	for k, v := range m {
		cp := *v
		cp.Votes = make(map[string]Vote, len(v.Votes))
		for vk, vv := range v.Votes {
			cp.Votes[vk] = vv
		}
		out[k] = &cp
	}
	return out
}

// Commit records the module's current DRep and governance-action
// state at index, so a later Rollback can restore it.
func (m *Module) Commit(index uint64) {
	m.mu.RLock()
	snap := snapshot{dreps: cloneDReps(m.dreps), actions: cloneActions(m.actions)}
	m.mu.RUnlock()
	m.history.Commit(index, snap)
}

// Rollback restores DRep/governance state to the last snapshot
// committed at or before index. It returns *bus.ErrForkTooDeep if
// index precedes every retained snapshot.
func (m *Module) Rollback(index uint64) error {
	snap, err := m.history.GetRolledBackState(index)
	if err != nil {
		if errors.Is(err, statehistory.ErrForkTooDeep) {
			_, newest, _ := m.history.Bounds()
			return &bus.ErrForkTooDeep{ForkDepth: newest - index, MaxK: m.k}
		}
		return err
	}
	m.mu.Lock()
	m.dreps = cloneDReps(snap.dreps)
	m.actions = cloneActions(snap.actions)
	m.mu.Unlock()
	return nil
}

func drepKey(c ledger.DRepCredential) string {
	return c.String()
}

// Register records a new DRep registration.
func (m *Module) Register(cred ledger.DRepCredential, deposit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dreps[drepKey(cred)] = &Registration{Credential: cred, Deposit: deposit, Active: true}
}

// Deregister removes a DRep's registration, returning its deposit for
// refund.
func (m *Module) Deregister(cred ledger.DRepCredential) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.dreps[drepKey(cred)]
	if !ok {
		return 0, ErrUnknownDRep
	}
	delete(m.dreps, drepKey(cred))
	return reg.Deposit, nil
}

// MarkActive refreshes a DRep's recorded last-active epoch. Ratify
// does not read it: ratification weight comes only from the stakes
// the caller passes in.
func (m *Module) MarkActive(cred ledger.DRepCredential, epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.dreps[drepKey(cred)]
	if !ok {
		return ErrUnknownDRep
	}
	reg.LastActiveEpoch = epoch
	return nil
}

// SubmitAction opens a new governance action for voting.
func (m *Module) SubmitAction(id ActionID, kind ActionKind, expiryEpoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[id] = &GovernanceAction{
		ID:          id,
		Kind:        kind,
		ExpiryEpoch: expiryEpoch,
		Votes:       make(map[string]Vote),
	}
}

// CastVote records a vote from voterKey (a DRep, SPO or committee
// member credential key) on a governance action.
func (m *Module) CastVote(id ActionID, voterKey string, vote Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action, ok := m.actions[id]
	if !ok {
		return ErrUnknownAction
	}
	action.Votes[voterKey] = vote
	return nil
}

// Ratify evaluates whether an action's yes-vote share (by the
// supplied total DRep voting stake and yes-vote stake) clears
// threshold, marking it ratified if so. Enactment of a ratified
// action's effect (parameter change, committee update, etc.) is the
// caller's responsibility once Ratify reports true.
func (m *Module) Ratify(id ActionID, yesStake, totalStake uint64, threshold ledger.RationalNumber) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	action, ok := m.actions[id]
	if !ok {
		return false, ErrUnknownAction
	}
	if totalStake == 0 {
		return false, nil
	}
	share, err := ledger.NewRational(yesStake, totalStake)
	if err != nil {
		return false, err
	}
	if share.Less(threshold) {
		return false, nil
	}
	action.Ratified = true
	return true, nil
}

// Get returns a governance action's current state.
func (m *Module) Get(id ActionID) (GovernanceAction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	action, ok := m.actions[id]
	if !ok {
		return GovernanceAction{}, false
	}
	return *action, true
}
