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

// Package parameters tracks the current/previous/future rotation of
// protocol parameters. Pre-Conway, a parameter update takes effect
// once a quorum of Shelley genesis delegates vote for the same
// proposal within an epoch; from Conway onward, a ratified
// ActionParameterChange governance action (see modules/drep) drives
// the same rotation instead. Era conversion -- turning whatever
// per-era shape a decoder produced into the flat ledger.ProtocolParams
// this module stores -- is the caller's responsibility; this module
// only ever holds the flattened result.
package parameters

import (
	"context"
	"sync"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

const topicParamsUpdated = "ledger.parameters.updated"

// GenesisDelegateVote is one genesis delegate's proposed parameter
// update for an epoch, keyed by a hash of the proposal's content so
// identical proposals from different delegates count toward the same
// quorum.
type GenesisDelegateVote struct {
	Delegate     string
	ProposalHash string
}

// Module tracks current/previous/future protocol parameters.
type Module struct {
	bus *bus.Bus

	mu       sync.RWMutex
	current  ledger.ProtocolParams
	previous ledger.ProtocolParams
	future   *ledger.ProtocolParams

	// Shelley genesis-delegate quorum tracking: proposal hash -> set
	// of delegates who voted for it, and the actual params each
	// proposal hash corresponds to.
	votes     map[string]map[string]bool
	proposals map[string]ledger.ProtocolParams
	quorum    int

	// history is indexed by epoch; GetEpochParameters answers queries
	// against whatever was current as of that epoch, and Rollback
	// restores current/previous/future wholesale.
	history *statehistory.StateHistory[snapshot]
}

// snapshot deep-copies the rotation + quorum-tracking state, for
// epoch-indexed queries and rollback.
type snapshot struct {
	current   ledger.ProtocolParams
	previous  ledger.ProtocolParams
	future    *ledger.ProtocolParams
	votes     map[string]map[string]bool
	proposals map[string]ledger.ProtocolParams
}

// New constructs a Module seeded with genesis parameters and the
// genesis-delegate quorum size required to adopt a Shelley-era
// proposal.
func New(b *bus.Bus, genesis ledger.ProtocolParams, quorum int) *Module {
	m := &Module{
		bus:       b,
		current:   genesis,
		previous:  genesis,
		votes:     make(map[string]map[string]bool),
		proposals: make(map[string]ledger.ProtocolParams),
		quorum:    quorum,
		history:   statehistory.NewEpochState[snapshot](),
	}
	m.history.Commit(0, m.snapshotLocked())
	return m
}

func cloneVotes(m map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for k, v := range m {
		inner := make(map[string]bool, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out[k] = inner
	}
	return out
}

func cloneProposals(m map[string]ledger.ProtocolParams) map[string]ledger.ProtocolParams {
	out := make(map[string]ledger.ProtocolParams, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// snapshotLocked builds a snapshot of the module's current state.
// Callers must hold m.mu (for read or write).
func (m *Module) snapshotLocked() snapshot {
	var future *ledger.ProtocolParams
	if m.future != nil {
		f := *m.future
		future = &f
	}
	return snapshot{
		current:   m.current,
		previous:  m.previous,
		future:    future,
		votes:     cloneVotes(m.votes),
		proposals: cloneProposals(m.proposals),
	}
}

// CommitEpoch records the module's current state as of epoch, so
// GetEpochParameters can answer historical queries and Rollback can
// restore to it.
func (m *Module) CommitEpoch(epoch uint64) {
	m.mu.RLock()
	snap := m.snapshotLocked()
	m.mu.RUnlock()
	m.history.Commit(epoch, snap)
}

// GetEpochParameters returns the parameters that were current as of
// epoch, per the last CommitEpoch at or before it.
func (m *Module) GetEpochParameters(epoch uint64) (ledger.ProtocolParams, error) {
	for i := m.history.Len() - 1; i >= 0; i-- {
		entry, err := m.history.At(i)
		if err != nil {
			return ledger.ProtocolParams{}, err
		}
		if entry.BlockHeight <= epoch {
			return entry.State.current, nil
		}
	}
	return ledger.ProtocolParams{}, statehistory.ErrEmpty
}

// Rollback restores current/previous/future and quorum-vote tracking
// to the last snapshot committed at or before epoch.
func (m *Module) Rollback(epoch uint64) error {
	snap, err := m.history.GetRolledBackState(epoch)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current = snap.current
	m.previous = snap.previous
	m.future = snap.future
	m.votes = cloneVotes(snap.votes)
	m.proposals = cloneProposals(snap.proposals)
	m.mu.Unlock()
	return nil
}

// Current returns the currently active parameters.
func (m *Module) Current() ledger.ProtocolParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Previous returns the parameters active before the last rotation.
func (m *Module) Previous() ledger.ProtocolParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.previous
}

// ProposeShelley records one genesis delegate's vote for a parameter
// proposal, identified by proposalHash. Once quorum delegates have
// voted for the same proposal, it is staged as Future and takes
// effect at the next epoch boundary.
func (m *Module) ProposeShelley(delegate, proposalHash string, proposed ledger.ProtocolParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.votes[proposalHash]; !ok {
		m.votes[proposalHash] = make(map[string]bool)
		m.proposals[proposalHash] = proposed
	}
	m.votes[proposalHash][delegate] = true
	if len(m.votes[proposalHash]) >= m.quorum {
		future := m.proposals[proposalHash]
		m.future = &future
	}
}

// StageRatified stages a Conway-ratified ActionParameterChange to take
// effect at the next epoch boundary, bypassing the genesis-delegate
// quorum path entirely.
func (m *Module) StageRatified(proposed ledger.ProtocolParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.future = &proposed
}

// ApplyEpochBoundary promotes Future to Current if one is staged,
// returning whether a rotation occurred. It always commits the
// resulting state to history under newEpoch, rotated or not, so
// GetEpochParameters(newEpoch) is always answerable.
func (m *Module) ApplyEpochBoundary(newEpoch uint64) bool {
	m.mu.Lock()
	rotated := m.future != nil
	if rotated {
		m.previous = m.current
		m.current = *m.future
		m.future = nil
		m.votes = make(map[string]map[string]bool)
		m.proposals = make(map[string]ledger.ProtocolParams)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.history.Commit(newEpoch, snap)
	return rotated
}

// PublishCurrent publishes the now-current parameters, intended to be
// called right after an ApplyEpochBoundary that returned true.
func (m *Module) PublishCurrent(ctx context.Context) error {
	if m.bus == nil {
		return nil
	}
	return m.bus.Publish(ctx, topicParamsUpdated, bus.Message{
		Kind:    bus.KindCardano,
		Action:  bus.ActionApply,
		Payload: m.Current(),
	})
}
