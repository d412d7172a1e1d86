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

// Package spo tracks stake pool registration, update and retirement,
// and processes the epoch-boundary merge that applies pending updates
// and retires pools whose scheduled epoch has arrived.
package spo

import (
	"context"
	"errors"
	"sync"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

// ErrUnknownPool is returned by operations targeting a pool with no
// registration on file.
var ErrUnknownPool = errors.New("spo: unknown pool")

// ErrRetirementTooFarOut is returned when a retirement certificate
// schedules retirement beyond the PoolRetireMaxEpoch bound.
var ErrRetirementTooFarOut = errors.New("spo: retirement epoch exceeds e_max bound")

const topicPoolLifecycle = "ledger.spo.lifecycle"

// LifecycleEvent is published whenever a pool is registered, updated
// or retired. Deposit and RewardAccount are only populated for a
// "retired" event, carrying the pool's original registration deposit
// so the caller can refund it to the pool's reward account.
type LifecycleEvent struct {
	Pool          ledger.PoolID
	Event         string // "registered", "updated", "retired"
	Deposit       uint64
	RewardAccount lcommon.AddrKeyHash
}

// snapshot is a deep copy of every map the module owns, committed to
// history so a rollback can restore it wholesale instead of replaying
// certificate-by-certificate.
type snapshot struct {
	pools    map[ledger.PoolID]ledger.PoolRegistration
	pending  map[ledger.PoolID]ledger.PoolRegistration
	retiring map[ledger.PoolID]uint64
	retired  map[ledger.PoolID]ledger.PoolRegistration
}

// Module is the stake pool module.
type Module struct {
	bus *bus.Bus
	k   uint64 // security parameter, reported on a rejected deep rollback

	mu       sync.RWMutex
	pools    map[ledger.PoolID]ledger.PoolRegistration
	pending  map[ledger.PoolID]ledger.PoolRegistration // update staged, applies at next epoch boundary
	retiring map[ledger.PoolID]uint64                  // pool -> epoch it retires at
	retired  map[ledger.PoolID]ledger.PoolRegistration // archive

	history *statehistory.StateHistory[snapshot]
}

// New constructs an empty Module. k is the node's security parameter,
// used only to annotate a rejected too-deep rollback.
func New(b *bus.Bus, k uint64) *Module {
	return &Module{
		bus:      b,
		k:        k,
		pools:    make(map[ledger.PoolID]ledger.PoolRegistration),
		pending:  make(map[ledger.PoolID]ledger.PoolRegistration),
		retiring: make(map[ledger.PoolID]uint64),
		retired:  make(map[ledger.PoolID]ledger.PoolRegistration),
		history:  statehistory.NewEpochState[snapshot](),
	}
}

func clonePools(m map[ledger.PoolID]ledger.PoolRegistration) map[ledger.PoolID]ledger.PoolRegistration {
	out := make(map[ledger.PoolID]ledger.PoolRegistration, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRetiring(m map[ledger.PoolID]uint64) map[ledger.PoolID]uint64 {
	out := make(map[ledger.PoolID]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Commit records the module's current pool/pending/retiring/retired
// state at index (a block number or epoch, whichever the caller's
// history granularity is), so a later Rollback can restore to it.
func (m *Module) Commit(index uint64) {
	m.mu.RLock()
	snap := snapshot{
		pools:    clonePools(m.pools),
		pending:  clonePools(m.pending),
		retiring: cloneRetiring(m.retiring),
		retired:  clonePools(m.retired),
	}
	m.mu.RUnlock()
	m.history.Commit(index, snap)
}

// Rollback restores pool state to the last snapshot committed at or
// before index, discarding anything committed after it. It returns
// *bus.ErrForkTooDeep if index precedes every retained snapshot -- the
// caller must resync this module from a full replay.
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
	m.pools = clonePools(snap.pools)
	m.pending = clonePools(snap.pending)
	m.retiring = cloneRetiring(snap.retiring)
	m.retired = clonePools(snap.retired)
	m.mu.Unlock()
	return nil
}

// Register stages a new pool registration; it takes effect
// immediately if the pool has never been seen, or is treated as an
// update (staged for the next epoch boundary) if it has.
func (m *Module) Register(reg ledger.PoolRegistration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pools[reg.Operator]; exists {
		m.pending[reg.Operator] = reg
		return
	}
	m.pools[reg.Operator] = reg
}

// Retire schedules a pool for retirement at retireEpoch, bounded by
// currentEpoch+poolRetireMaxEpoch.
func (m *Module) Retire(pool ledger.PoolID, retireEpoch, currentEpoch, poolRetireMaxEpoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[pool]; !ok {
		return ErrUnknownPool
	}
	if retireEpoch > currentEpoch+poolRetireMaxEpoch {
		return ErrRetirementTooFarOut
	}
	m.retiring[pool] = retireEpoch
	return nil
}

// ApplyEpochBoundary applies every pending update and processes every
// pool whose scheduled retirement epoch has arrived, returning the
// lifecycle events produced so the caller can publish them (typically
// via PublishLifecycle).
func (m *Module) ApplyEpochBoundary(epoch uint64) []LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []LifecycleEvent
	for pool, reg := range m.pending {
		m.pools[pool] = reg
		delete(m.pending, pool)
		events = append(events, LifecycleEvent{Pool: pool, Event: "updated"})
	}
	for pool, retireEpoch := range m.retiring {
		if retireEpoch > epoch {
			continue
		}
		reg := m.pools[pool]
		m.retired[pool] = reg
		delete(m.pools, pool)
		delete(m.retiring, pool)
		events = append(events, LifecycleEvent{
			Pool:          pool,
			Event:         "retired",
			Deposit:       reg.Deposit,
			RewardAccount: reg.RewardAccount,
		})
	}
	return events
}

// Get returns a pool's current registration.
func (m *Module) Get(pool ledger.PoolID) (ledger.PoolRegistration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.pools[pool]
	return reg, ok
}

// All returns every currently-active pool registration.
func (m *Module) All() map[ledger.PoolID]ledger.PoolRegistration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ledger.PoolID]ledger.PoolRegistration, len(m.pools))
	for k, v := range m.pools {
		out[k] = v
	}
	return out
}

// PublishLifecycle publishes a batch of lifecycle events (typically
// the result of ApplyEpochBoundary) onto the bus.
func (m *Module) PublishLifecycle(ctx context.Context, events []LifecycleEvent) error {
	if m.bus == nil || len(events) == 0 {
		return nil
	}
	return m.bus.Publish(ctx, topicPoolLifecycle, bus.Message{
		Kind:    bus.KindCardano,
		Action:  bus.ActionApply,
		Payload: events,
	})
}
