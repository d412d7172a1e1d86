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

// Package distribution aggregates the two per-epoch distributions
// every reward and governance calculation is built on: the Stake Pool
// Delegation Distribution (SPDD, total stake delegated to each pool)
// and the DRep Delegation Distribution (DRDD, total stake delegated
// to each DRep). Both are kept as statehistory.StateHistory so a
// rollback can recover the distribution as of any still-retained
// epoch without recomputing it from account state.
package distribution

import (
	"context"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

const (
	topicSPDD = "ledger.distribution.spdd"
	topicDRDD = "ledger.distribution.drdd"
)

// SPDDSnapshot maps pool to total delegated stake for one epoch.
type SPDDSnapshot struct {
	Epoch uint64
	Stake map[ledger.PoolID]uint64
}

// DRDDSnapshot maps DRep to total delegated stake for one epoch,
// including the Abstain/NoConfidence sentinel totals.
type DRDDSnapshot struct {
	Epoch uint64
	Stake map[string]uint64
}

// Module tracks both distributions.
type Module struct {
	bus *bus.Bus

	spdd *statehistory.StateHistory[SPDDSnapshot]
	drdd *statehistory.StateHistory[DRDDSnapshot]
}

// New constructs a Module.
func New(b *bus.Bus) *Module {
	return &Module{
		bus:  b,
		spdd: statehistory.NewEpochState[SPDDSnapshot](),
		drdd: statehistory.NewEpochState[DRDDSnapshot](),
	}
}

// CommitSPDD records a new SPDD snapshot and publishes it.
func (m *Module) CommitSPDD(ctx context.Context, snap SPDDSnapshot) error {
	m.spdd.Commit(snap.Epoch, snap)
	return m.publish(ctx, topicSPDD, snap)
}

// CommitDRDD records a new DRDD snapshot and publishes it.
func (m *Module) CommitDRDD(ctx context.Context, snap DRDDSnapshot) error {
	m.drdd.Commit(snap.Epoch, snap)
	return m.publish(ctx, topicDRDD, snap)
}

// CurrentSPDD returns the most recent SPDD snapshot.
func (m *Module) CurrentSPDD() (SPDDSnapshot, error) {
	return m.spdd.Current()
}

// CurrentDRDD returns the most recent DRDD snapshot.
func (m *Module) CurrentDRDD() (DRDDSnapshot, error) {
	return m.drdd.Current()
}

// RollbackTo rolls both distributions back to the state as of
// rollbackEpoch.
func (m *Module) RollbackTo(rollbackEpoch uint64) error {
	if _, err := m.spdd.GetRolledBackState(rollbackEpoch); err != nil && err != statehistory.ErrEmpty {
		return err
	}
	if _, err := m.drdd.GetRolledBackState(rollbackEpoch); err != nil && err != statehistory.ErrEmpty {
		return err
	}
	return nil
}

func (m *Module) publish(ctx context.Context, topic string, payload any) error {
	if m.bus == nil {
		return nil
	}
	return m.bus.Publish(ctx, topic, bus.Message{Kind: bus.KindCardano, Action: bus.ActionApply, Payload: payload})
}
