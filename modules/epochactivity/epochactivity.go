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

// Package epochactivity counts blocks produced per pool within the
// current epoch, used by the reward calculation to weight a pool's
// share of the monetary expansion by how much of the epoch it
// actually produced. It also carries epoch nonce rotation
// (ledger.Nonces), since both are driven by the same per-block and
// per-epoch-boundary hooks.
package epochactivity

import (
	"context"
	"errors"
	"sync"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

const topicEpochActivity = "ledger.epochactivity.published"

// Activity is one epoch's block-production counts, keyed by pool,
// plus the fees collected across the epoch's blocks; both feed the
// reward calculation at the next boundary.
type Activity struct {
	Epoch        uint64
	TotalFees    uint64
	BlocksByPool map[ledger.PoolID]uint64
	Nonces       ledger.Nonces
}

// TotalBlocks sums the per-pool counts.
func (a Activity) TotalBlocks() uint64 {
	var total uint64
	for _, n := range a.BlocksByPool {
		total += n
	}
	return total
}

// defaultWindow bounds the per-block history retained for mid-epoch
// rollback, matching the typical Cardano security parameter.
const defaultWindow = 2160

// Module tracks the in-progress epoch's activity.
type Module struct {
	bus *bus.Bus
	k   uint64 // security parameter, reported on a rejected deep rollback

	mu      sync.Mutex
	current Activity

	// history retains the in-progress epoch's activity as of each
	// block height, so a rollback within the epoch can restore
	// BlocksByPool/Nonces without replaying from the epoch start.
	history *statehistory.StateHistory[Activity]
}

// New constructs a Module starting at epoch 0, retaining k blocks of
// rollback history. k <= 0 falls back to defaultWindow.
func New(b *bus.Bus, k uint64) *Module {
	window := int(k)
	if window <= 0 {
		window = defaultWindow
	}
	return &Module{
		bus:     b,
		k:       k,
		current: Activity{BlocksByPool: make(map[ledger.PoolID]uint64)},
		history: statehistory.NewBlockState[Activity](window),
	}
}

func cloneActivity(a Activity) Activity {
	out := Activity{Epoch: a.Epoch, TotalFees: a.TotalFees, Nonces: a.Nonces, BlocksByPool: make(map[ledger.PoolID]uint64, len(a.BlocksByPool))}
	for k, v := range a.BlocksByPool {
		out.BlocksByPool[k] = v
	}
	return out
}

// RecordBlock increments pool's count for the current epoch, adds the
// block's fees, folds the block's VRF output into the running nonce,
// and commits the resulting activity at blockHeight so a later
// rollback can restore it.
func (m *Module) RecordBlock(blockHeight uint64, pool ledger.PoolID, fees uint64, vrfOutputHash ledger.Nonce, blockHash ledger.BlockHash) {
	m.mu.Lock()
	m.current.BlocksByPool[pool]++
	m.current.TotalFees += fees
	m.current.Nonces.FoldBlockNonce(vrfOutputHash, blockHash)
	snap := cloneActivity(m.current)
	m.mu.Unlock()
	m.history.Commit(blockHeight, snap)
}

// Rollback restores the in-progress epoch's activity to the state
// recorded at or before blockHeight. It returns *bus.ErrForkTooDeep if
// blockHeight precedes every retained snapshot.
func (m *Module) Rollback(blockHeight uint64) error {
	snap, err := m.history.GetRolledBackState(blockHeight)
	if err != nil {
		if errors.Is(err, statehistory.ErrForkTooDeep) {
			_, newest, _ := m.history.Bounds()
			return &bus.ErrForkTooDeep{ForkDepth: newest - blockHeight, MaxK: m.k}
		}
		return err
	}
	m.mu.Lock()
	m.current = cloneActivity(snap)
	m.mu.Unlock()
	return nil
}

// FreezeCandidateNonce freezes the candidate nonce once the stability
// window is crossed within the epoch.
func (m *Module) FreezeCandidateNonce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Nonces.FreezeCandidate()
}

// ApplyEpochBoundary publishes the completed epoch's activity and
// resets counters for newEpoch, rotating the nonce state forward. The
// completed activity is returned so the caller can feed its block
// counts and fees into the reward calculation.
func (m *Module) ApplyEpochBoundary(ctx context.Context, newEpoch uint64) (Activity, error) {
	m.mu.Lock()
	completed := m.current
	completed.Nonces.RotateEpoch(newEpoch)
	m.current = Activity{
		Epoch:        newEpoch,
		BlocksByPool: make(map[ledger.PoolID]uint64),
		Nonces:       completed.Nonces,
	}
	m.mu.Unlock()

	if m.bus == nil {
		return completed, nil
	}
	err := m.bus.Publish(ctx, topicEpochActivity, bus.Message{
		Kind:    bus.KindCardano,
		Action:  bus.ActionApply,
		Payload: completed,
	})
	return completed, err
}

// Current returns a copy of the in-progress epoch's activity.
func (m *Module) Current() Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Activity{Epoch: m.current.Epoch, Nonces: m.current.Nonces, TotalFees: m.current.TotalFees, BlocksByPool: make(map[ledger.PoolID]uint64)}
	for k, v := range m.current.BlocksByPool {
		out.BlocksByPool[k] = v
	}
	return out
}
