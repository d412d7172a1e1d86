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

package spo_test

import (
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/modules/spo"
)

func poolID(b byte) ledger.PoolID {
	buf := make([]byte, 28)
	buf[0] = b
	return lcommon.NewBlake2b224(buf)
}

// TestPoolLifetime walks a pool through its full lifetime: register
// at epoch 200, schedule retirement at epoch 203 for epoch 205. The
// pool stays active through epoch 204 and is gone by the 205 boundary.
func TestPoolLifetime(t *testing.T) {
	m := spo.New(nil, 10)
	pool := poolID(1)
	rewardBuf := make([]byte, 28)
	rewardBuf[0] = 0xAA
	rewardAccount := lcommon.NewBlake2b224(rewardBuf)
	m.Register(ledger.PoolRegistration{Operator: pool, Deposit: 500_000_000, RewardAccount: rewardAccount})
	require.NoError(t, m.Retire(pool, 205, 203, 10))

	for epoch := uint64(200); epoch <= 204; epoch++ {
		_, ok := m.Get(pool)
		require.True(t, ok, "pool must be active in epoch %d", epoch)
		m.ApplyEpochBoundary(epoch)
	}

	events := m.ApplyEpochBoundary(205)
	require.Len(t, events, 1)
	require.Equal(t, "retired", events[0].Event)
	require.Equal(t, uint64(500_000_000), events[0].Deposit)
	require.Equal(t, rewardAccount, events[0].RewardAccount)
	_, ok := m.Get(pool)
	require.False(t, ok)
}

func TestRetireUnknownPoolFails(t *testing.T) {
	m := spo.New(nil, 10)
	err := m.Retire(poolID(9), 210, 200, 10)
	require.ErrorIs(t, err, spo.ErrUnknownPool)
}

func TestRetireTooFarOutFails(t *testing.T) {
	m := spo.New(nil, 10)
	pool := poolID(2)
	m.Register(ledger.PoolRegistration{Operator: pool})
	err := m.Retire(pool, 300, 200, 10)
	require.ErrorIs(t, err, spo.ErrRetirementTooFarOut)
}

func TestRegisterUpdateStagesUntilBoundary(t *testing.T) {
	m := spo.New(nil, 10)
	pool := poolID(3)
	m.Register(ledger.PoolRegistration{Operator: pool, Pledge: 1})
	m.Register(ledger.PoolRegistration{Operator: pool, Pledge: 2})

	reg, ok := m.Get(pool)
	require.True(t, ok)
	require.Equal(t, uint64(1), reg.Pledge, "update must stay pending until the epoch boundary")

	events := m.ApplyEpochBoundary(1)
	require.Len(t, events, 1)
	reg, ok = m.Get(pool)
	require.True(t, ok)
	require.Equal(t, uint64(2), reg.Pledge)
}

func TestRollbackRestoresPoolState(t *testing.T) {
	m := spo.New(nil, 10)
	pool := poolID(4)
	m.Register(ledger.PoolRegistration{Operator: pool})
	m.Commit(10)

	m.Register(ledger.PoolRegistration{Operator: pool, Pledge: 99})
	m.ApplyEpochBoundary(1)
	m.Commit(11)

	reg, _ := m.Get(pool)
	require.Equal(t, uint64(99), reg.Pledge)

	require.NoError(t, m.Rollback(10))
	reg, ok := m.Get(pool)
	require.True(t, ok)
	require.Equal(t, uint64(0), reg.Pledge)
}

func TestRollbackForkTooDeep(t *testing.T) {
	m := spo.New(nil, 10)
	m.Commit(5)
	err := m.Rollback(1)
	var forkErr *bus.ErrForkTooDeep
	require.ErrorAs(t, err, &forkErr)
	require.Equal(t, uint64(4), forkErr.ForkDepth)
	require.Equal(t, uint64(10), forkErr.MaxK)
}
