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

package epochactivity_test

import (
	"context"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/modules/epochactivity"
)

func poolID(b byte) ledger.PoolID {
	buf := make([]byte, 28)
	buf[0] = b
	return lcommon.NewBlake2b224(buf)
}

func blockHash(b byte) ledger.BlockHash {
	var h ledger.BlockHash
	h[0] = b
	return h
}

func nonce(b byte) ledger.Nonce {
	buf := make([]byte, 32)
	buf[0] = b
	return lcommon.NewBlake2b256(buf)
}

func TestRecordBlockCountsPerPool(t *testing.T) {
	m := epochactivity.New(nil, 10)
	poolA, poolB := poolID(1), poolID(2)

	m.RecordBlock(1, poolA, 100, nonce(1), blockHash(1))
	m.RecordBlock(2, poolA, 50, nonce(2), blockHash(2))
	m.RecordBlock(3, poolB, 25, nonce(3), blockHash(3))

	current := m.Current()
	require.Equal(t, uint64(2), current.BlocksByPool[poolA])
	require.Equal(t, uint64(1), current.BlocksByPool[poolB])
	require.Equal(t, uint64(3), current.TotalBlocks())
	require.Equal(t, uint64(175), current.TotalFees)
}

func TestApplyEpochBoundaryResetsAndRotatesNonce(t *testing.T) {
	m := epochactivity.New(nil, 10)
	pool := poolID(3)
	m.RecordBlock(1, pool, 40, nonce(1), blockHash(1))
	m.FreezeCandidateNonce()

	completed, err := m.ApplyEpochBoundary(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), completed.BlocksByPool[pool])
	require.Equal(t, uint64(40), completed.TotalFees)

	current := m.Current()
	require.Equal(t, uint64(1), current.Epoch)
	require.Equal(t, uint64(0), current.BlocksByPool[pool], "boundary must reset the block counts")
	require.Equal(t, current.Nonces.Candidate, current.Nonces.Active, "active nonce for the new epoch must be the frozen candidate")
}

func TestRollbackRestoresBlockCounts(t *testing.T) {
	m := epochactivity.New(nil, 10)
	pool := poolID(4)

	m.RecordBlock(1, pool, 0, nonce(1), blockHash(1))
	m.RecordBlock(2, pool, 0, nonce(2), blockHash(2))
	require.Equal(t, uint64(2), m.Current().BlocksByPool[pool])

	require.NoError(t, m.Rollback(1))
	require.Equal(t, uint64(1), m.Current().BlocksByPool[pool])
}

func TestRollbackForkTooDeep(t *testing.T) {
	m := epochactivity.New(nil, 10)
	m.RecordBlock(100, poolID(5), 0, nonce(1), blockHash(1))
	err := m.Rollback(1)
	var forkErr *bus.ErrForkTooDeep
	require.ErrorAs(t, err, &forkErr)
	require.Equal(t, uint64(99), forkErr.ForkDepth)
	require.Equal(t, uint64(10), forkErr.MaxK)
}
