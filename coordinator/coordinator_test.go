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

package coordinator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/blocksource"
	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/coordinator"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/modules/accounts"
	"github.com/blinklabs-io/cardano-ledger-core/modules/distribution"
	"github.com/blinklabs-io/cardano-ledger-core/modules/drep"
	"github.com/blinklabs-io/cardano-ledger-core/modules/epochactivity"
	"github.com/blinklabs-io/cardano-ledger-core/modules/parameters"
	"github.com/blinklabs-io/cardano-ledger-core/modules/spo"
	"github.com/blinklabs-io/cardano-ledger-core/modules/utxo"
	"github.com/blinklabs-io/cardano-ledger-core/query"
	"github.com/blinklabs-io/cardano-ledger-core/storage"
)

const waitFor = 2 * time.Second

// pipeline wires every module, a coordinator subscribed to the block
// topic and a rollback-aware publisher in front of it, the same shape
// cmd/ledger-core assembles.
type pipeline struct {
	bus *bus.Bus
	pub *bus.RollbackAwarePublisher
	m   coordinator.Modules
}

func newPipeline(t *testing.T, k uint64, genesis ledger.ProtocolParams) *pipeline {
	t.Helper()
	b := bus.New(nil)
	t.Cleanup(b.Close)

	m := coordinator.Modules{
		Utxo:          utxo.New(nil, b, storage.NewMemoryStore(), k, utxo.PublishCompact),
		Accounts:      accounts.New(b),
		SPO:           spo.New(b, k),
		DRep:          drep.New(b, k),
		Parameters:    parameters.New(b, genesis, 5),
		Distribution:  distribution.New(b),
		EpochActivity: epochactivity.New(b, k),
	}
	m.Utxo.RegisterRouter()
	m.Accounts.RegisterRouter()
	m.SPO.RegisterRouter()
	m.DRep.RegisterRouter()
	m.Parameters.RegisterRouter()
	m.Distribution.RegisterRouters()
	m.EpochActivity.RegisterRouter()

	coord := coordinator.New(b, nil, m)
	sub := coord.Subscribe()
	t.Cleanup(sub.Close)

	return &pipeline{bus: b, pub: bus.NewRollbackAwarePublisher(b), m: m}
}

func (p *pipeline) apply(t *testing.T, info ledger.BlockInfo, body *blocksource.BlockBody) {
	t.Helper()
	err := p.pub.PublishApply(context.Background(), blocksource.CardanoTopic, info.Number,
		blocksource.BlockPayload{Info: info, Body: body})
	require.NoError(t, err)
}

func (p *pipeline) rollback(t *testing.T, info ledger.BlockInfo) {
	t.Helper()
	_, err := p.pub.PublishRollback(context.Background(), blocksource.CardanoTopic, info.Number,
		blocksource.RollbackPayload{Info: info})
	require.NoError(t, err)
}

// countRollbacks subscribes alongside the coordinator and returns a
// function reporting how many rollback messages reached the topic.
func countRollbacks(t *testing.T, b *bus.Bus) func() int {
	t.Helper()
	var mu sync.Mutex
	var n int
	sub := b.Subscribe(blocksource.CardanoTopic, func(ctx context.Context, msg bus.Message) error {
		if msg.Action == bus.ActionRollback {
			mu.Lock()
			n++
			mu.Unlock()
		}
		return nil
	})
	t.Cleanup(sub.Close)
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return n
	}
}

func blockAt(number, epoch uint64) ledger.BlockInfo {
	var hash ledger.BlockHash
	hash[0] = byte(number)
	hash[1] = byte(number >> 8)
	return ledger.BlockInfo{
		Slot:   number * 20,
		Number: number,
		Hash:   hash,
		Epoch:  epoch,
		Era:    ledger.EraConway,
		Status: ledger.StatusVolatile,
	}
}

func txHash(b byte) ledger.TxHash {
	buf := make([]byte, 32)
	buf[0] = b
	return lcommon.NewBlake2b256(buf)
}

func keyHash(b byte) lcommon.Blake2b224 {
	buf := make([]byte, 28)
	buf[0] = b
	return lcommon.NewBlake2b224(buf)
}

func stakeCred(b byte) ledger.StakeCredential {
	return lcommon.Credential{CredType: lcommon.CredentialTypeAddrKeyHash, Credential: keyHash(b)}
}

func testAddress(t *testing.T) ledger.Address {
	t.Helper()
	addr, err := lcommon.NewAddress("addr_test1qz2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3jcu5d8ps7zex2k2xt3uqxgjqnnj83ws8lhrn648jjxtwq2ytjqp")
	require.NoError(t, err)
	return ledger.Address{Addr: addr}
}

// TestApplyThenRollback replays the canonical apply-then-rollback
// sequence: an output created at block 10, spent at block 11, then a
// rollback to block 10. The output must be visible again afterwards,
// and exactly one rollback must have reached downstream subscribers.
func TestApplyThenRollback(t *testing.T) {
	p := newPipeline(t, 10, ledger.ProtocolParams{})
	rollbacks := countRollbacks(t, p.bus)
	addr := testAddress(t)

	id := ledger.UTxOIdentifier{TxHash: txHash(0xA1), Index: 0}
	p.apply(t, blockAt(10, 400), &blocksource.BlockBody{
		Created:  map[ledger.UTxOIdentifier]ledger.UTxOValue{id: {Address: addr, Lovelace: 100_000_000}},
		TotalIn:  100_000_000,
		TotalOut: 100_000_000,
	})
	p.apply(t, blockAt(11, 400), &blocksource.BlockBody{
		Spent:    []ledger.UTxOIdentifier{id},
		TotalIn:  100_000_000,
		TotalOut: 100_000_000,
	})

	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(id)
		return err == nil && !found
	}, waitFor, time.Millisecond)

	p.rollback(t, blockAt(10, 400))

	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(id)
		return err == nil && found && rollbacks() == 1
	}, waitFor, time.Millisecond)

	val, _, err := p.m.Utxo.Get(id)
	require.NoError(t, err)
	require.Equal(t, uint64(100_000_000), val.Lovelace)
	held := p.m.Utxo.ByAddress(addr)
	require.Len(t, held, 1)
	require.Equal(t, uint64(100_000_000), held[id].Lovelace)

	// A second rollback to the same point has nothing left to undo;
	// the rollback-aware publisher must suppress it. The follow-up
	// apply doubles as a fence: once its output is visible, the
	// suppressed rollback has been through the topic queue too.
	p.rollback(t, blockAt(10, 400))
	id2 := ledger.UTxOIdentifier{TxHash: txHash(0xA2), Index: 0}
	p.apply(t, blockAt(11, 400), &blocksource.BlockBody{
		Created:  map[ledger.UTxOIdentifier]ledger.UTxOValue{id2: {Address: addr, Lovelace: 7}},
		TotalIn:  7,
		TotalOut: 7,
	})
	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(id2)
		return err == nil && found
	}, waitFor, time.Millisecond)
	require.Equal(t, 1, rollbacks())
}

// TestRollbackIdempotence verifies that apply(B1..B3), rollback(B1),
// reapply(B2..B3) lands every module in the same state as never
// rolling back at all.
func TestRollbackIdempotence(t *testing.T) {
	p := newPipeline(t, 10, ledger.ProtocolParams{})
	addr := testAddress(t)

	id1 := ledger.UTxOIdentifier{TxHash: txHash(1), Index: 0}
	id2 := ledger.UTxOIdentifier{TxHash: txHash(2), Index: 0}
	cred := stakeCred(0x10)

	b1 := &blocksource.BlockBody{
		Created:  map[ledger.UTxOIdentifier]ledger.UTxOValue{id1: {Address: addr, Lovelace: 50}},
		TotalIn:  50,
		TotalOut: 50,
	}
	b2 := &blocksource.BlockBody{
		StakeRegistrations: []blocksource.StakeRegistration{{Credential: cred, Deposit: 2_000_000}},
	}
	b3 := &blocksource.BlockBody{
		Spent:    []ledger.UTxOIdentifier{id1},
		Created:  map[ledger.UTxOIdentifier]ledger.UTxOValue{id2: {Address: addr, Lovelace: 50}},
		TotalIn:  50,
		TotalOut: 50,
	}

	p.apply(t, blockAt(1, 100), b1)
	p.apply(t, blockAt(2, 100), b2)
	p.apply(t, blockAt(3, 100), b3)

	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(id2)
		return err == nil && found
	}, waitFor, time.Millisecond)

	wantPots := p.m.Accounts.AdaPots()
	require.Equal(t, uint64(2_000_000), wantPots.Deposits)

	p.rollback(t, blockAt(1, 100))
	require.Eventually(t, func() bool {
		return p.m.Utxo.Len() == 1 && p.m.Accounts.AdaPots().Deposits == 0
	}, waitFor, time.Millisecond)

	p.apply(t, blockAt(2, 100), b2)
	p.apply(t, blockAt(3, 100), b3)

	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(id2)
		return err == nil && found
	}, waitFor, time.Millisecond)

	_, found, err := p.m.Utxo.Get(id1)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, wantPots, p.m.Accounts.AdaPots())
}

// TestPoolRetirementRefundsDeposit walks a pool through its full
// lifetime: registered at epoch 200, retirement scheduled at epoch 203
// for epoch 205. The pool must stay active through epoch 204 and be
// gone -- with its deposit refunded to the reward account -- once the
// boundary into 205 is crossed.
func TestPoolRetirementRefundsDeposit(t *testing.T) {
	p := newPipeline(t, 10, ledger.ProtocolParams{PoolRetireMaxEpoch: 18})

	pool := ledger.PoolID(keyHash(0x50))
	rewardCred := stakeCred(0x51)

	p.apply(t, blockAt(1, 200), &blocksource.BlockBody{
		StakeRegistrations: []blocksource.StakeRegistration{{Credential: rewardCred}},
		PoolRegistrations: []ledger.PoolRegistration{{
			Operator:      pool,
			Deposit:       500_000_000,
			RewardAccount: lcommon.AddrKeyHash(keyHash(0x51)),
		}},
	})
	p.apply(t, blockAt(2, 203), &blocksource.BlockBody{
		PoolRetirements: []blocksource.PoolRetirement{{Pool: pool, RetireEpoch: 205}},
	})
	p.apply(t, blockAt(3, 204), nil)

	require.Eventually(t, func() bool {
		_, active := p.m.SPO.Get(pool)
		return active && p.m.Accounts.AdaPots().Deposits == 500_000_000
	}, waitFor, time.Millisecond)

	p.apply(t, blockAt(4, 205), nil)

	require.Eventually(t, func() bool {
		_, active := p.m.SPO.Get(pool)
		return !active && p.m.Accounts.AdaPots().Deposits == 0
	}, waitFor, time.Millisecond)

	resp, err := p.bus.Request(context.Background(), query.TopicAccountState, bus.Message{
		Kind:    bus.KindStateQuery,
		Payload: accounts.GetAccountStateRequest{Credential: rewardCred},
	})
	require.NoError(t, err)
	st, ok := resp.(accounts.AccountState)
	require.True(t, ok)
	require.Equal(t, uint64(500_000_000), st.RewardBalance)
}

// TestDRepDistributionSnapshot delegates three credentials -- one to a
// real DRep, one to abstain, one to no-confidence -- and checks the
// DRDD built at the next epoch boundary splits their stake the same
// way.
func TestDRepDistributionSnapshot(t *testing.T) {
	p := newPipeline(t, 10, ledger.ProtocolParams{})

	dRep := ledger.DRepCredential{Kind: ledger.DRepKeyHash, Hash: keyHash(0x60)}
	s1, s2, s3 := stakeCred(0x61), stakeCred(0x62), stakeCred(0x63)

	p.apply(t, blockAt(1, 300), &blocksource.BlockBody{
		StakeRegistrations: []blocksource.StakeRegistration{
			{Credential: s1}, {Credential: s2}, {Credential: s3},
		},
		DRepRegistrations: []blocksource.DRepRegistration{{Credential: dRep, Deposit: 500_000_000}},
		MIRTransfers: []blocksource.MIRTransfer{
			{Credential: s1, Amount: 100, FromReserves: true},
			{Credential: s2, Amount: 50, FromReserves: true},
			{Credential: s3, Amount: 25, FromReserves: true},
		},
		VoteDelegations: []blocksource.VoteDelegation{
			{Credential: s1, DRep: dRep},
			{Credential: s2, DRep: ledger.Abstain()},
			{Credential: s3, DRep: ledger.NoConfidence()},
		},
	})
	p.apply(t, blockAt(2, 301), nil)

	require.Eventually(t, func() bool {
		_, err := p.m.Distribution.CurrentDRDD()
		return err == nil
	}, waitFor, time.Millisecond)

	drdd, err := p.m.Distribution.CurrentDRDD()
	require.NoError(t, err)
	require.Equal(t, uint64(300), drdd.Epoch)
	require.Equal(t, uint64(100), drdd.Stake[dRep.String()])
	require.Equal(t, uint64(50), drdd.Stake["abstain"])
	require.Equal(t, uint64(25), drdd.Stake["no-confidence"])
}

// TestForkDeeperThanWindowIsRefused applies more blocks than the
// volatile window holds, then asks for a rollback past the window's
// tail. The modules must refuse it and keep serving the original
// chain.
func TestForkDeeperThanWindowIsRefused(t *testing.T) {
	p := newPipeline(t, 10, ledger.ProtocolParams{})
	addr := testAddress(t)

	ids := make([]ledger.UTxOIdentifier, 21)
	for n := uint64(1); n <= 20; n++ {
		ids[n] = ledger.UTxOIdentifier{TxHash: txHash(byte(n)), Index: 0}
		p.apply(t, blockAt(n, 100), &blocksource.BlockBody{
			Created:  map[ledger.UTxOIdentifier]ledger.UTxOValue{ids[n]: {Address: addr, Lovelace: n}},
			TotalIn:  n,
			TotalOut: n,
		})
	}
	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(ids[20])
		return err == nil && found
	}, waitFor, time.Millisecond)

	p.rollback(t, blockAt(5, 100))

	// The refused rollback must leave the original chain intact: a
	// follow-up block still applies on top of block 20's state.
	id21 := ledger.UTxOIdentifier{TxHash: txHash(21), Index: 0}
	p.apply(t, blockAt(21, 100), &blocksource.BlockBody{
		Created:  map[ledger.UTxOIdentifier]ledger.UTxOValue{id21: {Address: addr, Lovelace: 21}},
		TotalIn:  21,
		TotalOut: 21,
	})
	require.Eventually(t, func() bool {
		_, found, err := p.m.Utxo.Get(id21)
		return err == nil && found
	}, waitFor, time.Millisecond)

	_, found, err := p.m.Utxo.Get(ids[20])
	require.NoError(t, err)
	require.True(t, found, "refused rollback must not unwind block 20")
}

// TestEpochBoundaryDistributesRewards walks three epoch boundaries so
// the go snapshot exists, produces one block in the final full epoch,
// and checks the boundary after it pays the delegator per the reward
// formula, publishes the distribution, and conserves total supply.
func TestEpochBoundaryDistributesRewards(t *testing.T) {
	genesis := ledger.ProtocolParams{
		NOpt:              1,
		A0:                ledger.ZeroRational,
		MonetaryExpansion: ledger.RationalNumber{Numerator: 1, Denominator: 10},
		TreasuryCut:       ledger.ZeroRational,
	}
	p := newPipeline(t, 10, genesis)
	p.m.Accounts.InitPots(accounts.AdaPots{Reserves: accounts.TotalSupply - 1000})

	var mu sync.Mutex
	var published []accounts.SPORewards
	sub := p.bus.Subscribe(accounts.TopicSPORewards, func(ctx context.Context, msg bus.Message) error {
		if msg.Action != bus.ActionApply {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		published = append(published, msg.Payload.(accounts.SPORewards))
		return nil
	})
	t.Cleanup(sub.Close)

	cred := stakeCred(0x70)
	pool := ledger.PoolID(keyHash(0x71))

	// Epoch 500: the delegator registers, funds its balance from the
	// reserves, and delegates to a freshly registered pool.
	p.apply(t, blockAt(1, 500), &blocksource.BlockBody{
		StakeRegistrations: []blocksource.StakeRegistration{{Credential: cred}},
		MIRTransfers:       []blocksource.MIRTransfer{{Credential: cred, Amount: 500, FromReserves: true}},
		Delegations:        []blocksource.Delegation{{Credential: cred, Pool: pool}},
		PoolRegistrations:  []ledger.PoolRegistration{{Operator: pool, Margin: ledger.ZeroRational}},
	})
	p.apply(t, blockAt(2, 501), nil)
	// Epoch 502 is the epoch whose production earns the rewards paid
	// from the snapshot taken at the end of 500.
	p.apply(t, blockAt(3, 502), &blocksource.BlockBody{
		Producer:  pool,
		VRFOutput: txHash(0x99),
	})
	p.apply(t, blockAt(4, 503), nil)

	// reserves at the boundary were TotalSupply - 1500, so the pot is
	// a tenth of that and the pool's share a third of the pot (sigma =
	// 500/1500), all of it flowing to the single delegator.
	const wantReward = uint64(1_499_999_999_999_950)
	credKey := string(keyHash(0x70).Bytes())

	require.Eventually(t, func() bool {
		resp, err := p.bus.Request(context.Background(), query.TopicAccountState, bus.Message{
			Kind:    bus.KindStateQuery,
			Payload: accounts.GetAccountStateRequest{Credential: cred},
		})
		if err != nil {
			return false
		}
		st, ok := resp.(accounts.AccountState)
		return ok && st.RewardBalance == 500+wantReward
	}, waitFor, time.Millisecond)

	require.NoError(t, p.m.Accounts.CheckSupplyInvariant(1000))

	mu.Lock()
	defer mu.Unlock()
	var paying *accounts.SPORewards
	for i := range published {
		if published[i].Total > 0 {
			paying = &published[i]
		}
	}
	require.NotNil(t, paying, "the paying boundary must publish its distribution")
	require.Equal(t, uint64(502), paying.Epoch)
	require.Equal(t, wantReward, paying.ByAccount[credKey])
	require.Equal(t, wantReward, paying.ByPool[pool])
}
