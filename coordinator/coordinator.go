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

// Package coordinator subscribes to the block apply/rollback traffic
// blocksource.Driver (or a real chain-sync client) publishes on
// blocksource.CardanoTopic and dispatches it to every ledger module's
// existing methods. It is the one place that knows the order
// certificates within a block must be applied in, and that an epoch
// boundary's joint effects -- pool retirement refunding into accounts,
// the stake snapshot rotation feeding the SPDD/DRDD, protocol
// parameter rotation -- must all be computed from a single consistent
// view of the block that crossed it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/blinklabs-io/cardano-ledger-core/blocksource"
	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/modules/accounts"
	"github.com/blinklabs-io/cardano-ledger-core/modules/distribution"
	"github.com/blinklabs-io/cardano-ledger-core/modules/drep"
	"github.com/blinklabs-io/cardano-ledger-core/modules/epochactivity"
	"github.com/blinklabs-io/cardano-ledger-core/modules/parameters"
	"github.com/blinklabs-io/cardano-ledger-core/modules/spo"
	"github.com/blinklabs-io/cardano-ledger-core/modules/utxo"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

// Modules bundles every stateful ledger module the coordinator drives.
type Modules struct {
	Utxo          *utxo.Module
	Accounts      *accounts.Module
	SPO           *spo.Module
	DRep          *drep.Module
	Parameters    *parameters.Module
	Distribution  *distribution.Module
	EpochActivity *epochactivity.Module
}

// Coordinator is the sole subscriber on blocksource.CardanoTopic. Its
// handler runs on that topic's single dispatch goroutine, so the
// sequence "compute a retirement event, then refund its deposit" (or
// any other cross-module effect of one block) never races a
// concurrent apply or rollback -- the bus's per-topic serial delivery
// is the only joint-consistency mechanism this needs.
type Coordinator struct {
	Modules

	bus *bus.Bus
	log *slog.Logger

	lastEpoch uint64
	haveEpoch bool
}

// New constructs a Coordinator over m. A nil logger falls back to
// slog.Default().
func New(b *bus.Bus, log *slog.Logger, m Modules) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{Modules: m, bus: b, log: log}
}

// Subscribe registers the coordinator's handler on
// blocksource.CardanoTopic. The returned subscription's Close stops
// further dispatch.
func (c *Coordinator) Subscribe() *bus.Subscription {
	return c.bus.Subscribe(blocksource.CardanoTopic, c.handleMessage)
}

func (c *Coordinator) handleMessage(ctx context.Context, msg bus.Message) error {
	switch msg.Action {
	case bus.ActionApply:
		payload, ok := msg.Payload.(blocksource.BlockPayload)
		if !ok {
			return fmt.Errorf("coordinator: unexpected apply payload type %T", msg.Payload)
		}
		return c.handleApply(ctx, payload.Info, payload.Body)
	case bus.ActionRollback:
		payload, ok := msg.Payload.(blocksource.RollbackPayload)
		if !ok {
			return fmt.Errorf("coordinator: unexpected rollback payload type %T", msg.Payload)
		}
		return c.handleRollback(ctx, payload.Info)
	default:
		return fmt.Errorf("coordinator: unknown bus action %v", msg.Action)
	}
}

// handleApply processes one applied block: an epoch boundary is
// applied first if this block's epoch differs from the last one seen,
// then the block's certificates and UTxO effects are dispatched to
// their owning modules, then every per-block history is committed at
// this block's height.
func (c *Coordinator) handleApply(ctx context.Context, info ledger.BlockInfo, body *blocksource.BlockBody) error {
	if c.haveEpoch && info.Epoch != c.lastEpoch {
		if err := c.applyEpochBoundary(ctx, info.Epoch); err != nil {
			return fmt.Errorf("coordinator: epoch boundary to %d: %w", info.Epoch, err)
		}
	}
	c.lastEpoch = info.Epoch
	c.haveEpoch = true

	if body != nil {
		if err := c.Utxo.ApplyBlock(ctx, info.Number, info.Hash, body.Spent, body.Created, body.TotalIn, body.TotalOut); err != nil {
			return fmt.Errorf("coordinator: applying utxo effects at height %d: %w", info.Number, err)
		}
		c.applyCertificates(body)

		var zeroPool ledger.PoolID
		if body.Producer != zeroPool {
			c.EpochActivity.RecordBlock(info.Number, body.Producer, body.Fees, body.VRFOutput, info.Hash)
		}
	}

	c.Accounts.Commit(info.Number)
	c.SPO.Commit(info.Number)
	c.DRep.Commit(info.Number)
	return nil
}

// applyCertificates dispatches one block's certificates to accounts,
// spo and drep in the order a real ledger rule applies them:
// registrations before the delegations/votes/retirements that depend
// on them. Per-certificate failures are logged rather than aborting
// the block -- one malformed certificate in a scenario file should not
// hide what every other certificate in the same block did.
func (c *Coordinator) applyCertificates(body *blocksource.BlockBody) {
	for _, r := range body.StakeRegistrations {
		c.Accounts.Register(r.Credential, r.Deposit)
	}
	for _, reg := range body.PoolRegistrations {
		_, existed := c.SPO.Get(reg.Operator)
		c.SPO.Register(reg)
		if !existed && reg.Deposit > 0 {
			c.Accounts.CreditPoolDeposit(reg.Deposit)
		}
	}
	for _, r := range body.DRepRegistrations {
		c.DRep.Register(r.Credential, r.Deposit)
	}

	for _, d := range body.Delegations {
		if err := c.Accounts.Delegate(d.Credential, d.Pool); err != nil {
			c.log.Error("coordinator: delegation failed", "error", err)
		}
	}
	for _, v := range body.VoteDelegations {
		if err := c.Accounts.DelegateVote(v.Credential, v.DRep); err != nil {
			c.log.Error("coordinator: vote delegation failed", "error", err)
		}
	}
	for _, w := range body.Withdrawals {
		if err := c.Accounts.Withdraw(w.Credential, w.Amount); err != nil {
			c.log.Error("coordinator: withdrawal failed", "error", err)
		}
	}
	for _, mir := range body.MIRTransfers {
		if err := c.Accounts.ApplyMIR(mir.Credential, mir.Amount, mir.FromReserves); err != nil {
			c.log.Error("coordinator: MIR transfer failed", "error", err)
		}
	}
	for _, cred := range body.StakeDeregistrations {
		if _, err := c.Accounts.Deregister(cred); err != nil {
			c.log.Error("coordinator: stake deregistration failed", "error", err)
		}
	}

	for _, r := range body.PoolRetirements {
		currentEpoch := c.lastEpoch
		maxEpoch := c.Parameters.Current().PoolRetireMaxEpoch
		if err := c.SPO.Retire(r.Pool, r.RetireEpoch, currentEpoch, maxEpoch); err != nil {
			c.log.Error("coordinator: pool retirement failed", "pool", r.Pool, "error", err)
		}
	}
	for _, cred := range body.DRepDeregistrations {
		if _, err := c.DRep.Deregister(cred); err != nil {
			c.log.Error("coordinator: drep deregistration failed", "error", err)
		}
	}
	for _, a := range body.GovernanceActions {
		c.DRep.SubmitAction(drep.ActionID{TxHash: a.ID.TxHash, Index: a.ID.Index}, drep.ActionKind(a.Kind), a.ExpiryEpoch)
	}
	for _, v := range body.GovernanceVotes {
		id := drep.ActionID{TxHash: v.ID.TxHash, Index: v.ID.Index}
		if err := c.DRep.CastVote(id, v.VoterKey, drep.Vote(v.Vote)); err != nil {
			c.log.Error("coordinator: governance vote failed", "error", err)
		}
	}
}

// applyEpochBoundary runs every module's epoch-boundary transition for
// the epoch that just ended, in the one order that keeps their joint
// effects consistent: the pool set active during the ended epoch is
// captured before retirements are applied, retirements are computed
// before their deposit refunds are credited to accounts, rewards are
// computed from the go snapshot and the ended epoch's block production
// before they are folded into balances, and the stake snapshot used to
// build the SPDD/DRDD is the one just rotated in by the same boundary.
func (c *Coordinator) applyEpochBoundary(ctx context.Context, newEpoch uint64) error {
	endedEpoch := c.lastEpoch

	// Pools retiring at this boundary were still active through the
	// epoch that just ended, so the reward calculation sees them.
	activePools := c.SPO.All()

	events := c.SPO.ApplyEpochBoundary(newEpoch)
	for _, ev := range events {
		if ev.Event != "retired" || ev.Deposit == 0 {
			continue
		}
		cred := lcommon.Credential{
			CredType:   lcommon.CredentialTypeAddrKeyHash,
			Credential: lcommon.Blake2b224(ev.RewardAccount),
		}
		if err := c.Accounts.RefundPoolDeposit(cred, ev.Deposit); err != nil {
			c.log.Error("coordinator: refunding retired pool deposit", "pool", ev.Pool, "error", err)
		}
	}
	if err := c.SPO.PublishLifecycle(ctx, events); err != nil {
		return fmt.Errorf("publishing pool lifecycle: %w", err)
	}

	activity, err := c.EpochActivity.ApplyEpochBoundary(ctx, newEpoch)
	if err != nil {
		return fmt.Errorf("epoch activity boundary: %w", err)
	}

	mark := c.Accounts.TakeSnapshot(endedEpoch)
	rotation := c.Accounts.RotateSnapshots(endedEpoch, mark)

	// Rewards for the ended epoch are paid from the go snapshot, taken
	// two boundaries earlier, weighted by the ended epoch's per-pool
	// block production.
	rewards := c.Accounts.ComputeSPORewards(
		endedEpoch,
		rotation.Go,
		activePools,
		activity.BlocksByPool,
		activity.TotalBlocks(),
		activity.TotalFees,
		c.Parameters.Current(),
	)
	c.Accounts.ApplyRewards(rewards)

	spoDist := make(map[ledger.PoolID]uint64, len(rotation.Mark.Delegation))
	drepDist := make(map[string]uint64, len(rotation.Mark.DRepDelegation))
	for key, stake := range rotation.Mark.Stake {
		if pool, ok := rotation.Mark.Delegation[key]; ok {
			spoDist[pool] += stake
		}
		if d, ok := rotation.Mark.DRepDelegation[key]; ok {
			drepDist[d.String()] += stake
		}
	}
	if err := c.Distribution.CommitSPDD(ctx, distribution.SPDDSnapshot{Epoch: endedEpoch, Stake: spoDist}); err != nil {
		return fmt.Errorf("committing SPDD: %w", err)
	}
	if err := c.Distribution.CommitDRDD(ctx, distribution.DRDDSnapshot{Epoch: endedEpoch, Stake: drepDist}); err != nil {
		return fmt.Errorf("committing DRDD: %w", err)
	}

	if err := c.Accounts.PublishEpochTransition(ctx, endedEpoch, spoDist, drepDist, rewards); err != nil {
		return fmt.Errorf("publishing epoch transition: %w", err)
	}

	if rotated := c.Parameters.ApplyEpochBoundary(newEpoch); rotated {
		if err := c.Parameters.PublishCurrent(ctx); err != nil {
			return fmt.Errorf("publishing rotated parameters: %w", err)
		}
	}

	return nil
}

// handleRollback unwinds every module back to the rolled-back block's
// height (or, for the epoch-indexed modules, its epoch). Each module's
// own Rollback rejects a target that predates its retained history --
// UTxO, SPO, DRep and epoch activity with *bus.ErrForkTooDeep,
// accounts and parameters with statehistory.ErrForkTooDeep; the
// coordinator does not try to
// recover from that itself; it surfaces the error so the caller knows
// this node must resync rather than continue unwinding in place.
func (c *Coordinator) handleRollback(ctx context.Context, info ledger.BlockInfo) error {
	if err := c.Utxo.Rollback(ctx, info.Number); err != nil {
		return fmt.Errorf("utxo rollback: %w", err)
	}
	if err := rollbackErr(c.Accounts.Rollback(info.Number)); err != nil {
		return fmt.Errorf("accounts rollback: %w", err)
	}
	if err := rollbackErr(c.SPO.Rollback(info.Number)); err != nil {
		return fmt.Errorf("spo rollback: %w", err)
	}
	if err := rollbackErr(c.DRep.Rollback(info.Number)); err != nil {
		return fmt.Errorf("drep rollback: %w", err)
	}
	if err := rollbackErr(c.EpochActivity.Rollback(info.Number)); err != nil {
		return fmt.Errorf("epoch activity rollback: %w", err)
	}
	if err := rollbackErr(c.Parameters.Rollback(info.Epoch)); err != nil {
		return fmt.Errorf("parameters rollback: %w", err)
	}
	if err := rollbackErr(c.Accounts.RollbackSnapshotRotation(info.Epoch)); err != nil {
		return fmt.Errorf("snapshot rotation rollback: %w", err)
	}
	if err := c.Accounts.PublishRollback(ctx, info.Epoch); err != nil {
		return fmt.Errorf("accounts rollback publish: %w", err)
	}
	if err := c.Distribution.RollbackTo(info.Epoch); err != nil {
		return fmt.Errorf("distribution rollback: %w", err)
	}

	c.lastEpoch = info.Epoch
	c.haveEpoch = true
	return nil
}

// rollbackErr filters out statehistory.ErrEmpty: a module that never
// committed any state has nothing to unwind, which is not a failure.
func rollbackErr(err error) error {
	if errors.Is(err, statehistory.ErrEmpty) {
		return nil
	}
	return err
}
