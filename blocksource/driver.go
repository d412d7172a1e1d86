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

package blocksource

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
)

// CardanoTopic is the topic every ledger module subscribes to for
// block apply/rollback traffic.
const CardanoTopic = "cardano.block"

// BlockPayload is the Message.Payload carried for an ApplyEvent. Body
// is nil for a block with no certificate/UTxO effects.
type BlockPayload struct {
	Info ledger.BlockInfo
	Body *BlockBody
}

// RollbackPayload is the Message.Payload carried for a RollbackEvent.
type RollbackPayload struct {
	Info ledger.BlockInfo
}

// Driver plays a Scenario onto a bus.RollbackAwarePublisher.
type Driver struct {
	publisher *bus.RollbackAwarePublisher

	// prevEpoch tracks the epoch of the last event played, so each
	// BlockInfo can carry NewEpoch the way a real chain-sync client
	// derives it from consecutive headers.
	prevEpoch    uint64
	havePrevious bool
}

// NewDriver constructs a Driver publishing through publisher.
func NewDriver(publisher *bus.RollbackAwarePublisher) *Driver {
	return &Driver{publisher: publisher}
}

// Run plays every event in scenario in order, in the calling
// goroutine, returning the first error encountered.
func (d *Driver) Run(ctx context.Context, scenario Scenario) error {
	for i, ev := range scenario.Events {
		switch {
		case ev.Apply != nil:
			if err := d.runApply(ctx, *ev.Apply); err != nil {
				return fmt.Errorf("blocksource: event %d apply: %w", i, err)
			}
		case ev.Rollback != nil:
			if err := d.runRollback(ctx, *ev.Rollback); err != nil {
				return fmt.Errorf("blocksource: event %d rollback: %w", i, err)
			}
		case ev.Sleep != nil:
			select {
			case <-time.After(ev.Sleep.Duration):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return fmt.Errorf("blocksource: event %d has no apply/rollback/sleep", i)
		}
	}
	return nil
}

func parseHash(s string) (ledger.BlockHash, error) {
	var h ledger.BlockHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("hash %q: expected %d bytes, got %d", s, len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// parseKeyHash28 decodes a hex-encoded 28-byte hash, the shape shared
// by pool key hashes, stake key hashes and DRep key hashes.
func parseKeyHash28(s string) (lcommon.Blake2b224, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return lcommon.Blake2b224{}, fmt.Errorf("invalid key hash %q: %w", s, err)
	}
	if len(raw) != 28 {
		return lcommon.Blake2b224{}, fmt.Errorf("key hash %q: expected 28 bytes, got %d", s, len(raw))
	}
	return lcommon.NewBlake2b224(raw), nil
}

// parseHash32 decodes a hex-encoded 32-byte hash, the shape shared by
// transaction hashes and epoch nonces.
func parseHash32(s string) (lcommon.Blake2b256, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return lcommon.Blake2b256{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != 32 {
		return lcommon.Blake2b256{}, fmt.Errorf("hash %q: expected 32 bytes, got %d", s, len(raw))
	}
	return lcommon.NewBlake2b256(raw), nil
}

// parseStakeCredential decodes a hex key hash into a key-hash-backed
// stake credential. Scenario files only exercise key-hash credentials;
// a script-hash stake credential has no certificate this blocksource
// package needs to produce.
func parseStakeCredential(s string) (ledger.StakeCredential, error) {
	hash, err := parseKeyHash28(s)
	if err != nil {
		return ledger.StakeCredential{}, err
	}
	return lcommon.Credential{CredType: lcommon.CredentialTypeAddrKeyHash, Credential: hash}, nil
}

// parseDRepCredential decodes a DRep delegation target: a hex key
// hash, or the literal "abstain" / "no-confidence" sentinel.
func parseDRepCredential(s string) (ledger.DRepCredential, error) {
	switch s {
	case "abstain":
		return ledger.Abstain(), nil
	case "no-confidence":
		return ledger.NoConfidence(), nil
	default:
		hash, err := parseKeyHash28(s)
		if err != nil {
			return ledger.DRepCredential{}, err
		}
		return ledger.DRepCredential{Kind: ledger.DRepKeyHash, Hash: hash}, nil
	}
}

// decodeBody converts a scenario's YAML Body into the typed BlockBody
// the coordinator dispatches to the ledger modules. A nil in produces
// a nil out, for a block with no certificate/UTxO effects.
func decodeBody(in *Body) (*BlockBody, error) {
	if in == nil {
		return nil, nil
	}
	out := &BlockBody{
		TotalIn:  in.TotalIn,
		TotalOut: in.TotalOut,
		Fees:     in.Fees,
	}

	if in.Producer != "" {
		hash, err := parseKeyHash28(in.Producer)
		if err != nil {
			return nil, fmt.Errorf("producer: %w", err)
		}
		out.Producer = ledger.PoolID(hash)
	}
	if in.VRFOutput != "" {
		nonce, err := parseHash32(in.VRFOutput)
		if err != nil {
			return nil, fmt.Errorf("vrfOutput: %w", err)
		}
		out.VRFOutput = ledger.Nonce(nonce)
	}

	for _, ref := range in.Spent {
		txHash, err := parseHash32(ref.TxHash)
		if err != nil {
			return nil, fmt.Errorf("spent: %w", err)
		}
		out.Spent = append(out.Spent, ledger.UTxOIdentifier{TxHash: ledger.TxHash(txHash), Index: ref.Index})
	}

	if len(in.Created) > 0 {
		out.Created = make(map[ledger.UTxOIdentifier]ledger.UTxOValue, len(in.Created))
		for _, o := range in.Created {
			txHash, err := parseHash32(o.TxHash)
			if err != nil {
				return nil, fmt.Errorf("created: %w", err)
			}
			addr, err := lcommon.NewAddress(o.Address)
			if err != nil {
				return nil, fmt.Errorf("created: invalid address %q: %w", o.Address, err)
			}
			id := ledger.UTxOIdentifier{TxHash: ledger.TxHash(txHash), Index: o.Index}
			out.Created[id] = ledger.UTxOValue{Address: ledger.Address{Addr: addr}, Lovelace: o.Lovelace}
		}
	}

	for _, r := range in.StakeRegistrations {
		cred, err := parseStakeCredential(r.Credential)
		if err != nil {
			return nil, fmt.Errorf("stakeRegistrations: %w", err)
		}
		out.StakeRegistrations = append(out.StakeRegistrations, StakeRegistration{Credential: cred, Deposit: r.Deposit})
	}
	for _, s := range in.StakeDeregistrations {
		cred, err := parseStakeCredential(s)
		if err != nil {
			return nil, fmt.Errorf("stakeDeregistrations: %w", err)
		}
		out.StakeDeregistrations = append(out.StakeDeregistrations, cred)
	}
	for _, d := range in.Delegations {
		cred, err := parseStakeCredential(d.Credential)
		if err != nil {
			return nil, fmt.Errorf("delegations: %w", err)
		}
		pool, err := parseKeyHash28(d.Pool)
		if err != nil {
			return nil, fmt.Errorf("delegations: %w", err)
		}
		out.Delegations = append(out.Delegations, Delegation{Credential: cred, Pool: ledger.PoolID(pool)})
	}
	for _, v := range in.VoteDelegations {
		cred, err := parseStakeCredential(v.Credential)
		if err != nil {
			return nil, fmt.Errorf("voteDelegations: %w", err)
		}
		drep, err := parseDRepCredential(v.DRep)
		if err != nil {
			return nil, fmt.Errorf("voteDelegations: %w", err)
		}
		out.VoteDelegations = append(out.VoteDelegations, VoteDelegation{Credential: cred, DRep: drep})
	}
	for _, w := range in.Withdrawals {
		cred, err := parseStakeCredential(w.Credential)
		if err != nil {
			return nil, fmt.Errorf("withdrawals: %w", err)
		}
		out.Withdrawals = append(out.Withdrawals, Withdrawal{Credential: cred, Amount: w.Amount})
	}
	for _, mir := range in.MIRTransfers {
		cred, err := parseStakeCredential(mir.Credential)
		if err != nil {
			return nil, fmt.Errorf("mirTransfers: %w", err)
		}
		out.MIRTransfers = append(out.MIRTransfers, MIRTransfer{Credential: cred, Amount: mir.Amount, FromReserves: mir.FromReserves})
	}

	for _, p := range in.PoolRegistrations {
		operator, err := parseKeyHash28(p.Operator)
		if err != nil {
			return nil, fmt.Errorf("poolRegistrations: %w", err)
		}
		var rewardAccount lcommon.Blake2b224
		if p.RewardAccount != "" {
			rewardAccount, err = parseKeyHash28(p.RewardAccount)
			if err != nil {
				return nil, fmt.Errorf("poolRegistrations: %w", err)
			}
		}
		out.PoolRegistrations = append(out.PoolRegistrations, ledger.PoolRegistration{
			Operator:      ledger.PoolID(operator),
			Pledge:        p.Pledge,
			Cost:          p.Cost,
			Margin:        ledger.ZeroRational,
			RewardAccount: lcommon.AddrKeyHash(rewardAccount),
			Deposit:       p.Deposit,
		})
	}
	for _, r := range in.PoolRetirements {
		pool, err := parseKeyHash28(r.Pool)
		if err != nil {
			return nil, fmt.Errorf("poolRetirements: %w", err)
		}
		out.PoolRetirements = append(out.PoolRetirements, PoolRetirement{Pool: ledger.PoolID(pool), RetireEpoch: r.RetireEpoch})
	}

	for _, r := range in.DRepRegistrations {
		cred, err := parseDRepCredential(r.Credential)
		if err != nil {
			return nil, fmt.Errorf("drepRegistrations: %w", err)
		}
		out.DRepRegistrations = append(out.DRepRegistrations, DRepRegistration{Credential: cred, Deposit: r.Deposit})
	}
	for _, s := range in.DRepDeregistrations {
		cred, err := parseDRepCredential(s)
		if err != nil {
			return nil, fmt.Errorf("drepDeregistrations: %w", err)
		}
		out.DRepDeregistrations = append(out.DRepDeregistrations, cred)
	}
	for _, a := range in.GovernanceActions {
		txHash, err := parseHash32(a.TxHash)
		if err != nil {
			return nil, fmt.Errorf("governanceActions: %w", err)
		}
		out.GovernanceActions = append(out.GovernanceActions, GovernanceActionSubmission{
			ID:          ActionID{TxHash: ledger.TxHash(txHash), Index: a.Index},
			Kind:        a.Kind,
			ExpiryEpoch: a.ExpiryEpoch,
		})
	}
	for _, v := range in.GovernanceVotes {
		txHash, err := parseHash32(v.TxHash)
		if err != nil {
			return nil, fmt.Errorf("governanceVotes: %w", err)
		}
		out.GovernanceVotes = append(out.GovernanceVotes, GovernanceVote{
			ID:       ActionID{TxHash: ledger.TxHash(txHash), Index: v.Index},
			VoterKey: v.VoterKey,
			Vote:     v.Vote,
		})
	}

	return out, nil
}

func (d *Driver) runApply(ctx context.Context, ev ApplyEvent) error {
	hash, err := parseHash(ev.Hash)
	if err != nil {
		return err
	}
	body, err := decodeBody(ev.Body)
	if err != nil {
		return fmt.Errorf("body: %w", err)
	}
	epoch := ledger.SlotToEpoch(ev.Slot)
	info := ledger.BlockInfo{
		Era:      ledger.EraForSlot(ev.Slot),
		Slot:     ev.Slot,
		Number:   ev.BlockNumber,
		Hash:     hash,
		Epoch:    epoch,
		NewEpoch: d.havePrevious && epoch != d.prevEpoch,
		Status:   ledger.StatusVolatile,
	}
	d.prevEpoch = epoch
	d.havePrevious = true
	return d.publisher.PublishApply(ctx, CardanoTopic, ev.BlockNumber, BlockPayload{
		Info: info,
		Body: body,
	})
}

func (d *Driver) runRollback(ctx context.Context, ev RollbackEvent) error {
	hash, err := parseHash(ev.Hash)
	if err != nil {
		return err
	}
	info := ledger.BlockInfo{
		Era:    ledger.EraForSlot(ev.Slot),
		Slot:   ev.Slot,
		Number: ev.BlockNumber,
		Hash:   hash,
		Epoch:  ledger.SlotToEpoch(ev.Slot),
		Status: ledger.StatusVolatile,
	}
	d.prevEpoch = info.Epoch
	d.havePrevious = true
	_, err = d.publisher.PublishRollback(ctx, CardanoTopic, ev.BlockNumber, RollbackPayload{Info: info})
	return err
}
