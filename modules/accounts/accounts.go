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

// Package accounts tracks stake credential registration, pool/DRep
// delegation, reward balances and deposit accounting, and rotates the
// three-epoch mark/set/go stake snapshot used for reward calculation.
package accounts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

// defaultWindow bounds the per-block account-state history retained
// for rollback, matching the typical Cardano security parameter.
const defaultWindow = 2160

// ErrNotRegistered is returned when an operation targets a stake
// credential with no registration on file.
var ErrNotRegistered = errors.New("accounts: stake credential not registered")

// AccountState is the per-credential record this module tracks.
type AccountState struct {
	Credential    ledger.StakeCredential
	Registered    bool
	Deposit       uint64
	Delegation    *ledger.PoolID
	DRepDelegation *ledger.DRepCredential
	RewardBalance uint64
}

// AdaPots mirrors the four ledger-wide value pots.
type AdaPots struct {
	Reserves uint64
	Treasury uint64
	Rewards  uint64
	Deposits uint64
}

// StakeSnapshot is one epoch's worth of stake distribution used for
// reward calculation: stake per credential and the pool it was
// delegated to when the snapshot was taken.
type StakeSnapshot struct {
	Epoch          uint64
	Stake          map[string]uint64
	Delegation     map[string]ledger.PoolID
	DRepDelegation map[string]ledger.DRepCredential
}

// SnapshotRotation holds the three live snapshots: Mark is the one
// just taken (this epoch's end), Set was taken one epoch ago and is
// now used to compute leader schedule, Go was taken two epochs ago
// and is the one rewards for the upcoming epoch are paid against.
type SnapshotRotation struct {
	Mark StakeSnapshot
	Set  StakeSnapshot
	Go   StakeSnapshot
}

// CertificateDelta describes one certificate's effect on an account,
// published via publishCertificateDeltas.
type CertificateDelta struct {
	Credential ledger.StakeCredential
	Kind       string // "registration", "deregistration", "delegation", "drep_delegation"
}

// Topics this module's epoch-boundary fan-out publishes on, one per
// derived concern so a downstream consumer subscribes to exactly the
// changes it cares about instead of the whole account stream.
const (
	TopicCertificateDeltas   = "ledger.accounts.certificate_deltas"
	TopicRegistrationUpdates = "ledger.accounts.registration_updates"
	TopicStakeDiffs          = "ledger.accounts.stake_diffs"
	TopicSPODistribution     = "ledger.accounts.spo_distribution"
	TopicDRepDistribution    = "ledger.accounts.drep_distribution"
	TopicSPORewards          = "ledger.accounts.spo_rewards"
)

// Module is the accounts/stake state module.
type Module struct {
	bus *bus.Bus
	pub *bus.RollbackAwarePublisher

	mu       sync.RWMutex
	accounts map[string]*AccountState
	pots     AdaPots
	snap     SnapshotRotation

	// pendingDeltas/pendingUpdates accumulate this epoch's certificate
	// effects for the boundary fan-out; a rollback discards them since
	// replaying the blocks regenerates them.
	pendingDeltas  []CertificateDelta
	pendingUpdates []AccountState

	history *statehistory.StateHistory[SnapshotRotation]

	// blockHistory retains a deep copy of accounts+pots at every
	// applied block, so a rollback can restore exact per-block state
	// instead of only the coarser epoch-boundary snapshot rotation.
	blockHistory *statehistory.StateHistory[blockSnapshot]
}

// blockSnapshot is a deep copy of everything mutated per-block.
type blockSnapshot struct {
	accounts map[string]*AccountState
	pots     AdaPots
}

// New constructs an empty Module.
func New(b *bus.Bus) *Module {
	m := &Module{
		bus:          b,
		accounts:     make(map[string]*AccountState),
		history:      statehistory.NewEpochState[SnapshotRotation](),
		blockHistory: statehistory.NewBlockState[blockSnapshot](defaultWindow),
	}
	if b != nil {
		m.pub = bus.NewRollbackAwarePublisher(b)
	}
	return m
}

// InitPots seeds the ledger-wide pots, used by the bootstrap loader
// before any block is applied.
func (m *Module) InitPots(p AdaPots) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pots = p
}

func cloneAccounts(m map[string]*AccountState) map[string]*AccountState {
	out := make(map[string]*AccountState, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Commit records the module's current account/pot state at
// blockHeight, so a later Rollback can restore it.
func (m *Module) Commit(blockHeight uint64) {
	m.mu.RLock()
	snap := blockSnapshot{accounts: cloneAccounts(m.accounts), pots: m.pots}
	m.mu.RUnlock()
	m.blockHistory.Commit(blockHeight, snap)
}

// Rollback restores account/pot state to the last snapshot committed
// at or before blockHeight. Mark/set/go stake snapshots are rolled
// back separately by the caller via the epoch-indexed history -- a
// rollback that crosses an epoch boundary must call
// RollbackSnapshotRotation(epoch) too, per the module's design note
// that epoch-boundary state is replayed forward from its own snapshot.
func (m *Module) Rollback(blockHeight uint64) error {
	snap, err := m.blockHistory.GetRolledBackState(blockHeight)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.accounts = cloneAccounts(snap.accounts)
	m.pots = snap.pots
	// Pending fan-out buffers are discarded: replaying the blocks past
	// the rollback point regenerates them.
	m.pendingDeltas = nil
	m.pendingUpdates = nil
	m.mu.Unlock()
	return nil
}

// RollbackSnapshotRotation restores the mark/set/go stake-snapshot
// rotation to whatever was committed at or before epoch.
func (m *Module) RollbackSnapshotRotation(epoch uint64) error {
	snap, err := m.history.GetRolledBackState(epoch)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	return nil
}

// SPORewards is one epoch's reward distribution: the pot movements
// decided at the boundary plus the per-pool and per-account payouts
// computed from the go snapshot and the ended epoch's block
// production.
type SPORewards struct {
	Epoch     uint64
	Expansion uint64 // drawn from reserves (rho * reserves)
	Treasury  uint64 // treasury cut of the reward pot
	Total     uint64 // reward pot remaining after the treasury cut
	ByPool    map[ledger.PoolID]uint64
	ByAccount map[string]uint64 // credential key -> payout
}

// ComputeSPORewards computes the reward distribution for the epoch
// that just ended, per the Shelley ledger rules. The reward pot is
// rho * reserves + fees; the treasury takes tau of it; the remainder
// is shared between pools by the capped maximum-reward formula
//
//	f(s, sigma) = R/(1+a0) * (sigma' + s'*a0*(sigma' - s'*(z0-sigma')/z0)/z0)
//
// with sigma' = min(sigma, z0), s' = min(s, z0), z0 = 1/k -- scaled by
// each pool's apparent performance (blocks produced over its share of
// the active stake), then split between operator (cost + margin, plus
// rounding dust) and delegators pro rata against snapshot, the go
// snapshot taken two epochs earlier. The computation is pure; pots
// and balances move only when the result is handed to ApplyRewards.
func (m *Module) ComputeSPORewards(
	epoch uint64,
	snapshot StakeSnapshot,
	pools map[ledger.PoolID]ledger.PoolRegistration,
	blocksByPool map[ledger.PoolID]uint64,
	totalBlocks uint64,
	fees uint64,
	params ledger.ProtocolParams,
) SPORewards {
	r := SPORewards{
		Epoch:     epoch,
		ByPool:    make(map[ledger.PoolID]uint64),
		ByAccount: make(map[string]uint64),
	}
	if params.NOpt == 0 || totalBlocks == 0 {
		return r
	}

	m.mu.RLock()
	reserves := m.pots.Reserves
	m.mu.RUnlock()

	r.Expansion = mulFloor(reserves, params.MonetaryExpansion)
	pot := r.Expansion + fees
	r.Treasury = mulFloor(pot, params.TreasuryCut)
	r.Total = pot - r.Treasury

	totalStake := uint64(TotalSupply) - reserves
	if totalStake == 0 || r.Total == 0 {
		return r
	}

	poolStake := make(map[ledger.PoolID]uint64)
	var activeStake uint64
	for key, stake := range snapshot.Stake {
		pool, ok := snapshot.Delegation[key]
		if !ok {
			continue
		}
		poolStake[pool] += stake
		activeStake += stake
	}
	if activeStake == 0 {
		return r
	}

	available := new(big.Rat).SetInt(bigUint(r.Total))
	a0 := ratOf(params.A0)
	z0 := new(big.Rat).SetFrac(big.NewInt(1), bigUint(params.NOpt))

	// Pools are walked in key order so the clamp against the remaining
	// pot pays out deterministically.
	poolIDs := make([]ledger.PoolID, 0, len(pools))
	for pool := range pools {
		poolIDs = append(poolIDs, pool)
	}
	slices.SortFunc(poolIDs, func(a, b ledger.PoolID) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})

	remaining := r.Total
	for _, pool := range poolIDs {
		reg := pools[pool]
		stake := poolStake[pool]
		blocks := blocksByPool[pool]
		if stake == 0 || blocks == 0 || remaining == 0 {
			continue
		}

		sigma := new(big.Rat).SetFrac(bigUint(stake), bigUint(totalStake))
		pledge := new(big.Rat).SetFrac(bigUint(reg.Pledge), bigUint(totalStake))
		sigmaC := minRat(sigma, z0)
		pledgeC := minRat(pledge, z0)

		bonus := new(big.Rat).Sub(z0, sigmaC)
		bonus.Quo(bonus, z0)
		bonus.Mul(bonus, pledgeC)
		bonus = new(big.Rat).Sub(sigmaC, bonus)
		bonus.Quo(bonus, z0)
		bonus.Mul(bonus, a0)
		bonus.Mul(bonus, pledgeC)
		bonus.Add(bonus, sigmaC)

		denom := new(big.Rat).Add(big.NewRat(1, 1), a0)
		maxPool := new(big.Rat).Quo(available, denom)
		maxPool.Mul(maxPool, bonus)

		beta := new(big.Rat).SetFrac(bigUint(blocks), bigUint(totalBlocks))
		sigmaA := new(big.Rat).SetFrac(bigUint(stake), bigUint(activeStake))
		perf := new(big.Rat).Quo(beta, sigmaA)

		poolReward := min(floorRat(new(big.Rat).Mul(maxPool, perf)), remaining)
		remaining -= poolReward
		r.ByPool[pool] = poolReward

		operatorKey := string(reg.RewardAccount.Bytes())
		if poolReward <= reg.Cost {
			r.ByAccount[operatorKey] += poolReward
			continue
		}
		rest := poolReward - reg.Cost
		marginAmt := mulFloor(rest, reg.Margin)
		memberPot := rest - marginAmt

		var paid uint64
		for key, stakeD := range snapshot.Stake {
			if snapshot.Delegation[key] != pool {
				continue
			}
			share := new(big.Rat).SetFrac(bigUint(stakeD), bigUint(stake))
			member := floorRat(share.Mul(share, new(big.Rat).SetInt(bigUint(memberPot))))
			if member == 0 {
				continue
			}
			r.ByAccount[key] += member
			paid += member
		}
		// Rounding dust joins the operator share so the pool's payouts
		// sum exactly to its reward.
		r.ByAccount[operatorKey] += reg.Cost + marginAmt + (memberPot - paid)
	}
	return r
}

// ApplyRewards moves one computed distribution into the ledger: the
// expansion leaves reserves, the treasury cut lands in the treasury,
// balances are credited, and any payout whose account is no longer
// registered -- plus the undistributed remainder of the pot -- returns
// to reserves.
func (m *Module) ApplyRewards(r SPORewards) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var distributed uint64
	for key, amount := range r.ByAccount {
		st, ok := m.accounts[key]
		if !ok || !st.Registered {
			continue
		}
		st.RewardBalance += amount
		distributed += amount
	}
	m.pots.Reserves -= r.Expansion
	m.pots.Treasury += r.Treasury
	m.pots.Reserves += r.Total - distributed
}

func bigUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func ratOf(r ledger.RationalNumber) *big.Rat {
	if r.Denominator == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(bigUint(r.Numerator), bigUint(r.Denominator))
}

func minRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func floorRat(r *big.Rat) uint64 {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if !q.IsUint64() {
		return 0
	}
	return q.Uint64()
}

func mulFloor(v uint64, r ledger.RationalNumber) uint64 {
	return floorRat(new(big.Rat).Mul(new(big.Rat).SetInt(bigUint(v)), ratOf(r)))
}

func credKey(c ledger.StakeCredential) string {
	return string(c.Credential.Bytes())
}

// Register records a new stake credential, charging the key deposit.
func (m *Module) Register(cred ledger.StakeCredential, keyDeposit uint64) *AccountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok {
		st = &AccountState{Credential: cred}
		m.accounts[credKey(cred)] = st
	}
	st.Registered = true
	st.Deposit = keyDeposit
	m.pots.Deposits += keyDeposit
	m.pendingDeltas = append(m.pendingDeltas, CertificateDelta{Credential: cred, Kind: "registration"})
	m.pendingUpdates = append(m.pendingUpdates, *st)
	return st
}

// Deregister removes a stake credential's registration, refunding its
// deposit to the caller's responsibility (the deposit amount is
// returned so the caller can credit it to the certifying transaction).
func (m *Module) Deregister(cred ledger.StakeCredential) (refund uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok || !st.Registered {
		return 0, ErrNotRegistered
	}
	refund = st.Deposit
	m.pots.Deposits -= refund
	delete(m.accounts, credKey(cred))
	m.pendingDeltas = append(m.pendingDeltas, CertificateDelta{Credential: cred, Kind: "deregistration"})
	return refund, nil
}

// Delegate sets a stake credential's pool delegation.
func (m *Module) Delegate(cred ledger.StakeCredential, pool ledger.PoolID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok || !st.Registered {
		return ErrNotRegistered
	}
	st.Delegation = &pool
	m.pendingDeltas = append(m.pendingDeltas, CertificateDelta{Credential: cred, Kind: "delegation"})
	return nil
}

// DelegateVote sets a stake credential's DRep delegation.
func (m *Module) DelegateVote(cred ledger.StakeCredential, drep ledger.DRepCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok || !st.Registered {
		return ErrNotRegistered
	}
	st.DRepDelegation = &drep
	m.pendingDeltas = append(m.pendingDeltas, CertificateDelta{Credential: cred, Kind: "drep_delegation"})
	return nil
}

// ErrInsufficientRewardBalance is returned by Withdraw when the
// requested amount exceeds the credential's reward balance.
var ErrInsufficientRewardBalance = errors.New("accounts: withdrawal exceeds reward balance")

// Withdraw debits amount from a stake credential's reward balance,
// for a withdrawal transaction whose output crediting the UTxO set is
// the caller's responsibility.
func (m *Module) Withdraw(cred ledger.StakeCredential, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok || !st.Registered {
		return ErrNotRegistered
	}
	if st.RewardBalance < amount {
		return ErrInsufficientRewardBalance
	}
	st.RewardBalance -= amount
	return nil
}

// ApplyMIR credits or debits a stake credential's reward balance from
// the reserves or treasury pot, per a Move Instantaneous Rewards
// certificate. The pot is always adjusted by the amount actually
// applied to the reward balance, not the raw requested amount: a debit
// that exceeds the balance is clamped to zero rather than driving the
// balance negative, and the pot must only ever give up what the
// balance actually lost, or lovelace is created out of nothing.
func (m *Module) ApplyMIR(cred ledger.StakeCredential, amount int64, fromReserves bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok || !st.Registered {
		return ErrNotRegistered
	}

	var applied int64
	if amount >= 0 {
		st.RewardBalance += uint64(amount)
		applied = amount
	} else {
		debit := uint64(-amount)
		if debit > st.RewardBalance {
			debit = st.RewardBalance
		}
		st.RewardBalance -= debit
		applied = -int64(debit)
	}

	if fromReserves {
		m.pots.Reserves -= uint64(applied)
	} else {
		m.pots.Treasury -= uint64(applied)
	}
	return nil
}

// CreditPoolDeposit records a new stake pool registration's deposit
// in the deposits pot, mirroring Register's key-deposit accounting.
func (m *Module) CreditPoolDeposit(amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pots.Deposits += amount
}

// RefundPoolDeposit credits amount to the reward account's balance and
// debits it from the deposits pot, for a retired pool's deposit
// refund. It returns ErrNotRegistered if the reward account has no
// stake registration to receive the refund.
func (m *Module) RefundPoolDeposit(cred ledger.StakeCredential, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[credKey(cred)]
	if !ok || !st.Registered {
		return ErrNotRegistered
	}
	st.RewardBalance += amount
	m.pots.Deposits -= amount
	return nil
}

// TotalSupply is the fixed Cardano max supply in lovelace (45 billion
// ADA), used by CheckSupplyInvariant.
const TotalSupply = 45_000_000_000 * 1_000_000

// ErrSupplyInvariantViolated is returned by CheckSupplyInvariant when
// reserves + treasury + reward balances + deposits + the caller-supplied
// UTxO total does not equal TotalSupply.
var ErrSupplyInvariantViolated = errors.New("accounts: ledger supply invariant violated")

// CheckSupplyInvariant verifies that reserves + treasury + every
// reward balance + deposits + utxoADA equals TotalSupply, per the
// ledger-wide conservation invariant that must hold across any
// sequence of applies and rollbacks.
func (m *Module) CheckSupplyInvariant(utxoADA uint64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := m.pots.Reserves + m.pots.Treasury + m.pots.Deposits + utxoADA
	for _, st := range m.accounts {
		sum += st.RewardBalance
	}
	if sum != TotalSupply {
		return fmt.Errorf("%w: got %d want %d", ErrSupplyInvariantViolated, sum, TotalSupply)
	}
	return nil
}

// AdaPots returns a copy of the current pots.
func (m *Module) AdaPots() AdaPots {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pots
}

// RotateSnapshots advances the mark/set/go window at an epoch
// boundary: the prior Set becomes Go, the prior Mark becomes Set, and
// newMark (taken from the current live delegation state) becomes the
// new Mark.
func (m *Module) RotateSnapshots(epoch uint64, newMark StakeSnapshot) SnapshotRotation {
	m.mu.Lock()
	m.snap = SnapshotRotation{
		Mark: newMark,
		Set:  m.snap.Mark,
		Go:   m.snap.Set,
	}
	rotation := m.snap
	m.mu.Unlock()
	m.history.Commit(epoch, rotation)
	return rotation
}

// TakeSnapshot builds a StakeSnapshot from the live delegation state,
// to be handed to RotateSnapshots as the new Mark.
func (m *Module) TakeSnapshot(epoch uint64) StakeSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := StakeSnapshot{
		Epoch:          epoch,
		Stake:          make(map[string]uint64),
		Delegation:     make(map[string]ledger.PoolID),
		DRepDelegation: make(map[string]ledger.DRepCredential),
	}
	for key, st := range m.accounts {
		if !st.Registered {
			continue
		}
		snap.Stake[key] = st.RewardBalance
		if st.Delegation != nil {
			snap.Delegation[key] = *st.Delegation
		}
		if st.DRepDelegation != nil {
			snap.DRepDelegation[key] = *st.DRepDelegation
		}
	}
	return snap
}

// Per-topic message shapes for the epoch-boundary fan-out.
type CertificateDeltasMessage struct {
	Epoch  uint64
	Deltas []CertificateDelta
}

type RegistrationUpdatesMessage struct {
	Epoch   uint64
	Updates []AccountState
}

type StakeDiffsMessage struct {
	Epoch uint64
	Mark  StakeSnapshot
}

type SPODistributionMessage struct {
	Epoch  uint64
	ByPool map[ledger.PoolID]uint64
}

type DRepDistributionMessage struct {
	Epoch  uint64
	ByDRep map[string]uint64
}

// EpochRollbackMessage is the payload forwarded on each publisher
// topic when a rollback crosses an epoch a subscriber has observed.
type EpochRollbackMessage struct {
	Epoch uint64
}

// The six publisher methods below preserve the per-concern fan-out of
// the reward-tracking pipeline: each publishes one derived view of an
// epoch boundary on its own topic, indexed by epoch through the
// rollback-aware publisher so a later PublishRollback is forwarded
// only to topics that saw an affected epoch.

func (m *Module) publishCertificateDeltas(ctx context.Context, epoch uint64, deltas []CertificateDelta) error {
	return m.publish(ctx, TopicCertificateDeltas, epoch, CertificateDeltasMessage{Epoch: epoch, Deltas: deltas})
}

func (m *Module) publishRegistrationUpdates(ctx context.Context, epoch uint64, updates []AccountState) error {
	return m.publish(ctx, TopicRegistrationUpdates, epoch, RegistrationUpdatesMessage{Epoch: epoch, Updates: updates})
}

func (m *Module) publishStakeDiffs(ctx context.Context, epoch uint64, mark StakeSnapshot) error {
	return m.publish(ctx, TopicStakeDiffs, epoch, StakeDiffsMessage{Epoch: epoch, Mark: mark})
}

func (m *Module) publishSPODistribution(ctx context.Context, epoch uint64, dist map[ledger.PoolID]uint64) error {
	return m.publish(ctx, TopicSPODistribution, epoch, SPODistributionMessage{Epoch: epoch, ByPool: dist})
}

func (m *Module) publishDRepDistribution(ctx context.Context, epoch uint64, dist map[string]uint64) error {
	return m.publish(ctx, TopicDRepDistribution, epoch, DRepDistributionMessage{Epoch: epoch, ByDRep: dist})
}

func (m *Module) publishSPORewards(ctx context.Context, epoch uint64, rewards SPORewards) error {
	return m.publish(ctx, TopicSPORewards, epoch, rewards)
}

func (m *Module) publish(ctx context.Context, topic string, epoch uint64, payload any) error {
	if m.pub == nil {
		return nil
	}
	return m.pub.PublishApply(ctx, topic, epoch, payload)
}

// PublishEpochTransition is called by the coordinator after the
// boundary's snapshot rotation and reward application, and fans out
// through all six publisher methods so every downstream consumer sees
// a consistent view of the new epoch. The certificate deltas and
// registration updates accumulated since the previous boundary are
// drained here.
func (m *Module) PublishEpochTransition(ctx context.Context, epoch uint64, spoDist map[ledger.PoolID]uint64, drepDist map[string]uint64, rewards SPORewards) error {
	m.mu.Lock()
	deltas := m.pendingDeltas
	updates := m.pendingUpdates
	m.pendingDeltas = nil
	m.pendingUpdates = nil
	mark := m.snap.Mark
	m.mu.Unlock()

	if err := m.publishCertificateDeltas(ctx, epoch, deltas); err != nil {
		return err
	}
	if err := m.publishRegistrationUpdates(ctx, epoch, updates); err != nil {
		return err
	}
	if err := m.publishStakeDiffs(ctx, epoch, mark); err != nil {
		return err
	}
	if err := m.publishSPODistribution(ctx, epoch, spoDist); err != nil {
		return err
	}
	if err := m.publishDRepDistribution(ctx, epoch, drepDist); err != nil {
		return err
	}
	return m.publishSPORewards(ctx, epoch, rewards)
}

// PublishRollback forwards a rollback notice on every fan-out topic.
// The rollback-aware publisher suppresses it per topic when that
// topic never carried an epoch the rollback would undo.
func (m *Module) PublishRollback(ctx context.Context, epoch uint64) error {
	if m.pub == nil {
		return nil
	}
	topics := []string{
		TopicCertificateDeltas,
		TopicRegistrationUpdates,
		TopicStakeDiffs,
		TopicSPODistribution,
		TopicDRepDistribution,
		TopicSPORewards,
	}
	for _, topic := range topics {
		if _, err := m.pub.PublishRollback(ctx, topic, epoch, EpochRollbackMessage{Epoch: epoch}); err != nil {
			return err
		}
	}
	return nil
}
