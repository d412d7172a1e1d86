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

// Package blocksource drives the ledger modules from a YAML-scripted
// sequence of block applies, rollbacks and pauses, the same way a
// real chain-sync client would but without needing a running node. It
// exists because CBOR decoding and the NtN/NtC wire protocol are out
// of scope for this module: a scenario file lets every module's tests
// (and the cmd/ledger-core simulate subcommand) exercise full
// apply/rollback sequences against already-decoded block data.
package blocksource

import (
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered script of events to feed to the bus.
type Scenario struct {
	Name   string  `yaml:"name"`
	Events []Event `yaml:"events"`
}

// NewFromFile loads and decodes a Scenario from path.
func NewFromFile(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, err
	}
	defer f.Close()
	return NewFromReader(f)
}

// NewFromReader loads and decodes a Scenario from r, rejecting
// unknown fields so a typo in a scenario file fails loudly rather
// than silently no-opping.
func NewFromReader(r io.Reader) (Scenario, error) {
	var ret Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ret); err != nil {
		return Scenario{}, err
	}
	return ret, nil
}

// Event is exactly one of Apply, Rollback or Sleep.
type Event struct {
	Apply    *ApplyEvent    `yaml:"apply"`
	Rollback *RollbackEvent `yaml:"rollback"`
	Sleep    *SleepEvent    `yaml:"sleep"`
}

// ApplyEvent describes one block to apply: its header info plus the
// already-decoded body the test wants each module to see.
type ApplyEvent struct {
	Era         string `yaml:"era"`
	Slot        uint64 `yaml:"slot"`
	BlockNumber uint64 `yaml:"blockNumber"`
	Hash        string `yaml:"hash"`
	Body        *Body  `yaml:"body"`
}

// RollbackEvent describes a rollback to a prior point in the chain.
type RollbackEvent struct {
	Slot        uint64 `yaml:"slot"`
	BlockNumber uint64 `yaml:"blockNumber"`
	Hash        string `yaml:"hash"`
}

// SleepEvent pauses scenario playback, useful for exercising
// clock-driven (KindClock) behavior deterministically in tests.
type SleepEvent struct {
	Duration time.Duration `yaml:"duration"`
}

// Body is the YAML shape of one block's UTxO and certificate effects.
// Every hash/credential/address field is hex or bech32 text; the
// driver decodes this into a typed BlockBody before publishing it.
type Body struct {
	Producer  string `yaml:"producer"`
	VRFOutput string `yaml:"vrfOutput"`

	Spent    []UTxORef    `yaml:"spent"`
	Created  []UTxOOutput `yaml:"created"`
	TotalIn  uint64       `yaml:"totalIn"`
	TotalOut uint64       `yaml:"totalOut"`
	Fees     uint64       `yaml:"fees"`

	StakeRegistrations   []RawStakeRegistration `yaml:"stakeRegistrations"`
	StakeDeregistrations []string               `yaml:"stakeDeregistrations"`
	Delegations          []RawDelegation        `yaml:"delegations"`
	VoteDelegations      []RawVoteDelegation    `yaml:"voteDelegations"`
	Withdrawals          []RawWithdrawal        `yaml:"withdrawals"`
	MIRTransfers         []RawMIRTransfer       `yaml:"mirTransfers"`

	PoolRegistrations []PoolRegistration  `yaml:"poolRegistrations"`
	PoolRetirements   []RawPoolRetirement `yaml:"poolRetirements"`

	DRepRegistrations   []RawDRepRegistration           `yaml:"drepRegistrations"`
	DRepDeregistrations []string                        `yaml:"drepDeregistrations"`
	GovernanceActions   []RawGovernanceActionSubmission `yaml:"governanceActions"`
	GovernanceVotes     []RawGovernanceVote             `yaml:"governanceVotes"`
}

// UTxORef identifies a spent input by transaction hash and index.
type UTxORef struct {
	TxHash string `yaml:"txHash"`
	Index  uint16 `yaml:"index"`
}

// UTxOOutput describes one output created by the block.
type UTxOOutput struct {
	TxHash   string `yaml:"txHash"`
	Index    uint16 `yaml:"index"`
	Address  string `yaml:"address"`
	Lovelace uint64 `yaml:"lovelace"`
}

// RawStakeRegistration is a stake credential registration certificate.
type RawStakeRegistration struct {
	Credential string `yaml:"credential"`
	Deposit    uint64 `yaml:"deposit"`
}

// RawDelegation is a stake credential's pool delegation certificate.
type RawDelegation struct {
	Credential string `yaml:"credential"`
	Pool       string `yaml:"pool"`
}

// RawVoteDelegation is a stake credential's DRep delegation certificate.
// DRep is a hex key hash, or the literal "abstain" / "no-confidence".
type RawVoteDelegation struct {
	Credential string `yaml:"credential"`
	DRep       string `yaml:"drep"`
}

// RawWithdrawal debits a stake credential's reward balance.
type RawWithdrawal struct {
	Credential string `yaml:"credential"`
	Amount     uint64 `yaml:"amount"`
}

// RawMIRTransfer is a Move Instantaneous Rewards certificate.
type RawMIRTransfer struct {
	Credential   string `yaml:"credential"`
	Amount       int64  `yaml:"amount"`
	FromReserves bool   `yaml:"fromReserves"`
}

// PoolRegistration is a stake pool registration or update certificate.
type PoolRegistration struct {
	Operator      string `yaml:"operator"`
	RewardAccount string `yaml:"rewardAccount"`
	Pledge        uint64 `yaml:"pledge"`
	Cost          uint64 `yaml:"cost"`
	Deposit       uint64 `yaml:"deposit"`
}

// RawPoolRetirement schedules a pool for retirement.
type RawPoolRetirement struct {
	Pool        string `yaml:"pool"`
	RetireEpoch uint64 `yaml:"retireEpoch"`
}

// RawDRepRegistration is a DRep registration certificate.
type RawDRepRegistration struct {
	Credential string `yaml:"credential"`
	Deposit    uint64 `yaml:"deposit"`
}

// RawGovernanceActionSubmission opens a governance action for voting.
// Kind mirrors modules/drep.ActionKind's numbering.
type RawGovernanceActionSubmission struct {
	TxHash      string `yaml:"txHash"`
	Index       uint16 `yaml:"index"`
	Kind        uint8  `yaml:"kind"`
	ExpiryEpoch uint64 `yaml:"expiryEpoch"`
}

// RawGovernanceVote casts one voter's vote on a governance action. Vote
// mirrors modules/drep.Vote's numbering.
type RawGovernanceVote struct {
	TxHash   string `yaml:"txHash"`
	Index    uint16 `yaml:"index"`
	VoterKey string `yaml:"voterKey"`
	Vote     uint8  `yaml:"vote"`
}
