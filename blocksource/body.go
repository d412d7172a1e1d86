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

import "github.com/blinklabs-io/cardano-ledger-core/ledger"

// BlockBody is the already-decoded, typed shape of one block's UTxO
// and certificate effects, handed to the coordinator that dispatches
// it onto the ledger modules. A real chain-sync client would build
// this from the block's CBOR transaction bodies; here it is decoded
// from a scenario's YAML Body by decodeBody.
type BlockBody struct {
	Producer  ledger.PoolID
	VRFOutput ledger.Nonce

	Spent    []ledger.UTxOIdentifier
	Created  map[ledger.UTxOIdentifier]ledger.UTxOValue
	TotalIn  uint64
	TotalOut uint64
	Fees     uint64

	StakeRegistrations   []StakeRegistration
	StakeDeregistrations []ledger.StakeCredential
	Delegations          []Delegation
	VoteDelegations      []VoteDelegation
	Withdrawals          []Withdrawal
	MIRTransfers         []MIRTransfer

	PoolRegistrations []ledger.PoolRegistration
	PoolRetirements   []PoolRetirement

	DRepRegistrations   []DRepRegistration
	DRepDeregistrations []ledger.DRepCredential
	GovernanceActions   []GovernanceActionSubmission
	GovernanceVotes     []GovernanceVote
}

// StakeRegistration is a stake credential registration certificate.
type StakeRegistration struct {
	Credential ledger.StakeCredential
	Deposit    uint64
}

// Delegation is a stake credential's pool delegation certificate.
type Delegation struct {
	Credential ledger.StakeCredential
	Pool       ledger.PoolID
}

// VoteDelegation is a stake credential's DRep delegation certificate.
type VoteDelegation struct {
	Credential ledger.StakeCredential
	DRep       ledger.DRepCredential
}

// Withdrawal debits a stake credential's accumulated reward balance.
type Withdrawal struct {
	Credential ledger.StakeCredential
	Amount     uint64
}

// MIRTransfer is a Move Instantaneous Rewards certificate crediting or
// debiting a stake credential's reward balance from a pot.
type MIRTransfer struct {
	Credential   ledger.StakeCredential
	Amount       int64
	FromReserves bool
}

// PoolRetirement schedules a pool for retirement at RetireEpoch.
type PoolRetirement struct {
	Pool        ledger.PoolID
	RetireEpoch uint64
}

// DRepRegistration is a DRep registration certificate.
type DRepRegistration struct {
	Credential ledger.DRepCredential
	Deposit    uint64
}

// ActionID identifies a governance action by the transaction that
// submitted it and the certificate index within it.
type ActionID struct {
	TxHash ledger.TxHash
	Index  uint16
}

// GovernanceActionSubmission opens a new governance action for
// voting. Kind mirrors modules/drep.ActionKind's numbering.
type GovernanceActionSubmission struct {
	ID          ActionID
	Kind        uint8
	ExpiryEpoch uint64
}

// GovernanceVote casts one voter's vote on a governance action. Vote
// mirrors modules/drep.Vote's numbering.
type GovernanceVote struct {
	ID       ActionID
	VoterKey string
	Vote     uint8
}
