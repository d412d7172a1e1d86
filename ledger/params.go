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

package ledger

// ProtocolVersion is the {major, minor} pair that gates which era's
// rules are active and drives the hard-fork soft-voting mechanism.
type ProtocolVersion struct {
	Major uint64
	Minor uint64
}

// ExUnitPrices is the Alonzo+ Plutus execution-unit price pair.
type ExUnitPrices struct {
	MemPrice  RationalNumber
	StepPrice RationalNumber
}

// ExUnits bounds the memory/cpu-step budget for a transaction or
// block's Plutus execution.
type ExUnits struct {
	Memory uint64
	Steps  uint64
}

// CostModel is a single Plutus language version's cost model,
// recorded as the raw ordered parameter list the decoder produced;
// this module never evaluates the model, only carries it forward.
type CostModel []int64

// PoolVotingThresholds and DRepVotingThresholds are the Conway
// governance-action ratification thresholds, one rational per action
// kind.
type PoolVotingThresholds struct {
	MotionNoConfidence    RationalNumber
	CommitteeNormal       RationalNumber
	CommitteeNoConfidence RationalNumber
	HardForkInitiation    RationalNumber
	SecurityGroup         RationalNumber
}

type DRepVotingThresholds struct {
	MotionNoConfidence    RationalNumber
	CommitteeNormal       RationalNumber
	CommitteeNoConfidence RationalNumber
	UpdateConstitution    RationalNumber
	HardForkInitiation    RationalNumber
	PPNetworkGroup        RationalNumber
	PPEconomicGroup       RationalNumber
	PPTechnicalGroup      RationalNumber
	PPGovGroup            RationalNumber
	TreasuryWithdrawal    RationalNumber
}

// ProtocolParams is the single, era-agnostic projection of every
// protocol parameter field the ledger tracks across Byron through
// Conway. A (de)serializer living outside this module is responsible
// for producing one of these from whatever per-era CBOR/JSON shape
// genesis or an on-chain parameter-update certificate actually used;
// this module only ever sees the flattened result, current/previous/
// future values of which are tracked by modules/parameters.
type ProtocolParams struct {
	ProtocolVersion ProtocolVersion

	// Fee linear function: fee = MinFeeA*size + MinFeeB.
	MinFeeA uint64
	MinFeeB uint64

	MaxTxSize        uint64
	MaxBlockBodySize uint64
	MaxHeaderSize    uint64

	KeyDeposit  uint64
	PoolDeposit uint64

	// PoolRetireMaxEpoch (e_max) bounds how far in the future a pool
	// retirement certificate may schedule retirement.
	PoolRetireMaxEpoch uint64

	// NOpt (k) is the desired number of stake pools; A0 is pledge
	// influence on rewards.
	NOpt uint64
	A0   RationalNumber

	// MonetaryExpansion (rho) and TreasuryCut (tau).
	MonetaryExpansion RationalNumber
	TreasuryCut       RationalNumber

	Decentralization RationalNumber
	ExtraEntropy     Nonce

	MinUTxOValue  uint64
	MinPoolCost   uint64
	CoinsPerUTxOByte uint64

	// Alonzo+.
	CostModels          map[uint8]CostModel
	ExecutionUnitPrices ExUnitPrices
	MaxTxExUnits        ExUnits
	MaxBlockExUnits     ExUnits
	MaxValueSize        uint64
	CollateralPercent   uint64
	MaxCollateralInputs uint64

	// Babbage.
	MaxCollateralInputsBabbage uint64

	// Conway governance parameters.
	PoolVotingThresholds  PoolVotingThresholds
	DRepVotingThresholds  DRepVotingThresholds
	CommitteeMinSize      uint64
	CommitteeMaxTermLength uint64
	GovActionLifetime     uint64
	GovActionDeposit      uint64
	DRepDeposit           uint64
	DRepActivity          uint64
	MinFeeRefScriptCostPerByte RationalNumber
}
