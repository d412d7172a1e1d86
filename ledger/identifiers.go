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

import (
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// TxHash is a transaction hash.
type TxHash = lcommon.Blake2b256

// UTxOIdentifier uniquely identifies a UTxO: a transaction hash plus
// output index.
type UTxOIdentifier struct {
	TxHash TxHash
	Index  uint16
}

func (id UTxOIdentifier) String() string {
	return fmt.Sprintf("%s#%d", id.TxHash.String(), id.Index)
}

// MultiAssetValue maps policy ID to asset name to quantity.
type MultiAssetValue map[lcommon.Blake2b224]map[string]uint64

// DatumKind distinguishes how a UTxO's datum is carried.
type DatumKind uint8

const (
	DatumNone DatumKind = iota
	DatumHash
	DatumInline
)

// Address is a tagged union over the Byron/Shelley/stake-only address
// kinds; it wraps the real gouroboros address so that `.Bytes()` /
// `.String()` round-trip through the same bech32/base58 logic the
// decoder used to produce it.
type Address struct {
	Addr lcommon.Address
}

func (a Address) String() string {
	return a.Addr.String()
}

// UTxOValue is everything a UTxO output carries: address, ADA +
// multi-asset value, and optional datum/script reference.
type UTxOValue struct {
	Address       Address
	Lovelace      uint64
	Assets        MultiAssetValue
	DatumKind     DatumKind
	DatumHash     *lcommon.Blake2b256
	ReferenceScript []byte
}

// StakeCredential is a tagged union over key-hash and script-hash
// stake credentials. It is a thin alias over gouroboros' own
// Credential type, which already carries CredType + the 28-byte
// hash, so the hash types line up with pool owner keys, DRep
// credentials and committee members below.
type StakeCredential = lcommon.Credential

// PoolID identifies a stake pool by its operator key hash.
type PoolID = lcommon.PoolKeyHash

// PoolRelay describes a single relay advertised by a pool.
type PoolRelay struct {
	Host *string
	IPv4 *[4]byte
	IPv6 *[16]byte
	Port *uint32
}

// PoolMetadata is the optional off-chain metadata pointer on a pool.
type PoolMetadata struct {
	URL  string
	Hash lcommon.Blake2b256
}

// PoolRegistration is the era-agnostic projection of a pool
// registration certificate.
type PoolRegistration struct {
	Operator      PoolID
	VrfKeyHash    lcommon.VrfKeyHash
	Pledge        uint64
	Cost          uint64
	Margin        RationalNumber
	RewardAccount lcommon.AddrKeyHash
	Owners        []lcommon.AddrKeyHash
	Relays        []PoolRelay
	Metadata      *PoolMetadata
	// Deposit is the pool registration deposit (protocol parameter
	// poolDeposit at the time of registration), refunded to
	// RewardAccount once the pool retires.
	Deposit uint64
}

// DRepCredentialKind distinguishes a credential-backed DRep from the
// two sentinel voting targets Abstain/NoConfidence that a stake
// credential may delegate to instead of a real DRep.
type DRepCredentialKind uint8

const (
	DRepKeyHash DRepCredentialKind = iota
	DRepScriptHash
	DRepAbstain
	DRepNoConfidence
)

// DRepCredential identifies a DRep delegation target.
type DRepCredential struct {
	Kind DRepCredentialKind
	Hash lcommon.Blake2b224
}

// Abstain and NoConfidence are the two sentinel DRep delegation
// targets; neither carries a hash.
func Abstain() DRepCredential      { return DRepCredential{Kind: DRepAbstain} }
func NoConfidence() DRepCredential { return DRepCredential{Kind: DRepNoConfidence} }

func (d DRepCredential) String() string {
	switch d.Kind {
	case DRepAbstain:
		return "abstain"
	case DRepNoConfidence:
		return "no-confidence"
	default:
		return d.Hash.String()
	}
}
