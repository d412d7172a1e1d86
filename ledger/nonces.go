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

import lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

// Nonce is a 32-byte epoch-entropy value. A zero Nonce is the
// "neutral" nonce used before any VRF output has been folded in.
type Nonce = lcommon.Blake2b256

// Nonces tracks the evolving/candidate/active epoch-nonce rotation.
// The evolving nonce is updated by folding in the VRF output of every
// block; candidate is frozen once the stability window (4k/f slots)
// is reached within the epoch; active becomes candidate at the next
// epoch boundary and is the nonce leader election uses for that
// epoch. Lab/PrevLab record the hash of the last applied block, used
// to reconstruct the nonce calculation across a rollback.
type Nonces struct {
	Epoch     uint64
	Active    Nonce
	Evolving  Nonce
	Candidate Nonce
	Lab       BlockHash
	PrevLab   BlockHash
}

// FoldBlockNonce folds a block's VRF output into the evolving nonce
// and records it as the new "last applied block" hash. Candidate
// freezing is driven by the caller (the epoch activity module), which
// knows the stability window boundary.
func (n *Nonces) FoldBlockNonce(vrfOutputHash Nonce, blockHash BlockHash) {
	n.PrevLab = n.Lab
	n.Lab = blockHash
	n.Evolving = blake2bXor(n.Evolving, vrfOutputHash)
}

// FreezeCandidate copies the current evolving nonce into candidate,
// called once per epoch when the stability window is crossed.
func (n *Nonces) FreezeCandidate() {
	n.Candidate = n.Evolving
}

// RotateEpoch promotes candidate to active for the new epoch and
// resets evolving to start folding again from the new active value.
func (n *Nonces) RotateEpoch(newEpoch uint64) {
	n.Active = n.Candidate
	n.Evolving = n.Candidate
	n.Epoch = newEpoch
}

// blake2bXor combines two nonces the way the VRF-based nonce update
// rule does: a hash of the XOR of the running nonce and the new VRF
// output. The real hash is computed by the (out of scope) crypto
// black box; this folds the bytes directly since no Blake2b
// implementation is wired into this module.
func blake2bXor(a, b Nonce) Nonce {
	var out Nonce
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}
