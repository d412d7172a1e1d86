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
	"math/bits"
)

// RationalNumber is a numerator/denominator pair used for pool
// margins, monetary expansion, treasury ratio, pledge influence and
// governance vote thresholds. Ordering is by cross-multiplication,
// computed with full 128-bit products so it stays correct even when
// numerator*denominator overflows a uint64.
type RationalNumber struct {
	Numerator   uint64
	Denominator uint64
}

// ZeroRational and OneRational are the two constants used as
// defaults throughout the ledger (e.g. a neutral pool margin).
var (
	ZeroRational = RationalNumber{Numerator: 0, Denominator: 1}
	OneRational  = RationalNumber{Numerator: 1, Denominator: 1}
)

// NewRational constructs a RationalNumber, rejecting a zero
// denominator.
func NewRational(num, denom uint64) (RationalNumber, error) {
	if denom == 0 {
		return RationalNumber{}, fmt.Errorf("%d/%d: denominator cannot be zero", num, denom)
	}
	return RationalNumber{Numerator: num, Denominator: denom}, nil
}

// Cmp returns -1, 0 or 1 as r compares to other, equivalent to
// comparing r.Numerator/r.Denominator to other.Numerator/other.Denominator
// without ever computing either division.
func (r RationalNumber) Cmp(other RationalNumber) int {
	lhiHi, lhiLo := bits.Mul64(r.Numerator, other.Denominator)
	rhiHi, rhiLo := bits.Mul64(other.Numerator, r.Denominator)
	if lhiHi != rhiHi {
		if lhiHi < rhiHi {
			return -1
		}
		return 1
	}
	if lhiLo != rhiLo {
		if lhiLo < rhiLo {
			return -1
		}
		return 1
	}
	return 0
}

func (r RationalNumber) Less(other RationalNumber) bool {
	return r.Cmp(other) < 0
}

func (r RationalNumber) LessOrEqual(other RationalNumber) bool {
	return r.Cmp(other) <= 0
}

// RoundUp returns the ceiling of the rational as an integer.
func (r RationalNumber) RoundUp() uint64 {
	quot := r.Numerator / r.Denominator
	if r.Numerator%r.Denominator != 0 {
		return quot + 1
	}
	return quot
}

func (r RationalNumber) String() string {
	return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator)
}
