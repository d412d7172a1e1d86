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

import "errors"

// ErrDepositParamsMissing is returned by CalculateDeposit when no
// Shelley-era deposit parameters are available but the block being
// processed contains certificates that require them.
var ErrDepositParamsMissing = errors.New(
	"ledger: stake/pool deposit requested but no Shelley deposit parameters are active",
)

// CalculateDeposit returns the total deposit owed for a block's
// pool-update and stake-registration certificate counts, given the
// current protocol parameters. Pre-Shelley blocks carry neither kind
// of certificate, so a nil params with zero counts is valid and
// returns zero; a nil params with a nonzero count is an invariant
// violation.
func CalculateDeposit(poolUpdateCount, stakeCertCount uint64, params *ProtocolParams) (uint64, error) {
	if params == nil {
		if poolUpdateCount == 0 && stakeCertCount == 0 {
			return 0, nil
		}
		return 0, ErrDepositParamsMissing
	}
	return stakeCertCount*params.KeyDeposit + poolUpdateCount*params.PoolDeposit, nil
}
