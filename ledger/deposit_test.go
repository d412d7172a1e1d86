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

package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/ledger"
)

func TestCalculateDepositNilParamsNoCerts(t *testing.T) {
	amount, err := ledger.CalculateDeposit(0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), amount)
}

func TestCalculateDepositNilParamsWithCerts(t *testing.T) {
	_, err := ledger.CalculateDeposit(0, 1, nil)
	require.ErrorIs(t, err, ledger.ErrDepositParamsMissing)
}

func TestCalculateDeposit(t *testing.T) {
	params := &ledger.ProtocolParams{
		KeyDeposit:  2_000_000,
		PoolDeposit: 500_000_000,
	}
	amount, err := ledger.CalculateDeposit(2, 3, params)
	require.NoError(t, err)
	require.Equal(t, uint64(3*2_000_000+2*500_000_000), amount)
}
