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

package parameters

import (
	"context"
	"errors"

	busm "github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/query"
	"github.com/blinklabs-io/cardano-ledger-core/statehistory"
)

// GetLatestEpochParametersRequest asks for the currently-active
// parameters.
type GetLatestEpochParametersRequest struct{}

// GetEpochParametersRequest asks for the parameters active as of a
// specific epoch.
type GetEpochParametersRequest struct {
	Epoch uint64
}

// RegisterRouter wires this module's query responder onto the bus
// under query.TopicCurrentParams.
func (m *Module) RegisterRouter() {
	if m.bus == nil {
		return
	}
	m.bus.HandleRequests(query.TopicCurrentParams, m.handleQuery)
}

func (m *Module) handleQuery(ctx context.Context, msg busm.Message) (any, error) {
	switch req := msg.Payload.(type) {
	case GetLatestEpochParametersRequest:
		return m.Current(), nil
	case GetEpochParametersRequest:
		params, err := m.GetEpochParameters(req.Epoch)
		if err != nil {
			if errors.Is(err, statehistory.ErrEmpty) {
				return nil, query.NotFound("no parameters recorded for that epoch")
			}
			return nil, query.Internal("epoch parameter lookup failed", err)
		}
		return params, nil
	default:
		return nil, query.InvalidRequest("expected parameters.GetLatestEpochParametersRequest or GetEpochParametersRequest payload")
	}
}
