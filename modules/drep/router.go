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

package drep

import (
	"context"

	busm "github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/query"
)

// GetDRepInfoRequest asks for a single DRep's registration.
type GetDRepInfoRequest struct {
	Credential ledger.DRepCredential
}

// GetDRepsListRequest asks for every registered DRep.
type GetDRepsListRequest struct{}

// GetProposalInfoRequest asks for a single governance action's state.
type GetProposalInfoRequest struct {
	ID ActionID
}

// RegisterRouter wires this module's query responder onto the bus
// under query.TopicDRepState.
func (m *Module) RegisterRouter() {
	if m.bus == nil {
		return
	}
	m.bus.HandleRequests(query.TopicDRepState, m.handleQuery)
}

func (m *Module) handleQuery(ctx context.Context, msg busm.Message) (any, error) {
	switch req := msg.Payload.(type) {
	case GetDRepInfoRequest:
		m.mu.RLock()
		reg, ok := m.dreps[drepKey(req.Credential)]
		m.mu.RUnlock()
		if !ok {
			return nil, query.NotFound(req.Credential.String())
		}
		return *reg, nil
	case GetDRepsListRequest:
		m.mu.RLock()
		out := make([]Registration, 0, len(m.dreps))
		for _, reg := range m.dreps {
			out = append(out, *reg)
		}
		m.mu.RUnlock()
		return out, nil
	case GetProposalInfoRequest:
		action, ok := m.Get(req.ID)
		if !ok {
			return nil, query.NotFound("governance action not found")
		}
		return action, nil
	default:
		return nil, query.InvalidRequest("expected drep.GetDRepInfoRequest, GetDRepsListRequest or GetProposalInfoRequest payload")
	}
}
