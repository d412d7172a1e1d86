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

// Package metrics declares Prometheus collectors for applied/rolled
// back block counts, current volatile-window depth, and query router
// latency, and serves them over HTTP. No ledger module or router
// updates these collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this node exports.
type Registry struct {
	BlocksApplied   prometheus.Counter
	BlocksRolledBack prometheus.Counter
	VolatileWindowDepth prometheus.Gauge
	QueryDuration   *prometheus.HistogramVec
	server          *http.Server
}

// NewRegistry constructs and registers every metric against a fresh
// prometheus.Registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		BlocksApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardano_ledger_core_blocks_applied_total",
			Help: "Total number of blocks applied across all modules.",
		}),
		BlocksRolledBack: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardano_ledger_core_blocks_rolled_back_total",
			Help: "Total number of blocks undone by a rollback.",
		}),
		VolatileWindowDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cardano_ledger_core_volatile_window_depth",
			Help: "Number of blocks currently retained in the volatile window.",
		}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "cardano_ledger_core_query_duration_seconds",
			Help: "Query router request latency by topic.",
		}, []string{"topic"}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.server = &http.Server{Handler: mux}
	return r
}

// Serve starts the metrics HTTP server on addr, blocking until ctx is
// canceled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	r.server.Addr = addr
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		return r.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
