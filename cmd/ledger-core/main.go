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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/cardano-ledger-core/blocksource"
	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/coordinator"
	"github.com/blinklabs-io/cardano-ledger-core/internal/config"
	"github.com/blinklabs-io/cardano-ledger-core/internal/logging"
	"github.com/blinklabs-io/cardano-ledger-core/internal/metrics"
	"github.com/blinklabs-io/cardano-ledger-core/internal/version"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/modules/accounts"
	"github.com/blinklabs-io/cardano-ledger-core/modules/distribution"
	"github.com/blinklabs-io/cardano-ledger-core/modules/drep"
	"github.com/blinklabs-io/cardano-ledger-core/modules/epochactivity"
	"github.com/blinklabs-io/cardano-ledger-core/modules/parameters"
	"github.com/blinklabs-io/cardano-ledger-core/modules/spo"
	"github.com/blinklabs-io/cardano-ledger-core/modules/utxo"
	"github.com/blinklabs-io/cardano-ledger-core/storage"
)

// ledgerState bundles every stateful module the node tracks, wired
// onto a single bus. Turning a published block body into the typed
// calls each module expects (ApplyBlock, Register, CastVote, ...) is
// done by coordinator.Coordinator, which both serve and simulate
// attach to the bus.
type ledgerState struct {
	utxo          *utxo.Module
	accounts      *accounts.Module
	spo           *spo.Module
	drep          *drep.Module
	parameters    *parameters.Module
	distribution  *distribution.Module
	epochActivity *epochactivity.Module
}

func newLedgerState(b *bus.Bus, store storage.Store, k uint64) *ledgerState {
	return &ledgerState{
		utxo:          utxo.New(nil, b, store, k, utxo.PublishCompact),
		accounts:      accounts.New(b),
		spo:           spo.New(b, k),
		drep:          drep.New(b, k),
		parameters:    parameters.New(b, ledger.ProtocolParams{}, 5),
		distribution:  distribution.New(b),
		epochActivity: epochactivity.New(b, k),
	}
}

// registerRouters wires every module's query responder onto the bus
// so a client can look up current ledger state over the same bus that
// carries block apply/rollback traffic.
func (s *ledgerState) registerRouters() {
	s.utxo.RegisterRouter()
	s.accounts.RegisterRouter()
	s.spo.RegisterRouter()
	s.drep.RegisterRouter()
	s.parameters.RegisterRouter()
	s.distribution.RegisterRouters()
	s.epochActivity.RegisterRouter()
}

// modules projects the ledgerState's module pointers into the shape
// coordinator.New expects.
func (s *ledgerState) modules() coordinator.Modules {
	return coordinator.Modules{
		Utxo:          s.utxo,
		Accounts:      s.accounts,
		SPO:           s.spo,
		DRep:          s.drep,
		Parameters:    s.parameters,
		Distribution:  s.distribution,
		EpochActivity: s.epochActivity,
	}
}

const programName = "ledger-core"

var cmdlineFlags = struct {
	configFile string
}{}

func main() {
	cmd := &cobra.Command{
		Use:   programName,
		Short: "An in-memory, rollback-safe Cardano ledger state pipeline",
	}
	cmd.PersistentFlags().StringVarP(&cmdlineFlags.configFile, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newSimulateCmd())
	cmd.AddCommand(newServeCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadAndConfigure() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmdlineFlags.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.Configure(cfg.Logging)
	logger.Info(fmt.Sprintf("starting %s %s", programName, version.GetVersionString()))
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger modules, query routers and metrics server with no block source attached",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadAndConfigure()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			b := bus.New(logger)
			defer b.Close()

			state := newLedgerState(b, store, cfg.Network.SecurityParameter)
			state.registerRouters()

			coord := coordinator.New(b, logger, state.modules())
			sub := coord.Subscribe()
			defer sub.Close()

			var reg *metrics.Registry
			if cfg.Metrics.Enabled {
				reg = metrics.NewRegistry()
				go func() {
					if err := reg.Serve(ctx, cfg.Metrics.Address); err != nil {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
			}

			logger.Info("ledger-core running, waiting for a real block source to be wired in")
			<-ctx.Done()
			return nil
		},
	}
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <scenario file>",
		Short: "Replay a YAML block/rollback scenario against the ledger modules",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("you must specify exactly one scenario file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadAndConfigure()
			if err != nil {
				return err
			}

			scenario, err := blocksource.NewFromFile(args[0])
			if err != nil {
				return fmt.Errorf("loading scenario: %w", err)
			}

			store, err := openStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			b := bus.New(logger)
			defer b.Close()

			state := newLedgerState(b, store, cfg.Network.SecurityParameter)
			state.registerRouters()
			coord := coordinator.New(b, logger, state.modules())
			sub := coord.Subscribe()
			defer sub.Close()

			publisher := bus.NewRollbackAwarePublisher(b)
			driver := blocksource.NewDriver(publisher)

			logger.Info("replaying scenario", "name", scenario.Name, "events", len(scenario.Events))
			return driver.Run(cmd.Context(), scenario)
		},
	}
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "badger":
		return storage.OpenBadgerStore(cfg.Dir)
	default:
		return storage.NewMemoryStore(), nil
	}
}
