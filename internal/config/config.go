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

// Package config loads node configuration from an optional YAML file
// overlaid with CARDANO_LEDGER_CORE_* environment variables, the same
// two-layer approach (file defaults, env override) used throughout
// the blinklabs-io node tooling.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CARDANO_LEDGER_CORE"

// Config is the top-level node configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Storage    StorageConfig    `yaml:"storage"`
	Network    NetworkConfig    `yaml:"network"`
}

// LoggingConfig controls log/slog output.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOGGING_LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"LOGGING_FORMAT" default:"json"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED" default:"true"`
	Address string `yaml:"address" envconfig:"METRICS_ADDRESS" default:":12798"`
}

// StorageConfig controls the immutable-tier backing store.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER" default:"memory"` // "memory" or "badger"
	Dir    string `yaml:"dir" envconfig:"STORAGE_DIR" default:"./data"`
}

// NetworkConfig selects the Cardano network the node tracks.
type NetworkConfig struct {
	Name                string `yaml:"name" envconfig:"NETWORK_NAME" default:"mainnet"`
	SecurityParameter   uint64 `yaml:"securityParameter" envconfig:"NETWORK_SECURITY_PARAMETER" default:"2160"`
}

// Default returns a Config populated from field defaults, with any
// CARDANO_LEDGER_CORE_* environment variables applied on top.
func Default() Config {
	var cfg Config
	_ = envconfig.Process(envPrefix, &cfg)
	return cfg
}

// Load reads path (if non-empty) as YAML into a Config seeded with
// defaults, then overlays any CARDANO_LEDGER_CORE_* environment
// variables on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: applying environment overrides: %w", err)
	}
	return cfg, nil
}
