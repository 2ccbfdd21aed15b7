// Package config loads the node's runtime configuration: RPC endpoints,
// the JWT secret path, and server ports. The chain-specific derivation
// parameters (genesis, hardfork times, L1 addresses) live in
// rollup.Config instead, loaded separately from a chain.json file, the
// same config/chain-config split the teacher's cp-node draws between its
// own flags and the rollup.Config it reads off disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/lumen-stack/lumen-node/rollup"
)

// Config is the node's runtime configuration, loaded from CLI flags with
// an optional TOML file for anything not worth typing on a command line
// every time.
type Config struct {
	L1RPCURL    string `toml:"l1_rpc_url"`
	L1BeaconURL string `toml:"l1_beacon_url"`
	L2RPCURL    string `toml:"l2_rpc_url"`
	L2EngineURL string `toml:"l2_engine_url"`

	JWTSecretPath    string `toml:"jwt_secret_path"`
	RollupConfigPath string `toml:"rollup_config_path"`

	MetricsEnabled bool   `toml:"metrics_enabled"`
	MetricsHost    string `toml:"metrics_host"`
	MetricsPort    int    `toml:"metrics_port"`

	LogLevel string `toml:"log_level"`
}

// LoadTOML reads node settings from a TOML file, used as the base before
// CLI flags are layered on top.
func LoadTOML(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyFlags overlays any CLI flags the user actually set on top of cfg,
// so a TOML file can supply defaults that flags still override.
func (c Config) ApplyFlags(ctx *cli.Context) Config {
	if ctx.IsSet(L1RPCURLFlag.Name) {
		c.L1RPCURL = ctx.String(L1RPCURLFlag.Name)
	}
	if ctx.IsSet(L1BeaconURLFlag.Name) {
		c.L1BeaconURL = ctx.String(L1BeaconURLFlag.Name)
	}
	if ctx.IsSet(L2RPCURLFlag.Name) {
		c.L2RPCURL = ctx.String(L2RPCURLFlag.Name)
	}
	if ctx.IsSet(L2EngineURLFlag.Name) {
		c.L2EngineURL = ctx.String(L2EngineURLFlag.Name)
	}
	if ctx.IsSet(JWTSecretFlag.Name) {
		c.JWTSecretPath = ctx.String(JWTSecretFlag.Name)
	}
	if ctx.IsSet(RollupConfigFlag.Name) {
		c.RollupConfigPath = ctx.String(RollupConfigFlag.Name)
	}
	if ctx.IsSet(MetricsEnabledFlag.Name) {
		c.MetricsEnabled = ctx.Bool(MetricsEnabledFlag.Name)
	}
	if ctx.IsSet(MetricsHostFlag.Name) {
		c.MetricsHost = ctx.String(MetricsHostFlag.Name)
	}
	if ctx.IsSet(MetricsPortFlag.Name) {
		c.MetricsPort = ctx.Int(MetricsPortFlag.Name)
	}
	if ctx.IsSet(LogLevelFlag.Name) {
		c.LogLevel = ctx.String(LogLevelFlag.Name)
	}
	return c
}

// Check validates the settings a running node cannot do without.
func (c Config) Check() error {
	if c.L1RPCURL == "" {
		return fmt.Errorf("l1 rpc url is required")
	}
	if c.L2RPCURL == "" {
		return fmt.Errorf("l2 rpc url is required")
	}
	if c.L2EngineURL == "" {
		return fmt.Errorf("l2 engine url is required")
	}
	if c.JWTSecretPath == "" {
		return fmt.Errorf("jwt secret path is required")
	}
	if c.RollupConfigPath == "" {
		return fmt.Errorf("rollup config path is required")
	}
	return nil
}

// LoadRollupConfig reads the chain's derivation parameters from a
// chain.json file, the plain-JSON format op-stack chains publish theirs
// in (genesis anchors, hardfork times, contract addresses).
func LoadRollupConfig(path string) (*rollup.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rollup config %s: %w", path, err)
	}
	var cfg rollup.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing rollup config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rollup config %s: %w", path, err)
	}
	return &cfg, nil
}
