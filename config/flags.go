package config

import "github.com/urfave/cli/v2"

var (
	L1RPCURLFlag = &cli.StringFlag{
		Name:    "l1-rpc-url",
		Usage:   "L1 execution layer JSON-RPC URL",
		EnvVars: []string{"LUMEN_L1_RPC_URL"},
	}
	L1BeaconURLFlag = &cli.StringFlag{
		Name:    "l1-beacon-url",
		Usage:   "L1 beacon node URL, used to fetch blobs since Ecotone",
		EnvVars: []string{"LUMEN_L1_BEACON_URL"},
	}
	L2RPCURLFlag = &cli.StringFlag{
		Name:    "l2-rpc-url",
		Usage:   "L2 execution layer JSON-RPC URL",
		EnvVars: []string{"LUMEN_L2_RPC_URL"},
	}
	L2EngineURLFlag = &cli.StringFlag{
		Name:    "l2-engine-url",
		Usage:   "L2 execution layer Engine API URL",
		EnvVars: []string{"LUMEN_L2_ENGINE_URL"},
	}
	JWTSecretFlag = &cli.StringFlag{
		Name:    "l2-engine-jwt-secret",
		Usage:   "path to the shared JWT secret file used to authenticate with the Engine API",
		EnvVars: []string{"LUMEN_L2_ENGINE_JWT_SECRET"},
	}
	RollupConfigFlag = &cli.StringFlag{
		Name:    "rollup-config",
		Usage:   "path to the chain's rollup config JSON file",
		EnvVars: []string{"LUMEN_ROLLUP_CONFIG"},
	}
	ConfigFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to an optional TOML file supplying defaults for the flags above",
		EnvVars: []string{"LUMEN_CONFIG"},
	}
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics",
		Usage:   "enable the Prometheus metrics server",
		EnvVars: []string{"LUMEN_METRICS_ENABLED"},
	}
	MetricsHostFlag = &cli.StringFlag{
		Name:    "metrics-host",
		Usage:   "metrics server listen host",
		Value:   "0.0.0.0",
		EnvVars: []string{"LUMEN_METRICS_HOST"},
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics-port",
		Usage:   "metrics server listen port",
		Value:   7300,
		EnvVars: []string{"LUMEN_METRICS_PORT"},
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "log level: trace, debug, info, warn, error, crit",
		Value:   "info",
		EnvVars: []string{"LUMEN_LOG_LEVEL"},
	}
)

// Flags is the full flag set the lumen-node command registers.
var Flags = []cli.Flag{
	ConfigFileFlag,
	L1RPCURLFlag,
	L1BeaconURLFlag,
	L2RPCURLFlag,
	L2EngineURLFlag,
	JWTSecretFlag,
	RollupConfigFlag,
	MetricsEnabledFlag,
	MetricsHostFlag,
	MetricsPortFlag,
	LogLevelFlag,
}
