package config

import (
	"github.com/mezonai/lpfarm/store"
)

// PoolConfig is a pool created at genesis
type PoolConfig struct {
	StakeAsset string `yaml:"stake_asset"`
	Weight     uint64 `yaml:"weight"`
}

// GenesisBalance credits an address with an asset at genesis
type GenesisBalance struct {
	Asset   string `yaml:"asset"`
	Address string `yaml:"address"`
	Amount  uint64 `yaml:"amount"`
}

// FarmConfig holds the farm parameters from genesis.yml
type FarmConfig struct {
	// Owner is the only caller allowed to add pools and change weights or the rate
	Owner string `yaml:"owner"`
	// Custody holds staked assets and the reward reserve in the ledger
	Custody         string           `yaml:"custody"`
	RewardAsset     string           `yaml:"reward_asset"`
	RewardPerStep   uint64           `yaml:"reward_per_step"`
	StartStep       uint64           `yaml:"start_step"`
	Pools           []PoolConfig     `yaml:"pools"`
	GenesisBalances []GenesisBalance `yaml:"genesis_balances"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Farm FarmConfig `yaml:"farm"`
}

// APIConfig is the [api] section of the runtime config
type APIConfig struct {
	ListenAddr     string `ini:"listen_addr"`
	ReadTimeoutMs  int    `ini:"read_timeout_ms"`
	WriteTimeoutMs int    `ini:"write_timeout_ms"`
	// RateLimitPerMinute caps mutating requests per caller; 0 disables the limit
	RateLimitPerMinute int `ini:"rate_limit_per_minute"`
}

// ClockConfig is the [clock] section. Mode "slot" derives the step from
// wall time; mode "manual" starts at StartStep and only moves when advanced.
type ClockConfig struct {
	Mode           string `ini:"mode"`
	StepDurationMs int    `ini:"step_duration_ms"`
	GenesisUnixMs  int64  `ini:"genesis_unix_ms"`
	StartStep      uint64 `ini:"start_step"`
}

// LogConfig is the [log] section
type LogConfig struct {
	File string `ini:"file"`
}

// RuntimeConfig holds every section of the runtime .ini file
type RuntimeConfig struct {
	Store store.StoreConfig
	API   APIConfig
	Clock ClockConfig
	Log   LogConfig
}

const (
	ClockModeSlot   = "slot"
	ClockModeManual = "manual"
)
