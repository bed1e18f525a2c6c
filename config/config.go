package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/store"
	"github.com/mezonai/lpfarm/types"
)

// LoadFarmConfig reads and parses the genesis.yml file
func LoadFarmConfig(path string) (*FarmConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open genesis file: %w", err)
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode genesis YAML: %w", err)
	}
	if err := cfgFile.Farm.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis config: %w", err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded farm config: reward=%s rate=%d pools=%d balances=%d",
		cfgFile.Farm.RewardAsset, cfgFile.Farm.RewardPerStep, len(cfgFile.Farm.Pools), len(cfgFile.Farm.GenesisBalances)))
	return &cfgFile.Farm, nil
}

// WriteFarmConfig writes cfg as a genesis.yml file
func WriteFarmConfig(path string, cfg *FarmConfig) error {
	data, err := yaml.Marshal(&ConfigFile{Farm: *cfg})
	if err != nil {
		return fmt.Errorf("failed to encode genesis YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks addresses and assets of the farm config
func (c *FarmConfig) Validate() error {
	if err := types.ValidateAddress(c.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if err := types.ValidateAddress(c.Custody); err != nil {
		return fmt.Errorf("custody: %w", err)
	}
	if c.Owner == c.Custody {
		return fmt.Errorf("custody must differ from owner")
	}
	if c.RewardAsset == "" {
		return fmt.Errorf("reward_asset cannot be empty")
	}
	seen := make(map[string]bool, len(c.Pools))
	for i, p := range c.Pools {
		if p.StakeAsset == "" {
			return fmt.Errorf("pools[%d]: stake_asset cannot be empty", i)
		}
		if seen[p.StakeAsset] {
			return fmt.Errorf("pools[%d]: duplicate stake_asset %s", i, p.StakeAsset)
		}
		seen[p.StakeAsset] = true
	}
	for i, b := range c.GenesisBalances {
		if b.Asset == "" {
			return fmt.Errorf("genesis_balances[%d]: asset cannot be empty", i)
		}
		if err := types.ValidateAddress(b.Address); err != nil {
			return fmt.Errorf("genesis_balances[%d]: %w", i, err)
		}
	}
	return nil
}

// Assets lists every asset the ledger must know: the reward asset, pool
// stake assets and genesis balance assets, without duplicates.
func (c *FarmConfig) Assets() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	add(c.RewardAsset)
	for _, p := range c.Pools {
		add(p.StakeAsset)
	}
	for _, b := range c.GenesisBalances {
		add(b.Asset)
	}
	return out
}

// DefaultRuntimeConfig is used for keys missing from the .ini file
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Store: store.StoreConfig{
			Type:      store.LevelDBStoreType,
			Directory: "./data/lpfarm",
		},
		API: APIConfig{
			ListenAddr:         ":8080",
			ReadTimeoutMs:      5000,
			WriteTimeoutMs:     5000,
			RateLimitPerMinute: 120,
		},
		Clock: ClockConfig{
			Mode:           ClockModeSlot,
			StepDurationMs: 400,
		},
	}
}

// LoadRuntimeConfig reads the [store], [api], [clock] and [log] sections from an .ini file
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	rc := DefaultRuntimeConfig()
	sections := []struct {
		name string
		dst  interface{}
	}{
		{"store", &rc.Store},
		{"api", &rc.API},
		{"clock", &rc.Clock},
		{"log", &rc.Log},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("failed to map [%s]: %w", s.name, err)
		}
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// WriteRuntimeConfig writes rc as an .ini file
func WriteRuntimeConfig(path string, rc *RuntimeConfig) error {
	f := ini.Empty()
	if err := f.Section("store").ReflectFrom(&rc.Store); err != nil {
		return err
	}
	if err := f.Section("api").ReflectFrom(&rc.API); err != nil {
		return err
	}
	if err := f.Section("clock").ReflectFrom(&rc.Clock); err != nil {
		return err
	}
	if err := f.Section("log").ReflectFrom(&rc.Log); err != nil {
		return err
	}
	return f.SaveTo(path)
}

// Validate checks the runtime sections
func (rc *RuntimeConfig) Validate() error {
	if err := rc.Store.Validate(); err != nil {
		return fmt.Errorf("[store]: %w", err)
	}
	if rc.API.ListenAddr == "" {
		return fmt.Errorf("[api]: listen_addr cannot be empty")
	}
	switch rc.Clock.Mode {
	case ClockModeSlot:
		if rc.Clock.StepDurationMs <= 0 {
			return fmt.Errorf("[clock]: step_duration_ms must be positive")
		}
	case ClockModeManual:
	default:
		return fmt.Errorf("[clock]: unsupported mode %q", rc.Clock.Mode)
	}
	return nil
}
