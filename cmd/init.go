package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/lpfarm/client"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/store"
)

var (
	// Init command specific variables
	initConfigDir   string
	initDataDir     string
	initDatabase    string
	initRewardAsset string
	initRewardRate  uint64
	initStartStep   uint64
	initSupply      uint64
	initPools       []string
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate owner keys, a genesis file and a runtime config",
	Long: `Initialize a new farm by:
- Generating owner and custody addresses (the owner seed is saved to owner.key)
- Writing genesis.yml with the reward asset, rate and initial pools
- Writing lpfarm.ini with store, api and clock settings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initializeFarm()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initConfigDir, "config-dir", "config", "Directory to write genesis.yml, lpfarm.ini and owner.key")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "./data/lpfarm", "Directory (or file for bolt) holding farm state")
	initCmd.Flags().StringVar(&initDatabase, "database", string(store.LevelDBStoreType), "Database backend (leveldb, bolt, redis or memory)")
	initCmd.Flags().StringVar(&initRewardAsset, "reward-asset", "SHFT", "Reward asset name")
	initCmd.Flags().Uint64Var(&initRewardRate, "rate", 10, "Reward emitted per step across all pools")
	initCmd.Flags().Uint64Var(&initStartStep, "start-step", 0, "First step at which pools accrue reward")
	initCmd.Flags().Uint64Var(&initSupply, "supply", 1_000_000, "Reward asset credited to the owner at genesis")
	initCmd.Flags().StringSliceVar(&initPools, "pool", []string{"LP:1"}, "Genesis pool as stake_asset:weight (repeatable)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

// initializeFarm writes a fresh farm configuration. It refuses to overwrite an
// existing genesis unless --force is given.
func initializeFarm() error {
	if err := os.MkdirAll(initConfigDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	genesisPath := filepath.Join(initConfigDir, "genesis.yml")
	runtimePath := filepath.Join(initConfigDir, "lpfarm.ini")
	keyPath := filepath.Join(initConfigDir, "owner.key")

	if _, err := os.Stat(genesisPath); err == nil && !initForce {
		logx.Info("INIT", "Genesis already exists at ", genesisPath, ", use --force to overwrite")
		return nil
	}

	pools, err := parsePoolFlags(initPools)
	if err != nil {
		return err
	}

	owner, ownerSeed, err := client.GenerateAddress()
	if err != nil {
		return fmt.Errorf("generate owner key: %w", err)
	}
	custody, _, err := client.GenerateAddress()
	if err != nil {
		return fmt.Errorf("generate custody key: %w", err)
	}

	farmCfg := &config.FarmConfig{
		Owner:         owner,
		Custody:       custody,
		RewardAsset:   initRewardAsset,
		RewardPerStep: initRewardRate,
		StartStep:     initStartStep,
		Pools:         pools,
		GenesisBalances: []config.GenesisBalance{
			{Asset: initRewardAsset, Address: owner, Amount: initSupply},
		},
	}
	if err := farmCfg.Validate(); err != nil {
		return err
	}

	rc := config.DefaultRuntimeConfig()
	rc.Store.Type = store.StoreType(initDatabase)
	rc.Store.Directory = initDataDir
	rc.Clock.GenesisUnixMs = time.Now().UnixMilli()
	rc.Log.File = "./logs/lpfarm.log"
	if err := rc.Validate(); err != nil {
		return err
	}

	if err := os.WriteFile(keyPath, []byte(ownerSeed+"\n"), 0o600); err != nil {
		return fmt.Errorf("write owner key: %w", err)
	}
	if err := config.WriteFarmConfig(genesisPath, farmCfg); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}
	if err := config.WriteRuntimeConfig(runtimePath, rc); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}

	logx.Info("INIT", "Farm initialized, owner=", owner, " custody=", custody)
	fmt.Printf("owner:   %s\ncustody: %s\nwrote %s, %s and %s\n", owner, custody, genesisPath, runtimePath, keyPath)
	return nil
}

func parsePoolFlags(values []string) ([]config.PoolConfig, error) {
	pools := make([]config.PoolConfig, 0, len(values))
	for _, v := range values {
		asset, rawWeight, found := strings.Cut(v, ":")
		if !found {
			rawWeight = "1"
		}
		weight, err := strconv.ParseUint(rawWeight, 10, 64)
		if err != nil || asset == "" {
			return nil, fmt.Errorf("invalid --pool %q, want stake_asset:weight", v)
		}
		pools = append(pools, config.PoolConfig{StakeAsset: asset, Weight: weight})
	}
	return pools, nil
}
