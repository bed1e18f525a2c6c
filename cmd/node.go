package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/lpfarm/api"
	"github.com/mezonai/lpfarm/clock"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/monitoring"
	"github.com/mezonai/lpfarm/service"
	"github.com/mezonai/lpfarm/store"
)

const shutdownTimeout = 10 * time.Second

var (
	runGenesisPath string
	runConfigPath  string
	runListenAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the farm service and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFarm()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runGenesisPath, "genesis", "config/genesis.yml", "Path to the farm genesis file")
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/lpfarm.ini", "Path to the runtime config")
	runCmd.Flags().StringVar(&runListenAddr, "listen", "", "Override [api] listen_addr")
}

func runFarm() error {
	farmCfg, err := config.LoadFarmConfig(runGenesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	rc, err := loadRuntimeConfig(runConfigPath)
	if err != nil {
		return err
	}
	if runListenAddr != "" {
		rc.API.ListenAddr = runListenAddr
	}
	logx.SetOutputFile(rc.Log.File)
	monitoring.InitMetrics()

	stores, err := store.CreateStore(&rc.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer stores.Close()

	lastStep, hasState, err := stores.Farm.LastStep()
	if err != nil {
		return fmt.Errorf("read last step: %w", err)
	}
	counter, manual, err := initializeClock(rc.Clock, lastStep, hasState)
	if err != nil {
		return err
	}
	router := events.NewEventRouter(events.NewEventBus())

	svc, err := service.Open(farmCfg, stores, counter, router)
	if err != nil {
		return fmt.Errorf("open farm: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := svc.Start(context.Background()); err != nil {
		return err
	}
	defer svc.Stop()

	farmAPI := api.NewFarmAPI(svc, rc.API)
	if manual != nil {
		farmAPI.EnableClockControl(manual)
	}
	farmAPI.Start()
	logx.Info("RUN", fmt.Sprintf("Farm running at step %d, owner=%s", svc.CurrentStep(), svc.Owner()))

	<-ctx.Done()
	logx.Info("RUN", "Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := farmAPI.Shutdown(shutdownCtx); err != nil {
		logx.Error("RUN", "API shutdown:", err)
	}
	return nil
}

// loadRuntimeConfig falls back to defaults when the .ini file does not exist
func loadRuntimeConfig(path string) (*config.RuntimeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logx.Warn("RUN", "Runtime config ", path, " not found, using defaults")
		rc := config.DefaultRuntimeConfig()
		return rc, rc.Validate()
	}
	rc, err := config.LoadRuntimeConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load runtime config: %w", err)
	}
	return rc, nil
}

// initializeClock returns the step counter for the configured mode. The
// manual counter is returned separately so the API can advance it. lastStep
// and hasState describe what the store already holds: a manual counter resumes
// from lastStep, and a slot counter needs a fixed genesis to resume at all.
func initializeClock(cfg config.ClockConfig, lastStep uint64, hasState bool) (clock.StepCounter, *clock.ManualCounter, error) {
	if cfg.Mode == config.ClockModeManual {
		start := cfg.StartStep
		if hasState && lastStep > start {
			start = lastStep
		}
		manual := clock.NewManualCounter(start)
		logx.Info("RUN", fmt.Sprintf("Using manual clock from step %d", start))
		return manual, manual, nil
	}
	genesis := time.UnixMilli(cfg.GenesisUnixMs)
	if cfg.GenesisUnixMs == 0 {
		if hasState {
			return nil, nil, fmt.Errorf("clock genesis_unix_ms must be set to resume a farm persisted at step %d", lastStep)
		}
		genesis = time.Now()
		logx.Warn("RUN", "clock genesis_unix_ms not set, counting steps from now")
	}
	step := time.Duration(cfg.StepDurationMs) * time.Millisecond
	logx.Info("RUN", fmt.Sprintf("Using slot clock, genesis=%s step=%s", genesis.Format(time.RFC3339), step))
	return clock.NewSlotCounter(genesis, step), nil, nil
}
