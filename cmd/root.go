package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/lpfarm/logx"
)

var rootCmd = &cobra.Command{
	Use:   "lpfarm",
	Short: "LP staking farm CLI",
	Long:  "Command line interface for running an LP staking farm and calling its API.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
