package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/lpfarm/cmd"
	"github.com/mezonai/lpfarm/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("FARM CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
