package exception

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/monitoring"
)

// SafeGo runs fn in a goroutine and logs instead of crashing on panic
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// SafeGoWithPanic runs fn in a goroutine and exits the process on panic
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", fmt.Sprintf("Panic in %s: %v\n%s", name, r, debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}

// Recover logs a panic in the calling goroutine. It must be deferred directly.
func Recover(name string) {
	if r := recover(); r != nil {
		monitoring.IncreasePanicCount()
		logx.Error("PANIC", fmt.Sprintf("Panic in %s: %v\n%s", name, r, debug.Stack()))
	}
}
