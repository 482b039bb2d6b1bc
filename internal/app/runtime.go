package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

const testModeEnv = "FLEETPAY_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	enabled, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testModeFlag.Store(enabled)
}

// InTestMode reports whether binaries should skip connecting to Postgres,
// Redis and the listener. The flag is read once.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads FLEETPAY_TEST_MODE after environment changes.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
