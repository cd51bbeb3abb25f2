package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const testModeEnv = "MERIDIAN_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the MERIDIAN_TEST_MODE flag once. Both "1" and "true"
// count; CI pipelines set one or the other.
func detectTestMode() {
	value := strings.TrimSpace(os.Getenv(testModeEnv))
	testModeFlag.Store(value == "1" || strings.EqualFold(value, "true"))
}

// InTestMode reports whether the process runs under the test harness. The
// binaries exit immediately in test mode so that compiling and invoking them
// inside the suite never opens sockets or touches Postgres and Redis.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	detectTestMode()
}
