package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("FLEETPAY_TEST_MODE", "1")
		if os.Getenv("EXPORT_DIR") == "" {
			_ = os.Setenv("EXPORT_DIR", os.TempDir())
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
