package app

import (
	"os"
	"testing"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Set
// TITAN_TEST_LOGS=true to print the captured log after the test.
func SetupAppTest(t *testing.T, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, loader, modules...)

	t.Cleanup(func() {
		if os.Getenv("TITAN_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
