package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv, when truthy, makes the binaries exit before touching
// Postgres, Redis or the network.
const TestModeEnv = "HELPDESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
})

// InTestMode reports whether TestModeEnv was set when first asked.
func InTestMode() bool {
	return testMode()
}
