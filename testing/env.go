// Package testing prepares the process environment for package tests. Import
// it for side effects.
package testing

import "os"

// defaults are applied only where the variable is unset, so a developer can
// still point tests at real services.
var defaults = map[string]string{
	"HELPDESK_TEST_MODE": "1",
	"SESSION_SECRET":     "test-session-secret",
	"APP_ENV":            "test",
	"PICTURES_BACKEND":   "local",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
