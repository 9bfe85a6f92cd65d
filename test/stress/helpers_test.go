package stress_test

import (
	"os"
	"testing"
)

// requireStressEnabled skips the test unless long stress tests are explicitly enabled.
//
// Enable by setting environment variable PRIMARY_STRESS=1 when invoking `go test`.
// Example:
//
//	PRIMARY_STRESS=1 go test -v -timeout 20m ./test/stress
func requireStressEnabled(t *testing.T) {
	t.Helper()
	if os.Getenv("PRIMARY_STRESS") != "1" {
		t.Skip("Skipping long stress test (set PRIMARY_STRESS=1 to run)")
	}
}
