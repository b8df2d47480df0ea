package testing

import "os"

// Importing this package for side effects switches the process into test mode.
func init() {
	_ = os.Setenv("INVENTORY_TEST_MODE", "1")
}
