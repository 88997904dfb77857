package process

import (
	"sync"
)

// Process-global state is reference-counted across Processes so nested
// library use stays balanced: the count goes up on every successful Start
// and down on the Destroy of every process that left NotStarted.
var (
	initMu   sync.Mutex
	initRefs int
)

func initGlobal() error {
	initMu.Lock()
	defer initMu.Unlock()

	initRefs++
	if initRefs == 1 {
		// Metric instruments are optional: a failing meter never blocks
		// a launch.
		installMetrics()
	}

	return nil
}

func deinitGlobal() {
	initMu.Lock()
	defer initMu.Unlock()

	if initRefs == 0 {
		return
	}
	initRefs--
	if initRefs == 0 {
		uninstallMetrics()
	}
}
