//go:build !linux

package internal

import (
	"fmt"
	"runtime"
)

type systemMemory struct{}

// SystemMemory has no portable source outside Linux; AdaptiveThreshold
// falls back to a fixed estimate.
func SystemMemory() MemoryProvider { return systemMemory{} }

func (systemMemory) AvailableMemory() (uint64, error) {
	return 0, fmt.Errorf("available memory not supported on %s", runtime.GOOS)
}
