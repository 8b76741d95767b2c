//go:build linux

package internal

import "golang.org/x/sys/unix"

type systemMemory struct{}

// SystemMemory reads free plus buffer memory from sysinfo(2).
func SystemMemory() MemoryProvider { return systemMemory{} }

func (systemMemory) AvailableMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return (uint64(info.Freeram) + uint64(info.Bufferram)) * unit, nil
}
