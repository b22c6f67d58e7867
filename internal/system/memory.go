package system

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

var (
	// ErrNotEnoughMemory is returned when a plan would not fit in available RAM.
	ErrNotEnoughMemory = errors.New("not enough memory")
	// ErrMemoryUnavailable wraps failures to read the available memory.
	ErrMemoryUnavailable = errors.New("available memory unknown")
)

// FrameBytes estimates the RGBA footprint of frames full-size frames of
// width x height, plus the masks a radial reveal attaches.
func FrameBytes(width, height, frames int) uint64 {
	if width <= 0 || height <= 0 || frames <= 0 {
		return 0
	}
	return uint64(width) * uint64(height) * 5 * uint64(frames)
}

// MemoryReader reports the bytes currently available to the process.
type MemoryReader func(ctx context.Context) (uint64, error)

// AvailableMemory reads available RAM through gopsutil.
func AvailableMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// CheckMemory fails with ErrNotEnoughMemory when need exceeds the memory
// reported by read (AvailableMemory when nil). Read failures are wrapped
// in ErrMemoryUnavailable so callers can downgrade them to a warning.
func CheckMemory(ctx context.Context, need uint64, read MemoryReader) error {
	if read == nil {
		read = AvailableMemory
	}
	avail, err := read(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	if need > avail {
		return fmt.Errorf("%w: need %d MiB, available %d MiB", ErrNotEnoughMemory, need>>20, avail>>20)
	}
	return nil
}
