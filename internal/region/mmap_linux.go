//go:build linux

package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapReserver installs/releases PROT_NONE MAP_FIXED reservations at an
// exact address, per spec.md §4.A: "a naive implementation reserves
// strictly at the requested address and fails if the kernel cannot; this
// is intentional". unix.Mmap has no address parameter, so the raw
// SYS_MMAP/SYS_MUNMAP syscalls are used directly — the same pattern the
// pack's userfaultfd example uses for userfaultfd(2), a kernel primitive
// with no higher-level x/sys/unix wrapper either.
type mmapReserver struct{}

func (mmapReserver) reserve(base, size uintptr) error {
	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		base,
		size,
		uintptr(unix.PROT_NONE),
		uintptr(unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_FIXED),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return fmt.Errorf("mmap: %w", errno)
	}
	if addr != base {
		// Should be unreachable with MAP_FIXED, which either places the
		// mapping exactly or fails; guard against silent mis-placement.
		unix.Syscall(unix.SYS_MUNMAP, addr, size, 0)
		return fmt.Errorf("mmap: kernel placed reservation at 0x%x, wanted 0x%x", addr, base)
	}
	return nil
}

func (mmapReserver) release(base, size uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, base, size, 0)
	if errno != 0 {
		return fmt.Errorf("munmap: %w", errno)
	}
	return nil
}

// PageSize returns the OS page size.
func PageSize() int {
	return unix.Getpagesize()
}
