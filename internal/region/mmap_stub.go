//go:build !linux

package region

import "fmt"

// mmapReserver on non-Linux platforms: the fixed-address MAP_FIXED/PROT_NONE
// reservation spec.md §4.A describes is a Linux-specific facility (SIGSEGV
// + ucontext_t decoding in internal/fault is equally Linux-only). Builds on
// other platforms compile but every reservation fails at runtime, matching
// the teacher's kernelopcode_stub.go fallback-with-honest-error approach
// rather than silently no-opping.
type mmapReserver struct{}

func (mmapReserver) reserve(base, size uintptr) error {
	return fmt.Errorf("region: fixed-address memory reservation is only supported on linux")
}

func (mmapReserver) release(base, size uintptr) error {
	return fmt.Errorf("region: fixed-address memory reservation is only supported on linux")
}

// PageSize returns a conservative default page size where the OS cannot be
// queried.
func PageSize() int {
	return 4096
}
