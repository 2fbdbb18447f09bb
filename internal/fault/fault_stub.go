//go:build !cgo || !linux

package fault

import "fmt"

// Install reports an error on platforms where the SIGSEGV/ucontext_t
// plumbing fault.go needs isn't available: that machinery is
// Linux-and-cgo-specific (fault_linux.go), matching the teacher's
// kernelopcode_stub.go fallback-with-honest-error approach.
func (h *Handler) Install() error {
	return fmt.Errorf("fault: SIGSEGV handling is only supported on linux with cgo enabled")
}
