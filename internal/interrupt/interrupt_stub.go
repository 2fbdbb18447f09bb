//go:build !cgo || !linux

package interrupt

import "fmt"

// Install reports an error on platforms where sigaction-based signal
// handling isn't available (see fault_stub.go for the same constraint on
// the fault handler).
func (d *Dispatcher) Install() error {
	return fmt.Errorf("interrupt: SIGUSR1 handling is only supported on linux with cgo enabled")
}
