// Package interrupt implements the Interrupt Dispatcher (spec.md §4.E):
// on delivery of the reserved wake signal, read the per-driver rendezvous
// file, parse the pending (device_id, interrupt_id) record, delete the
// file, and invoke the registered handler slot for that device.
package interrupt

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kvark-io/mmiotrap/internal/constants"
	"github.com/kvark-io/mmiotrap/internal/interfaces"
)

// Handler is the driver-supplied callback for device deviceID. Per
// spec.md §4.E "Safety": it runs on a signal-handling stack and may only
// perform signal-safe operations; any richer work must be deferred by the
// driver to its main context.
type Handler func(interruptID uint32)

// Dispatcher owns the registered handler slots and the rendezvous file
// path for one driver process.
type Dispatcher struct {
	pid      int
	observer interfaces.Observer

	mu       sync.Mutex
	handlers map[uint32]Handler
}

// New constructs a Dispatcher for the current process's rendezvous file,
// `<RendezvousDir>/interrupt_info_<pid>` (spec.md §4.E / original
// `interrupt_signal_handler`). observer may be interfaces.NoopObserver{}.
func New(pid int, observer interfaces.Observer) *Dispatcher {
	if observer == nil {
		observer = interfaces.NoopObserver{}
	}
	return &Dispatcher{pid: pid, observer: observer, handlers: make(map[uint32]Handler)}
}

// RegisterHandler installs the callback for deviceID, replacing any
// previous registration. deviceID must be less than constants.RegionCap,
// matching the original's fixed-size `interrupt_handlers` table.
func (d *Dispatcher) RegisterHandler(deviceID uint32, h Handler) error {
	if deviceID >= constants.RegionCap {
		return fmt.Errorf("interrupt: device_id %d out of range (max %d)", deviceID, constants.RegionCap-1)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[deviceID] = h
	return nil
}

// rendezvousPath returns the well-known path the model writes to before
// raising the wake signal.
func (d *Dispatcher) rendezvousPath() string {
	return filepath.Join(constants.RendezvousDir(), fmt.Sprintf("interrupt_info_%d", d.pid))
}

// dispatch implements spec.md §4.E's read/parse/delete/invoke sequence.
// It is called from the platform signal shim (or directly, in tests) on
// delivery of the wake signal. A missing or malformed rendezvous file is
// silently ignored — spec.md §4.E describes no error path for it, mirroring
// the original's `if (!f) return;` / ignored `fscanf` failure.
func (d *Dispatcher) dispatch() {
	path := d.rendezvousPath()
	f, err := os.Open(path)
	if err != nil {
		return
	}

	deviceID, interruptID, ok := parseRendezvous(f)
	f.Close()
	os.Remove(path)

	if !ok {
		return
	}

	d.mu.Lock()
	h := d.handlers[deviceID]
	d.mu.Unlock()
	d.observer.ObserveInterrupt(deviceID, interruptID, h != nil)
	if h != nil {
		h(interruptID)
	}
}

// parseRendezvous reads the "<device_id>,<interrupt_id>" record written
// by the model. spec.md §3 shows the record with a trailing newline;
// original_source's `fscanf(f, "%u,%u", ...)` accepts one with or
// without, so this parser does too.
func parseRendezvous(f *os.File) (deviceID, interruptID uint32, ok bool) {
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, false
	}
	line := strings.TrimSpace(scanner.Text())
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	dev, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	irq, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint32(dev), uint32(irq), true
}
