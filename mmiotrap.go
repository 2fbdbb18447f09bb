// Package mmiotrap lets an unmodified memory-mapped-I/O device driver run
// as an ordinary userspace process while a separate device-model process
// simulates the hardware. Reserved address ranges are backed by no-access
// memory reservations; a touch faults into this package, which decodes
// the faulting instruction, exchanges a fixed-layout request/response
// with the model over a unix domain socket, patches the register file,
// and resumes the driver past the instruction. A second channel lets the
// model raise interrupts back into the driver via a rendezvous file and
// wake signal.
//
// See internal/region, internal/transport, internal/decoder,
// internal/fault, and internal/interrupt for the components this package
// wires together.
package mmiotrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kvark-io/mmiotrap/internal/constants"
	"github.com/kvark-io/mmiotrap/internal/fault"
	"github.com/kvark-io/mmiotrap/internal/interfaces"
	"github.com/kvark-io/mmiotrap/internal/interrupt"
	"github.com/kvark-io/mmiotrap/internal/logging"
	"github.com/kvark-io/mmiotrap/internal/region"
	"github.com/kvark-io/mmiotrap/internal/transport"
)

// InterruptHandler is the driver-supplied callback for a device's
// interrupts; see internal/interrupt.Handler for the signal-safety
// constraint it runs under.
type InterruptHandler = interrupt.Handler

// Driver is the process-wide handle to the memory-trap engine. There is
// ordinarily exactly one per process, matching the single static device
// table spec.md's design assumes.
type Driver struct {
	table      *region.Table
	transport  *transport.Transport
	faultH     *fault.Handler
	dispatcher *interrupt.Dispatcher
	metrics    *Metrics
	logger     interfaces.Logger

	pid     int
	pidPath string
	started bool
}

// Config configures Init. The zero Config uses the default socket path
// and rendezvous directory (overridable via MMIOTRAP_SOCKET_PATH and
// MMIOTRAP_RENDEZVOUS_DIR, see internal/constants).
type Config struct {
	Logger   *logging.Logger
	Observer interfaces.Observer
}

// Init implements spec.md §6 operation 1: installs the fault and
// interrupt handlers and writes the driver process-identifier file the
// model uses to find this process. Callers typically keep the returned
// *Driver for the lifetime of the process and call Cleanup on exit.
func Init(cfg Config) (*Driver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	observer := cfg.Observer
	metrics, _ := observer.(*Metrics)
	if observer == nil {
		metrics = NewMetrics()
		observer = metrics
	}

	pid := os.Getpid()
	d := &Driver{
		table:      region.NewTable(),
		transport:  transport.New(constants.SocketPath()),
		dispatcher: interrupt.New(pid, observer),
		metrics:    metrics,
		logger:     logger,
		pid:        pid,
		pidPath:    filepath.Join(constants.RendezvousDir(), fmt.Sprintf("interface_driver_%d", pid)),
	}
	d.faultH = fault.New(d.table, d.transport, logger, observer)

	if err := d.faultH.Install(); err != nil {
		return nil, WrapError("Init", ErrCodeRegistration, err)
	}
	if err := d.dispatcher.Install(); err != nil {
		return nil, WrapError("Init", ErrCodeRegistration, err)
	}

	// Original's interface_init: fprintf(pid_file, "%d", driver_pid) — no
	// trailing newline.
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		logger.Warnf("mmiotrap: failed to write pid file %s: %v", d.pidPath, err)
	}

	d.started = true
	return d, nil
}

// RegisterDevice implements spec.md §6 operation 2.
func (d *Driver) RegisterDevice(deviceID uint32, base, size uintptr) error {
	if err := d.table.Register(deviceID, base, size); err != nil {
		return NewDeviceError("RegisterDevice", deviceID, ErrCodeRegistration, err.Error())
	}
	return nil
}

// UnregisterDevice implements spec.md §6 operation 3.
func (d *Driver) UnregisterDevice(deviceID uint32) error {
	if err := d.table.Unregister(deviceID); err != nil {
		return NewDeviceError("UnregisterDevice", deviceID, ErrCodeRegistration, err.Error())
	}
	return nil
}

// RegisterInterruptHandler implements spec.md §6 operation 4.
func (d *Driver) RegisterInterruptHandler(deviceID uint32, h InterruptHandler) error {
	if err := d.dispatcher.RegisterHandler(deviceID, h); err != nil {
		return NewDeviceError("RegisterInterruptHandler", deviceID, ErrCodeRegistration, err.Error())
	}
	return nil
}

// Metrics returns the Observer accumulating access/interrupt counters, or
// nil if Init was configured with a caller-supplied Observer that is not a
// *Metrics.
func (d *Driver) Metrics() *Metrics {
	return d.metrics
}

// Cleanup implements spec.md §6 operation 5: releases every reservation
// and removes the driver process-identifier file. Idempotent.
func (d *Driver) Cleanup() error {
	if !d.started {
		return nil
	}
	d.started = false
	err := d.table.Cleanup()
	os.Remove(d.pidPath)
	if err != nil {
		return WrapError("Cleanup", ErrCodeRegistration, err)
	}
	return nil
}
