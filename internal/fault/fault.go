// Package fault implements the Fault Handler (spec.md §4.D): the
// synchronous sequence that runs when a driver touches a registered
// device region — find the owning region, decode the faulting
// instruction, exchange a Request/Response Message with the model, patch
// the register file, and advance the program counter past the trapped
// instruction.
package fault

import (
	"fmt"
	"time"

	"github.com/kvark-io/mmiotrap/internal/decoder"
	"github.com/kvark-io/mmiotrap/internal/interfaces"
	"github.com/kvark-io/mmiotrap/internal/region"
	"github.com/kvark-io/mmiotrap/internal/transport"
	"github.com/kvark-io/mmiotrap/internal/wire"
)

// maxInstBytes bounds how many bytes at the faulting program counter the
// platform shim copies out for decoding — long enough for any instruction
// the decoder's opcode table recognizes (prefixes + opcode + ModR/M + SIB
// + disp32 + imm32), per spec.md §4.C's 15-byte clamp.
const maxInstBytes = 16

// Outcome reports the result of one fault handled through the platform
// callback, for the caller (the cgo shim) to decide whether the faulting
// instruction can be skipped or the process must terminate — spec.md
// §4.D step 1: "if none, the access was a genuine programmer error —
// terminate the process with a diagnostic."
type Outcome struct {
	NewRIP uintptr
	NewRAX uint64
	Fatal  bool
	Err    error
}

// RegionFinder is the lookup the fault handler needs from the Region
// Table (spec.md §4.A's find_by_address) — an interface so tests can
// substitute a fake instead of installing real OS reservations.
// *region.Table satisfies it.
type RegionFinder interface {
	FindByAddress(addr uintptr) (region.Region, bool)
}

// Handler owns the state the fault sequence needs: where device regions
// live, how to reach the model, and where to report.
type Handler struct {
	Table     RegionFinder
	Exchanger transport.Exchanger
	Logger    interfaces.Logger
	Observer  interfaces.Observer
}

// New constructs a Handler. observer may be interfaces.NoopObserver{} if
// the driver does not care about access metrics. logger may be nil; the
// only caller that logs from Handler is the platform shim's fatal path.
func New(table RegionFinder, exchanger transport.Exchanger, logger interfaces.Logger, observer interfaces.Observer) *Handler {
	if observer == nil {
		observer = interfaces.NoopObserver{}
	}
	return &Handler{Table: table, Exchanger: exchanger, Logger: logger, Observer: observer}
}

// Handle implements spec.md §4.D's sequence, steps 1-6, given the values
// the platform signal shim extracted from siginfo_t/ucontext_t. inst must
// contain at least maxInstBytes bytes at rip, or fewer if the mapping
// ends first.
func (h *Handler) Handle(faultAddr, rip uintptr, inst []byte, rax uint64) Outcome {
	reg, found := h.Table.FindByAddress(faultAddr)
	if !found {
		return Outcome{Fatal: true, Err: fmt.Errorf("fault: unknown address 0x%x", faultAddr)}
	}

	info := decoder.Decode(inst, rax)

	cmd := wire.CmdRead
	if info.Direction == decoder.Store {
		cmd = wire.CmdWrite
	}
	req := wire.Message{
		DeviceID: reg.DeviceID,
		Command:  cmd,
		Address:  uint32(faultAddr),
		Data:     info.Value,
		Length:   uint32(info.Width),
	}

	start := time.Now()
	resp, err := h.Exchanger.Exchange(req)
	latencyNs := uint64(time.Since(start).Nanoseconds())
	if err != nil {
		h.Observer.ObserveAccess(reg.DeviceID, info.Direction.String(), info.Width, "transport-error", latencyNs)
		return Outcome{Fatal: true, Err: fmt.Errorf("fault: device %d: %w", reg.DeviceID, err)}
	}

	newRAX := rax
	if info.Direction == decoder.Load {
		newRAX = decoder.InjectAccumulator(rax, resp.Data, info.Width)
	}

	outcome := "ok"
	if resp.Result != 0 {
		outcome = "model-error"
	}
	h.Observer.ObserveAccess(reg.DeviceID, info.Direction.String(), info.Width, outcome, latencyNs)

	// spec.md §4.D "critical contract": advance exactly info.Length past
	// the faulting instruction so it is skipped, never retried.
	return Outcome{NewRIP: rip + uintptr(info.Length), NewRAX: newRAX}
}
