// Package region implements the Region Table (spec.md §4.A): the set of
// registered device windows, their backing no-access reservations, and the
// lookup the fault handler uses to turn a faulting address into an owning
// device.
package region

import (
	"fmt"

	"github.com/kvark-io/mmiotrap/internal/constants"
)

// Region represents one contiguous device window, spec.md §3.
type Region struct {
	DeviceID uint32
	Base     uintptr
	Size     uintptr
}

// Contains reports whether addr falls in [Base, Base+Size).
func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

func (r Region) overlaps(other Region) bool {
	return r.Base < other.Base+other.Size && other.Base < r.Base+r.Size
}

// reserver abstracts the OS-level no-access memory reservation so Table's
// bookkeeping logic can be tested without installing real mappings. The
// production implementation is mmapReserver (mmap_linux.go).
type reserver interface {
	reserve(base, size uintptr) error
	release(base, size uintptr) error
}

// Table is the process-global Region Table. It is written from the
// driver's main context (Register/Unregister) and read from the fault
// handler's signal context (FindByAddress); callers are responsible for
// the spec §5 requirement that registration happens before the first
// device access, or that both trap signals are masked during mutation.
type Table struct {
	rsv     reserver
	regions []Region
}

// NewTable constructs an empty table backed by real OS reservations.
func NewTable() *Table {
	return &Table{rsv: mmapReserver{}}
}

// newTestTable constructs a table with a fake reserver, for unit tests that
// exercise the bookkeeping logic without touching real memory.
func newTestTable(rsv reserver) *Table {
	return &Table{rsv: rsv}
}

// Register installs a new region. Preconditions from spec.md §3: device_id
// not already registered, range disjoint from every existing region, base
// and size page-aligned, table not already at RegionCap.
func (t *Table) Register(deviceID uint32, base, size uintptr) error {
	if size == 0 {
		return fmt.Errorf("region: size must be nonzero")
	}
	pageSize := uintptr(PageSize())
	if base%pageSize != 0 {
		return fmt.Errorf("region: base 0x%x is not page-aligned", base)
	}
	if size%pageSize != 0 {
		return fmt.Errorf("region: size 0x%x is not a multiple of the page size", size)
	}

	candidate := Region{DeviceID: deviceID, Base: base, Size: size}

	for _, r := range t.regions {
		if r.DeviceID == deviceID {
			return fmt.Errorf("region: device %d already registered", deviceID)
		}
		if r.overlaps(candidate) {
			return fmt.Errorf("region: [0x%x, 0x%x) overlaps existing region for device %d", base, base+size, r.DeviceID)
		}
	}
	if len(t.regions) >= constants.RegionCap {
		return fmt.Errorf("region: table full (capacity %d)", constants.RegionCap)
	}

	if err := t.rsv.reserve(base, size); err != nil {
		return fmt.Errorf("region: reserving [0x%x, 0x%x): %w", base, base+size, err)
	}

	t.regions = append(t.regions, candidate)
	return nil
}

// Unregister releases the reservation for deviceID and removes its record.
// Order-preserving removal, matching the original's memmove-based compaction.
func (t *Table) Unregister(deviceID uint32) error {
	for i, r := range t.regions {
		if r.DeviceID == deviceID {
			if err := t.rsv.release(r.Base, r.Size); err != nil {
				return fmt.Errorf("region: releasing device %d: %w", deviceID, err)
			}
			t.regions = append(t.regions[:i], t.regions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("region: device %d not registered", deviceID)
}

// FindByAddress returns the region owning addr, if any. Linear scan is
// acceptable at the reference cap of RegionCap (spec.md §4.A).
func (t *Table) FindByAddress(addr uintptr) (Region, bool) {
	for _, r := range t.regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// Len returns the number of currently registered regions.
func (t *Table) Len() int {
	return len(t.regions)
}

// Cleanup releases every registered region's reservation and empties the
// table.
func (t *Table) Cleanup() error {
	var firstErr error
	for _, r := range t.regions {
		if err := t.rsv.release(r.Base, r.Size); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.regions = nil
	return firstErr
}
