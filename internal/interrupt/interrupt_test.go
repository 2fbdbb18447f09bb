package interrupt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kvark-io/mmiotrap/internal/constants"
)

func withRendezvousDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(constants.EnvRendezvousDir, dir)
	return dir
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	dir := withRendezvousDir(t)
	d := New(4242, nil)

	var gotDevice, gotInterrupt uint32
	invoked := false
	if err := d.RegisterHandler(3, func(interruptID uint32) {
		invoked = true
		gotDevice = 3
		gotInterrupt = interruptID
	}); err != nil {
		t.Fatalf("RegisterHandler() error: %v", err)
	}

	path := filepath.Join(dir, "interrupt_info_4242")
	if err := os.WriteFile(path, []byte("3,9\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d.dispatch()

	if !invoked {
		t.Fatal("dispatch() did not invoke the registered handler")
	}
	if gotDevice != 3 || gotInterrupt != 9 {
		t.Errorf("handler saw (device=%d, interrupt=%d), want (3, 9)", gotDevice, gotInterrupt)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("dispatch() should delete the rendezvous file")
	}
}

func TestDispatchAcceptsRecordWithoutTrailingNewline(t *testing.T) {
	dir := withRendezvousDir(t)
	d := New(1, nil)
	invoked := false
	d.RegisterHandler(0, func(uint32) { invoked = true })

	path := filepath.Join(dir, "interrupt_info_1")
	os.WriteFile(path, []byte("0,1"), 0o644)

	d.dispatch()
	if !invoked {
		t.Error("dispatch() should parse a record without a trailing newline")
	}
}

func TestDispatchIgnoresMissingFile(t *testing.T) {
	withRendezvousDir(t)
	d := New(99999, nil)
	d.RegisterHandler(0, func(uint32) { t.Error("handler should not be invoked when no rendezvous file exists") })
	d.dispatch() // must not panic
}

func TestDispatchIgnoresMalformedRecord(t *testing.T) {
	dir := withRendezvousDir(t)
	d := New(5, nil)
	d.RegisterHandler(0, func(uint32) { t.Error("handler should not be invoked for a malformed record") })

	path := filepath.Join(dir, "interrupt_info_5")
	os.WriteFile(path, []byte("not-a-record"), 0o644)
	d.dispatch()
}

func TestDispatchWithNoHandlerRegisteredStillDeletesFile(t *testing.T) {
	dir := withRendezvousDir(t)
	d := New(7, nil)

	path := filepath.Join(dir, "interrupt_info_7")
	os.WriteFile(path, []byte("2,1\n"), 0o644)

	d.dispatch()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("dispatch() should delete the rendezvous file even with no handler registered")
	}
}

func TestRegisterHandlerRejectsOutOfRangeDeviceID(t *testing.T) {
	d := New(1, nil)
	if err := d.RegisterHandler(constants.RegionCap, func(uint32) {}); err == nil {
		t.Error("RegisterHandler() should reject device_id >= RegionCap")
	}
}
