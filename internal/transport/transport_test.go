package transport

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/kvark-io/mmiotrap/internal/wire"
)

// fakeModel is a minimal stand-in for the device-model process: it accepts
// one connection, reads exactly one Message, and replies with whatever the
// test configured, exercising the same framing the real model would.
type fakeModel struct {
	ln net.Listener
}

func startFakeModel(t *testing.T, respond func(wire.Message) wire.Message) *fakeModel {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := &fakeModel{ln: ln}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, wire.Size)
		if err := recvAll(conn, buf); err != nil {
			return
		}
		req, err := wire.Unmarshal(buf)
		if err != nil {
			return
		}
		resp := respond(req)
		sendAll(conn, wire.Marshal(resp))
	}()
	return m
}

func (m *fakeModel) Close() { m.ln.Close() }

func (m *fakeModel) addr() string { return m.ln.Addr().String() }

func TestExchangeRoundTrip(t *testing.T) {
	model := startFakeModel(t, func(req wire.Message) wire.Message {
		if req.Command != wire.CmdWrite {
			t.Errorf("model saw Command = %v, want CmdWrite", req.Command)
		}
		return wire.Message{DeviceID: req.DeviceID, Command: req.Command, Result: 0}
	})
	defer model.Close()

	tr := New(model.addr())
	req := wire.Message{DeviceID: 3, Command: wire.CmdWrite, Address: 0x40000000, Data: 0x55, Length: 1}
	resp, err := tr.Exchange(req)
	if err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	if resp.DeviceID != 3 {
		t.Errorf("resp.DeviceID = %d, want 3", resp.DeviceID)
	}
}

func TestExchangeReturnsModelReportedError(t *testing.T) {
	model := startFakeModel(t, func(req wire.Message) wire.Message {
		return wire.Message{DeviceID: req.DeviceID, Command: req.Command, Result: -1}
	})
	defer model.Close()

	tr := New(model.addr())
	resp, err := tr.Exchange(wire.Message{DeviceID: 1, Command: wire.CmdRead})
	if err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	if resp.Result != -1 {
		t.Errorf("resp.Result = %d, want -1 (model-reported error is a value, not a transport error)", resp.Result)
	}
}

func TestExchangeGracefulAbsence(t *testing.T) {
	// No listener at this path at all: connect fails with ENOENT.
	tr := New(filepath.Join(t.TempDir(), "no-such-model.sock"))
	resp, err := tr.Exchange(wire.Message{DeviceID: 1, Command: wire.CmdRead})
	if err != nil {
		t.Fatalf("Exchange() should soft-succeed when the model is absent, got error: %v", err)
	}
	if resp != (wire.Message{}) {
		t.Errorf("resp = %+v, want zero value", resp)
	}
}

func TestExchangeGracefulAbsenceConnectionRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close() // socket file remains, nothing listening -> ECONNREFUSED

	tr := New(path)
	resp, err := tr.Exchange(wire.Message{DeviceID: 1, Command: wire.CmdRead})
	if err != nil {
		t.Fatalf("Exchange() should soft-succeed on connection refused, got error: %v", err)
	}
	if resp != (wire.Message{}) {
		t.Errorf("resp = %+v, want zero value", resp)
	}
}

func TestExchangeTimeoutIsHardError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slow.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(200 * time.Millisecond) // never responds within the deadline
	}()

	tr := New(path).WithTimeout(20 * time.Millisecond)
	if _, err := tr.Exchange(wire.Message{DeviceID: 1, Command: wire.CmdRead}); err == nil {
		t.Error("Exchange() should report a hard error on timeout, got nil")
	}
}
