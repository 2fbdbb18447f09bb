// Package transport implements the IPC Transport (spec.md §4.B): one
// synchronous request/response exchange per trapped access, over a unix
// domain socket to the device-model process, with a graceful-absence
// policy when no model is listening.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/kvark-io/mmiotrap/internal/wire"
)

// Exchanger is the fault handler's view of the transport, so tests can
// substitute a fake without opening real sockets.
type Exchanger interface {
	Exchange(req wire.Message) (wire.Message, error)
}

// Transport connects to addr fresh for every Exchange call, matching
// spec.md §4.B's "one connection per request is acceptable at the design
// level" baseline.
type Transport struct {
	addr    string
	timeout time.Duration
}

// New returns a Transport dialing addr (a unix domain socket path).
func New(addr string) *Transport {
	return &Transport{addr: addr, timeout: 2 * time.Second}
}

// WithTimeout overrides the per-exchange dial/IO deadline; a Transport
// from New otherwise uses a 2-second default.
func (t *Transport) WithTimeout(d time.Duration) *Transport {
	t.timeout = d
	return t
}

// Exchange sends req and returns the model's response. Per spec.md §4.B's
// graceful-absence policy, a connect failure of ECONNREFUSED or ENOENT
// (no model listening) is not an error: it returns a zero-filled response
// with Result 0. Any other failure — partial send, short read, unexpected
// disconnect — is returned as a hard error.
func (t *Transport) Exchange(req wire.Message) (wire.Message, error) {
	conn, err := net.DialTimeout("unix", t.addr, t.timeout)
	if err != nil {
		if isModelAbsent(err) {
			return wire.Message{}, nil
		}
		return wire.Message{}, fmt.Errorf("transport: connect %s: %w", t.addr, err)
	}
	defer conn.Close()

	if d := t.timeout; d > 0 {
		conn.SetDeadline(time.Now().Add(d))
	}

	if err := sendAll(conn, wire.Marshal(req)); err != nil {
		return wire.Message{}, fmt.Errorf("transport: send: %w", err)
	}

	buf := make([]byte, wire.Size)
	if err := recvAll(conn, buf); err != nil {
		return wire.Message{}, fmt.Errorf("transport: recv: %w", err)
	}

	resp, err := wire.Unmarshal(buf)
	if err != nil {
		return wire.Message{}, fmt.Errorf("transport: decode response: %w", err)
	}
	return resp, nil
}

// isModelAbsent implements spec.md §4.B / the original's documented errno
// set: the model process simply isn't up yet. Everything else is hard.
func isModelAbsent(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT)
}

func sendAll(w interface{ Write([]byte) (int, error) }, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short write: made no progress")
		}
		buf = buf[n:]
	}
	return nil
}

func recvAll(r interface{ Read([]byte) (int, error) }, buf []byte) error {
	for len(buf) > 0 {
		n, err := r.Read(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			if len(buf) == 0 {
				return nil
			}
			return fmt.Errorf("connection closed with %d bytes still expected: %w", len(buf), err)
		}
	}
	return nil
}
