package mmiotrap

import (
	"net"
	"sync"

	"github.com/kvark-io/mmiotrap/internal/wire"
)

// MockModel is a fake device-model process for tests: it listens on a
// unix domain socket and answers each Request Message with whatever
// Respond returns, the same "same-process fake peer" shape as
// internal/transport's test fakeModel, exported here for driver-level
// integration tests that don't want to depend on internal/.
type MockModel struct {
	// Respond computes a response for each request. The zero value
	// echoes the request back with Result 0.
	Respond func(req wire.Message) wire.Message

	ln net.Listener

	mu       sync.Mutex
	requests []wire.Message
}

// NewMockModel starts listening on path (typically a throwaway path in a
// test's temp directory, wired into MMIOTRAP_SOCKET_PATH so Init's
// transport finds it).
func NewMockModel(path string) (*MockModel, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	m := &MockModel{ln: ln}
	go m.serve()
	return m, nil
}

func (m *MockModel) serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return
		}
		go m.handle(conn)
	}
}

func (m *MockModel) handle(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, wire.Size)
	if _, err := readFull(conn, buf); err != nil {
		return
	}
	req, err := wire.Unmarshal(buf)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	respond := m.Respond
	if respond == nil {
		respond = func(req wire.Message) wire.Message { return req }
	}
	resp := respond(req)
	conn.Write(wire.Marshal(resp))
}

// Requests returns every request received so far, for assertions like
// spec.md's P1 (one request per trapped access, matching fields).
func (m *MockModel) Requests() []wire.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Message, len(m.requests))
	copy(out, m.requests)
	return out
}

// Close stops accepting new connections.
func (m *MockModel) Close() error {
	return m.ln.Close()
}

// Addr returns the unix socket path MockModel is listening on.
func (m *MockModel) Addr() string {
	return m.ln.Addr().String()
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
