// Package constants centralizes the well-known paths and sizing limits
// the rest of mmiotrap is built around.
package constants

import "os"

// Region table sizing.
const (
	// RegionCap is the maximum number of simultaneously registered device
	// regions (and the size of the interrupt handler slot table, indexed
	// by device_id).
	RegionCap = 16
)

// Well-known paths, overridable by environment variable so tests can run
// hermetically against a private socket/directory instead of /tmp.
const (
	// EnvSocketPath overrides the model socket path.
	EnvSocketPath = "MMIOTRAP_SOCKET_PATH"

	// EnvRendezvousDir overrides the directory holding the driver PID file
	// and interrupt rendezvous files.
	EnvRendezvousDir = "MMIOTRAP_RENDEZVOUS_DIR"

	// DefaultSocketPath is the model-facing unix domain socket (spec §6).
	DefaultSocketPath = "/tmp/driver_simulator_socket"

	// DefaultRendezvousDir holds /tmp/interface_driver_<pid> and
	// /tmp/interrupt_info_<pid> when no override is set.
	DefaultRendezvousDir = "/tmp"
)

// SocketPath returns the model socket path, honoring EnvSocketPath.
func SocketPath() string {
	if p := os.Getenv(EnvSocketPath); p != "" {
		return p
	}
	return DefaultSocketPath
}

// RendezvousDir returns the rendezvous directory, honoring EnvRendezvousDir.
func RendezvousDir() string {
	if d := os.Getenv(EnvRendezvousDir); d != "" {
		return d
	}
	return DefaultRendezvousDir
}
