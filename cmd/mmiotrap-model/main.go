// Command mmiotrap-model is a minimal example device-model process: it
// listens on the well-known control socket, answers Request Messages
// with a simple in-memory register file, and can raise an interrupt into
// a waiting driver process via the rendezvous-file protocol.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/kvark-io/mmiotrap/internal/constants"
	"github.com/kvark-io/mmiotrap/internal/logging"
	"github.com/kvark-io/mmiotrap/internal/wire"
)

func main() {
	var (
		driverPID = flag.Int("driver-pid", 0, "if set, raise an interrupt at the driver with this pid after serving one request")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	socketPath := constants.SocketPath()
	os.Remove(socketPath) // stale socket from a prior run

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		logger.Error("listen failed", "path", socketPath, "error", err)
		os.Exit(1)
	}
	defer ln.Close()
	logger.Info("model listening", "path", socketPath)

	registers := make(map[uint32]uint32)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Error("accept failed", "error", err)
			return
		}
		serveOne(conn, registers, logger)

		if *driverPID != 0 {
			if err := raiseInterrupt(*driverPID, 1, 0); err != nil {
				logger.Warn("raise_interrupt failed", "error", err)
			}
			*driverPID = 0 // once, for this demo
		}
	}
}

func serveOne(conn net.Conn, registers map[uint32]uint32, logger *logging.Logger) {
	defer conn.Close()

	buf := make([]byte, wire.Size)
	if _, err := readFull(conn, buf); err != nil {
		logger.Warn("short request", "error", err)
		return
	}
	req, err := wire.Unmarshal(buf)
	if err != nil {
		logger.Warn("decode request failed", "error", err)
		return
	}

	resp := wire.Message{DeviceID: req.DeviceID, Command: req.Command, Address: req.Address, Length: req.Length}
	switch req.Command {
	case wire.CmdWrite:
		registers[req.Address] = req.Data
		logger.Debug("write", "device_id", req.DeviceID, "address", fmt.Sprintf("0x%x", req.Address), "data", fmt.Sprintf("0x%x", req.Data))
	case wire.CmdRead:
		resp.Data = registers[req.Address]
		logger.Debug("read", "device_id", req.DeviceID, "address", fmt.Sprintf("0x%x", req.Address), "data", fmt.Sprintf("0x%x", resp.Data))
	}

	if _, err := conn.Write(wire.Marshal(resp)); err != nil {
		logger.Warn("short response", "error", err)
	}
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

// raiseInterrupt implements the model's side of spec.md §4.E: write the
// rendezvous record, then signal the driver.
func raiseInterrupt(driverPID int, deviceID, interruptID uint32) error {
	path := constants.RendezvousDir() + "/interrupt_info_" + strconv.Itoa(driverPID)
	record := fmt.Sprintf("%d,%d\n", deviceID, interruptID)
	if err := os.WriteFile(path, []byte(record), 0o644); err != nil {
		return err
	}
	return syscall.Kill(driverPID, syscall.SIGUSR1)
}
