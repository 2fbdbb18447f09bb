// Command mmiotrap-driver is a minimal example driver: it registers one
// device region, touches it with a handful of loads and stores, and
// prints what the model reported. It exists only as a demonstration of
// the driver-facing API boundary; real drivers are expected to be
// unmodified code that happens to run under mmiotrap.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/kvark-io/mmiotrap"
	"github.com/kvark-io/mmiotrap/internal/logging"
)

func main() {
	var (
		base    = flag.Uint64("base", 0x40000000, "device region base address")
		size    = flag.Uint64("size", 4096, "device region size, in bytes")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	driver, err := mmiotrap.Init(mmiotrap.Config{Logger: logger})
	if err != nil {
		logger.Error("init failed", "error", err)
		os.Exit(1)
	}
	defer driver.Cleanup()

	const deviceID = 1
	if err := driver.RegisterDevice(deviceID, uintptr(*base), uintptr(*size)); err != nil {
		logger.Error("register_device failed", "error", err)
		os.Exit(1)
	}
	defer driver.UnregisterDevice(deviceID)

	interrupted := make(chan uint32, 1)
	driver.RegisterInterruptHandler(deviceID, func(interruptID uint32) {
		select {
		case interrupted <- interruptID:
		default:
		}
	})

	logger.Info("device registered", "device_id", deviceID, "base", fmt.Sprintf("0x%x", *base), "size", *size)

	reg := unsafe.Pointer(uintptr(*base))
	byteReg := (*byte)(reg)
	dwordReg := (*uint32)(reg)

	*byteReg = 0x55
	logger.Info("byte store completed")

	*dwordReg = 1
	logger.Info("dword store completed")

	value := *dwordReg
	logger.Info("dword load completed", "value", fmt.Sprintf("0x%x", value))

	select {
	case id := <-interrupted:
		logger.Info("interrupt delivered", "interrupt_id", id)
	case <-time.After(100 * time.Millisecond):
		logger.Debug("no interrupt observed within the demo window")
	}
}
