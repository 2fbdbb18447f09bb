//go:build linux && cgo

package interrupt

/*
#include <signal.h>
#include <string.h>

extern void goHandleSigusr1(void);

static void mmiotrap_sigusr1_trampoline(int sig) {
    goHandleSigusr1();
}

static int mmiotrap_install_sigusr1(void) {
    struct sigaction sa;
    memset(&sa, 0, sizeof(sa));
    sa.sa_handler = mmiotrap_sigusr1_trampoline;
    sigemptyset(&sa.sa_mask);
    sa.sa_flags = 0;
    return sigaction(SIGUSR1, &sa, NULL);
}
*/
import "C"

import (
	"fmt"
	"sync/atomic"
)

// activeDispatcher holds the single installed *Dispatcher. Like
// fault_linux.go's activeHandler, sigaction(2)'s sa_handler carries no
// user-data pointer, so there is one process-wide interrupt dispatcher at
// a time — the original's static `interrupt_handlers` table has the same
// shape.
var activeDispatcher atomic.Value

// Install installs the process-wide SIGUSR1 handler (spec.md §4.E
// "Entry").
func (d *Dispatcher) Install() error {
	activeDispatcher.Store(d)
	if rc := C.mmiotrap_install_sigusr1(); rc != 0 {
		return fmt.Errorf("interrupt: sigaction(SIGUSR1) installation failed")
	}
	return nil
}

//export goHandleSigusr1
func goHandleSigusr1() {
	if d, ok := activeDispatcher.Load().(*Dispatcher); ok && d != nil {
		d.dispatch()
	}
}
