//go:build linux && cgo

package fault

/*
#define _GNU_SOURCE
#include <signal.h>
#include <stdint.h>
#include <string.h>
#include <ucontext.h>

extern int goHandleSegv(uint64_t faultAddr, uint64_t rip, uint64_t rax, uint8_t *inst, uint64_t *newRip, uint64_t *newRax);

static void mmiotrap_segv_trampoline(int sig, siginfo_t *si, void *ctx) {
    ucontext_t *uctx = (ucontext_t *)ctx;
    uint64_t fault_addr = (uint64_t)(uintptr_t)si->si_addr;
    uint64_t rip = (uint64_t)uctx->uc_mcontext.gregs[REG_RIP];
    uint64_t rax = (uint64_t)uctx->uc_mcontext.gregs[REG_RAX];
    uint64_t new_rip = rip;
    uint64_t new_rax = rax;

    if (!goHandleSegv(fault_addr, rip, rax, (uint8_t *)(uintptr_t)rip, &new_rip, &new_rax)) {
        // spec.md §4.D step 1/4: unknown address or a hard transport
        // error is a genuine programmer error; terminate with whatever
        // diagnostic goHandleSegv already logged.
        _exit(1);
    }
    uctx->uc_mcontext.gregs[REG_RIP] = (greg_t)new_rip;
    uctx->uc_mcontext.gregs[REG_RAX] = (greg_t)new_rax;
}

static int mmiotrap_install_segv(void) {
    struct sigaction sa;
    memset(&sa, 0, sizeof(sa));
    sa.sa_sigaction = mmiotrap_segv_trampoline;
    sigemptyset(&sa.sa_mask);
    sa.sa_flags = SA_SIGINFO;
    return sigaction(SIGSEGV, &sa, NULL);
}
*/
import "C"

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// activeHandler holds the single installed *Handler. sigaction(2) carries
// no user-data pointer, so — like the original's static device table —
// there is exactly one process-wide fault handler at a time; a second
// Install replaces the first.
var activeHandler atomic.Value

// Install installs the process-wide SIGSEGV handler (spec.md §4.D
// "Entry"). The OS invokes it with the faulting address and a mutable
// execution context; goHandleSegv below is the cgo entry point the C
// trampoline calls back into.
func (h *Handler) Install() error {
	activeHandler.Store(h)
	if rc := C.mmiotrap_install_segv(); rc != 0 {
		return fmt.Errorf("fault: sigaction(SIGSEGV) installation failed")
	}
	return nil
}

//export goHandleSegv
func goHandleSegv(faultAddr, rip, rax C.uint64_t, inst *C.uint8_t, newRip, newRax *C.uint64_t) C.int {
	h, _ := activeHandler.Load().(*Handler)
	if h == nil {
		return 0
	}
	buf := C.GoBytes(unsafe.Pointer(inst), C.int(maxInstBytes))
	outcome := h.Handle(uintptr(faultAddr), uintptr(rip), buf, uint64(rax))
	if outcome.Fatal {
		if h.Logger != nil {
			h.Logger.Errorf("fault: %v", outcome.Err)
		}
		return 0
	}
	*newRip = C.uint64_t(outcome.NewRIP)
	*newRax = C.uint64_t(outcome.NewRAX)
	return 1
}
