package mmiotrap

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorCode categorizes the failure taxonomy spec.md §7 distinguishes.
type ErrorCode string

const (
	ErrCodeRegistration        ErrorCode = "registration failed"
	ErrCodeUnmappedFault       ErrorCode = "unmapped device access"
	ErrCodeTransportHard       ErrorCode = "transport failed"
	ErrCodeTransportSoft       ErrorCode = "model absent"
	ErrCodeModelReported       ErrorCode = "model reported error"
	ErrCodeRendezvousMalformed ErrorCode = "malformed interrupt rendezvous"
)

// Error is the structured error type returned by every fallible
// driver-facing operation.
type Error struct {
	Op       string        // operation that failed, e.g. "RegisterDevice"
	DeviceID uint32        // 0 if not applicable
	Code     ErrorCode     // high-level category
	Errno    syscall.Errno // underlying errno, 0 if not applicable
	Msg      string        // human-readable detail
	Inner    error         // wrapped error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.DeviceID != 0 {
		return fmt.Sprintf("mmiotrap: %s: device=%d: %s", e.Op, e.DeviceID, msg)
	}
	return fmt.Sprintf("mmiotrap: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError constructs a structured error for op.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewDeviceError constructs a structured error scoped to deviceID.
func NewDeviceError(op string, deviceID uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, DeviceID: deviceID, Code: code, Msg: msg}
}

// WrapError wraps inner with op/code context, mapping a bare
// syscall.Errno to its Errno field the way the fault handler's
// transport-layer failures usually arrive.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	e := &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		e.Errno = errno
	}
	return e
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
