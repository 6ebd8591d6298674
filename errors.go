package serial

import (
	"errors"
	"fmt"
	"syscall"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")
	ErrPortClosed       = errors.New("serial port is closed")
	ErrWriteTimeout     = errors.New("write operation timed out")
	ErrReadTimeout      = errors.New("read operation timed out")

	// Caller contract violations
	ErrEmptyWrite     = errors.New("write of empty data")
	ErrBufferOverflow = errors.New("outbound buffer capacity exceeded")
	ErrNilSink        = errors.New("notification sink is nil")
	ErrReopenRequired = errors.New("setting can only change by reopening the port")

	// Error classes, matched with errors.Is
	ErrSetup    = errors.New("serial port setup failed")
	ErrInternal = errors.New("serial engine internal error")
)

// Device-level outcomes that never reach the owner
var (
	errPending = errors.New("operation pending")
	errAborted = errors.New("operation aborted by close")
)

// SetupError reports which step of opening a port failed
type SetupError struct {
	Step string
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("serial: open %s: %s: %v", e.Path, e.Step, e.Err)
}

func (e *SetupError) Unwrap() []error {
	return []error{ErrSetup, e.Err}
}

// OpError is an operational failure reported through OnFatalError. The
// session keeps running after one.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("serial: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// InternalError is a broken engine invariant, such as a write that
// completed without error but sent a different count than was staged
type InternalError struct {
	Op     string
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("serial: internal error in %s: %s", e.Op, e.Detail)
}

func (e *InternalError) Unwrap() error {
	return ErrInternal
}

// ErrorCode extracts the operating system error code carried by err
func ErrorCode(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
