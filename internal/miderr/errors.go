// Package miderr defines the closed error taxonomy shared by the capture
// and device-monitoring layers.
package miderr

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

type Code string

const (
	CodeDeviceNotFound   Code = "DEVICE_NOT_FOUND"
	CodeConnectionFailed Code = "CONNECTION_FAILED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeDeviceBusy       Code = "DEVICE_BUSY"
	CodeInvalidMessage   Code = "INVALID_MESSAGE"
	CodeUnknown          Code = "UNKNOWN_ERROR"
)

// Error carries a taxonomy code alongside the originating fault.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown when err was
// never classified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}

	return CodeUnknown
}

// ClassifyOpen maps a failed port open onto the taxonomy. Typed driver
// errors are inspected first; the free-text substring matching below is a
// compatibility shim for drivers that expose no structured signal.
func ClassifyOpen(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) && classified != nil {
		return classified
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr != nil {
		switch portErr.Code() {
		case serial.PermissionDenied:
			return Wrap(CodePermissionDenied, "port access denied", err)
		case serial.PortBusy:
			return Wrap(CodeDeviceBusy, "port already in use", err)
		case serial.PortNotFound:
			return Wrap(CodeDeviceNotFound, "port not found", err)
		default:
			return Wrap(CodeConnectionFailed, "port open failed", err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access"):
		return Wrap(CodePermissionDenied, "port access denied", err)
	case strings.Contains(msg, "busy") || strings.Contains(msg, "use"):
		return Wrap(CodeDeviceBusy, "port already in use", err)
	default:
		return Wrap(CodeConnectionFailed, "port open failed", err)
	}
}

// ClassifyEnumeration wraps a device-listing failure. Enumeration faults
// carry no finer category than UNKNOWN_ERROR.
func ClassifyEnumeration(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) && classified != nil {
		return classified
	}

	return Wrap(CodeUnknown, "device enumeration failed", err)
}
