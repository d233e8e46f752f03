package master

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned when a command is attempted on a stopped communicator
	ErrStopped = errors.New("communicator is not running")
	// ErrNoCID is returned when all communication ids are in use
	ErrNoCID = errors.New("no available CID")
)

// CommunicationTimeoutError indicates that no correctly framed, checksum-valid
// reply arrived within the timeout window. The core never retries by itself,
// callers decide on a retry policy.
type CommunicationTimeoutError struct {
	Message string
}

func (e *CommunicationTimeoutError) Error() string {
	return e.Message
}

func newTimeoutError(format string, args ...any) *CommunicationTimeoutError {
	return &CommunicationTimeoutError{Message: fmt.Sprintf(format, args...)}
}

// IsTimeout reports whether err is a CommunicationTimeoutError
func IsTimeout(err error) bool {
	var timeout *CommunicationTimeoutError
	return errors.As(err, &timeout)
}

// BootloadingError indicates a normal command was attempted against a CC that
// is currently mid firmware-transfer. Callers must wait for the transfer to
// finish instead of retrying immediately.
type BootloadingError struct {
	CCAddress string
}

func (e *BootloadingError) Error() string {
	return fmt.Sprintf("CC %s is currently bootloading", e.CCAddress)
}

// MaintenanceModeError indicates normal communication was attempted while a
// maintenance session exclusively owns the serial channel.
type MaintenanceModeError struct{}

func (e *MaintenanceModeError) Error() string {
	return "communicator is in maintenance mode"
}

// ValueError indicates a value could not be encoded into its field, e.g. out
// of range or a malformed address string. Raised synchronously at the call
// site, values are never silently clamped.
type ValueError struct {
	Message string
}

func (e *ValueError) Error() string {
	return e.Message
}

func newValueError(format string, args ...any) *ValueError {
	return &ValueError{Message: fmt.Sprintf(format, args...)}
}

// CRCError indicates a reassembled pallet failed its CRC-32 validation.
type CRCError struct {
	Residue uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("pallet CRC validation failed (residue 0x%08X)", e.Residue)
}
