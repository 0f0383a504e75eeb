package serial

import "codeberg.org/mutker/torquectl/internal/errors"

const (
	ErrInvalidPort   = errors.ErrorCode("serial_invalid_port")
	ErrOpenFailed    = errors.ErrorCode("serial_open_failed")
	ErrConfigFailed  = errors.ErrorCode("serial_config_failed")
	ErrReadFailed    = errors.ErrorCode("serial_read_failed")
	ErrListFailed    = errors.ErrorCode("serial_list_failed")
	ErrCloseFailed   = errors.ErrorCode("serial_close_failed")
	ErrAlreadyClosed = errors.ErrorCode("serial_already_closed")
)
