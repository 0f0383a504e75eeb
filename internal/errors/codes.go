package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig      ErrorCode = "invalid_configuration"
	ErrReadConfig         ErrorCode = "read_config_failed"
	ErrBindFlags          ErrorCode = "bind_flags_failed"
	ErrWatchConfig        ErrorCode = "watch_config_failed"
	ErrInvalidLogLevel    ErrorCode = "invalid_log_level"
	ErrInvalidBaudRate    ErrorCode = "invalid_baud_rate"
	ErrInvalidReadTimeout ErrorCode = "invalid_read_timeout"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Application errors
	ErrNoProfile    ErrorCode = "no_profile_selected"
	ErrNoMatch      ErrorCode = "no_matching_profile"
	ErrRunFailed    ErrorCode = "run_failed"
	ErrMissingInput ErrorCode = "missing_input"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrInvalidConfig:      "Invalid configuration",
	ErrReadConfig:         "Failed to read config file",
	ErrBindFlags:          "Failed to bind flags",
	ErrWatchConfig:        "Failed to watch config file",
	ErrInvalidLogLevel:    "Invalid log level (invalid_log_level)",
	ErrInvalidBaudRate:    "Invalid baud rate",
	ErrInvalidReadTimeout: "Invalid read timeout",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrAlreadyRunning:     "Another acquisition run is already active",
	ErrNoProfile:          "No calibration profile selected",
	ErrNoMatch:            "No calibration profile matches the given torque",
	ErrRunFailed:          "Acquisition run failed",
	ErrMissingInput:       "No serial port or input file given",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
