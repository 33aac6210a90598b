package domain

import (
	"fmt"
	"strconv"
)

// ConfigReason classifies a configuration defect.
type ConfigReason string

const (
	ReasonEmptyFontList     ConfigReason = "EMPTY_FONT_LIST"
	ReasonInvalidFontEntry  ConfigReason = "INVALID_FONT_ENTRY"
	ReasonInvalidOutputPath ConfigReason = "INVALID_OUTPUT_PATH"
	ReasonInvalidFontSize   ConfigReason = "INVALID_FONT_SIZE"
	ReasonInvalidMount      ConfigReason = "INVALID_MOUNT"
	ReasonInvalidOption     ConfigReason = "INVALID_OPTION"
)

// ConfigurationError reports client input that failed validation. It is
// raised before any server or browser is acquired.
type ConfigurationError struct {
	Reason ConfigReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
	Err    error        `json:"-"`
}

// Error formats the reason with optional detail.
func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Reason, e.Detail)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ServerBindError reports that the content server could not listen on Port.
type ServerBindError struct {
	Port int   `json:"port"`
	Err  error `json:"-"`
}

// Error formats the port and the bind failure.
func (e *ServerBindError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return "bind port " + strconv.Itoa(e.Port)
	}
	return fmt.Sprintf("bind port %d: %v", e.Port, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ServerBindError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RenderCause classifies a rendering stage failure.
type RenderCause string

const (
	CauseNavigationFailed RenderCause = "NAVIGATION_FAILED"
	CauseScriptThrew      RenderCause = "SCRIPT_THREW"
	CauseFontLoadFailed   RenderCause = "FONT_LOAD_FAILED"
	CauseTimeout          RenderCause = "TIMEOUT"
	CauseMalformedResult  RenderCause = "MALFORMED_RESULT"
)

// RenderingError reports a failed measurement stage. FontFamily is set for
// CauseFontLoadFailed.
type RenderingError struct {
	Cause      RenderCause `json:"cause"`
	FontFamily string      `json:"fontFamily,omitempty"`
	Err        error       `json:"-"`
}

// Error formats the cause, the failing family and the underlying error.
func (e *RenderingError) Error() string {
	if e == nil {
		return ""
	}
	msg := "rendering failed: " + string(e.Cause)
	if e.FontFamily != "" {
		msg += "(" + strconv.Quote(e.FontFamily) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *RenderingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FontLoadFailed builds the rendering error for a family that did not load.
func FontLoadFailed(family string, err error) *RenderingError {
	return &RenderingError{Cause: CauseFontLoadFailed, FontFamily: family, Err: err}
}

// PersistenceError reports an I/O failure while writing the artifact.
type PersistenceError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Error formats the destination path and the I/O failure.
func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
