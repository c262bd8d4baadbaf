package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a blockcad error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"         // 400
	ErrUnknownCommand       ErrorCode = "UNKNOWN_COMMAND"         // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"               // 404
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"          // 404
	ErrPluginNotFound       ErrorCode = "PLUGIN_NOT_FOUND"        // 404
	ErrPluginLoadFailed     ErrorCode = "PLUGIN_LOAD_FAILED"      // 422
	ErrPluginSymbolNotFound ErrorCode = "PLUGIN_SYMBOL_NOT_FOUND" // 422
	ErrPluginBadSignature   ErrorCode = "PLUGIN_BAD_SIGNATURE"    // 422
	ErrNothingToUndo        ErrorCode = "NOTHING_TO_UNDO"         // 409
	ErrNothingToRedo        ErrorCode = "NOTHING_TO_REDO"         // 409
	ErrPluginPanicked       ErrorCode = "PLUGIN_PANICKED"         // 500
	ErrPluginUnsupported    ErrorCode = "PLUGIN_UNSUPPORTED"      // 501
	ErrInternal             ErrorCode = "INTERNAL"                // 500
)

// CADError represents a structured error with code, status, and details.
type CADError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CADError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CADError {
	return &CADError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnknownCommand creates a 400 error for a command token the dispatcher does not know.
func NewUnknownCommand(token string) *CADError {
	return &CADError{
		Code:    ErrUnknownCommand,
		Status:  400,
		Message: fmt.Sprintf("unknown command: %s", token),
		Details: map[string]any{"command": token},
	}
}

// NewNotFound creates a 404 error for when a block cannot be found.
func NewNotFound(id int) *CADError {
	return &CADError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("block not found: %d", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *CADError {
	return &CADError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewPluginNotFound creates a 404 error when a plugin module cannot be opened.
func NewPluginNotFound(path string, cause error) *CADError {
	msg := fmt.Sprintf("plugin module not found: %s", path)
	if cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, cause)
	}
	return &CADError{
		Code:    ErrPluginNotFound,
		Status:  404,
		Message: msg,
		Details: map[string]any{"path": path},
	}
}

// NewPluginLoadFailed creates a 422 error when a plugin module exists but cannot
// be opened, e.g. a truncated or mismatched build.
func NewPluginLoadFailed(path string, cause error) *CADError {
	return &CADError{
		Code:    ErrPluginLoadFailed,
		Status:  422,
		Message: fmt.Sprintf("plugin module %s failed to load: %v", path, cause),
		Details: map[string]any{"path": path},
	}
}

// NewPluginSymbolNotFound creates a 422 error when the entry symbol is missing.
func NewPluginSymbolNotFound(path, symbol string) *CADError {
	return &CADError{
		Code:    ErrPluginSymbolNotFound,
		Status:  422,
		Message: fmt.Sprintf("plugin %s does not export %s", path, symbol),
		Details: map[string]any{"path": path, "symbol": symbol},
	}
}

// NewPluginBadSignature creates a 422 error when the entry symbol has the wrong type.
func NewPluginBadSignature(path, symbol, got string) *CADError {
	return &CADError{
		Code:    ErrPluginBadSignature,
		Status:  422,
		Message: fmt.Sprintf("plugin %s: %s has type %s", path, symbol, got),
		Details: map[string]any{"path": path, "symbol": symbol, "type": got},
	}
}

// NewPluginPanicked creates a 500 error when a plugin entry point panics.
func NewPluginPanicked(path string, recovered any) *CADError {
	return &CADError{
		Code:    ErrPluginPanicked,
		Status:  500,
		Message: fmt.Sprintf("plugin %s panicked: %v", path, recovered),
		Details: map[string]any{"path": path},
	}
}

// NewPluginUnsupported creates a 501 error on builds without plugin support.
func NewPluginUnsupported(path string) *CADError {
	return &CADError{
		Code:    ErrPluginUnsupported,
		Status:  501,
		Message: "native plugins are not supported on this platform",
		Details: map[string]any{"path": path},
	}
}

// NewNothingToUndo creates a 409 error when history is at its bottom.
func NewNothingToUndo() *CADError {
	return &CADError{
		Code:    ErrNothingToUndo,
		Status:  409,
		Message: "nothing to undo",
	}
}

// NewNothingToRedo creates a 409 error when history is at its top.
func NewNothingToRedo() *CADError {
	return &CADError{
		Code:    ErrNothingToRedo,
		Status:  409,
		Message: "nothing to redo",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CADError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CADError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a CADError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CADError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
