package errors

import (
	"fmt"
	"testing"
)

func TestCADError_Error(t *testing.T) {
	err := &CADError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "block not found: 3",
	}

	expected := "NOT_FOUND: block not found: 3"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("size must be non-negative")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "size must be non-negative" {
		t.Errorf("Message = %q, want %q", err.Message, "size must be non-negative")
	}
}

func TestNewUnknownCommand(t *testing.T) {
	err := NewUnknownCommand("fly")

	if err.Code != ErrUnknownCommand {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnknownCommand)
	}
	if err.Details["command"] != "fly" {
		t.Errorf("Details[command] = %v, want %q", err.Details["command"], "fly")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound(42)

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != 42 {
		t.Errorf("Details[id] = %v, want 42", err.Details["id"])
	}
}

func TestPluginErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    *CADError
		code   ErrorCode
		status int
	}{
		{"not found", NewPluginNotFound("/x.so", fmt.Errorf("no such file")), ErrPluginNotFound, 404},
		{"load failed", NewPluginLoadFailed("/x.so", fmt.Errorf("invalid ELF header")), ErrPluginLoadFailed, 422},
		{"symbol", NewPluginSymbolNotFound("/x.so", "RunPlugin"), ErrPluginSymbolNotFound, 422},
		{"signature", NewPluginBadSignature("/x.so", "RunPlugin", "func()"), ErrPluginBadSignature, 422},
		{"panicked", NewPluginPanicked("/x.so", "boom"), ErrPluginPanicked, 500},
		{"unsupported", NewPluginUnsupported("/x.so"), ErrPluginUnsupported, 501},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Details["path"] != "/x.so" {
				t.Errorf("Details[path] = %v, want /x.so", tt.err.Details["path"])
			}
		})
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	err := NewNothingToUndo()

	if !Is(err, ErrNothingToUndo) {
		t.Error("Is() = false for matching code")
	}
	if Is(err, ErrNothingToRedo) {
		t.Error("Is() = true for different code")
	}
	if Is(fmt.Errorf("plain"), ErrInternal) {
		t.Error("Is() = true for non-CADError")
	}
	if !Is(fmt.Errorf("wrapped: %w", err), ErrNothingToUndo) {
		t.Error("Is() = false for wrapped CADError")
	}
	if Is(nil, ErrInternal) {
		t.Error("Is() = true for nil")
	}
}
