// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for claude-chat commands.
//
// STANDARDIZED PATTERN:
//   - Commands return errors, they do not print and return nil
//   - Execute displays the error once and maps it to an exit code
//   - Errors already shown to the user (session failures) are not repeated

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/claude-chat/internal/anthropic"
	"github.com/jeranaias/claude-chat/internal/config"
	"github.com/jeranaias/claude-chat/internal/session"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the API rejected the key
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitRateLimitError indicates the API kept refusing for load or rate limits
	ExitRateLimitError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// MissingKeyHint follows the missing-key error.
const MissingKeyHint = "Please set it with: export ANTHROPIC_API_KEY='your-api-key'"

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "usage", "config")
	Action  string // Action being performed (e.g., "show", "init")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{
		Field:   argName,
		Reason:  "required argument missing",
		Example: usage,
	}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w in the standard format. Session failures were
// already reported inline and are skipped.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var sessErr *session.SessionError
	if errors.As(err, &sessErr) {
		return
	}

	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)
	if errors.Is(err, anthropic.ErrNotConfigured) {
		fmt.Fprintln(w, MissingKeyHint)
	}
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var configErrs config.ValidateErrors
	var netErr net.Error
	switch {
	case errors.As(err, &validationErr), errors.Is(err, anthropic.ErrInvalidRequest):
		return ExitUsageError
	case errors.Is(err, anthropic.ErrNotConfigured), errors.As(err, &configErrs), errors.Is(err, errConfigLoad):
		return ExitConfigError
	case errors.Is(err, anthropic.ErrAuthFailed):
		return ExitAuthError
	case errors.Is(err, anthropic.ErrRateLimited), errors.Is(err, anthropic.ErrOverloaded):
		return ExitRateLimitError
	case errors.Is(err, anthropic.ErrModelNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}
	return ExitGeneralError
}

// errConfigLoad marks failures reading or decoding the config file.
var errConfigLoad = errors.New("config error")
