// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its
// own output (e.g., "validate-name" printing the reason a name is
// invalid).
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Process exit codes by error category. Transient failures use
// EX_TEMPFAIL from sysexits.h so scripts can tell "try again" apart.
const (
	ExitInternal   = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitConflict   = 4
	ExitTransient  = 75
)

// ExitCode returns the process exit status for err: 0 for nil, the
// code of an [ExitError], the category code of a [ToolError], and
// ExitInternal otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code
	}
	var toolError *ToolError
	if errors.As(err, &toolError) {
		switch toolError.Category {
		case CategoryValidation:
			return ExitValidation
		case CategoryNotFound:
			return ExitNotFound
		case CategoryConflict:
			return ExitConflict
		case CategoryTransient:
			return ExitTransient
		}
	}
	return ExitInternal
}
