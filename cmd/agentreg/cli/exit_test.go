// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), ExitInternal},
		{"exit error", &ExitError{Code: 9}, 9},
		{"validation", Validation("bad"), ExitValidation},
		{"not found", NotFound("gone"), ExitNotFound},
		{"conflict", Conflict("taken"), ExitConflict},
		{"transient", Transient("busy"), ExitTransient},
		{"internal", Internal("bug"), ExitInternal},
		{"wrapped", fmt.Errorf("register: %w", Conflict("taken")), ExitConflict},
	}
	for _, test := range tests {
		if got := ExitCode(test.err); got != test.want {
			t.Errorf("%s: ExitCode = %d, want %d", test.name, got, test.want)
		}
	}
}

func TestToolError(t *testing.T) {
	cause := errors.New("agent already registered")
	err := &ToolError{Category: CategoryConflict, Err: cause}
	if err.Error() != cause.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("ToolError does not unwrap")
	}

	hinted := NotFound("no registration").WithHint("Run 'agentreg register <name>'.")
	want := "no registration\n\nRun 'agentreg register <name>'."
	if hinted.Error() != want {
		t.Errorf("Error() = %q, want %q", hinted.Error(), want)
	}
	if hinted.Category != CategoryNotFound {
		t.Errorf("Category = %s", hinted.Category)
	}
}

func TestSetLogLevel(t *testing.T) {
	defer LogLevel.Set(slog.LevelInfo)

	if err := SetLogLevel("debug"); err != nil {
		t.Fatal(err)
	}
	if LogLevel.Level() != slog.LevelDebug {
		t.Errorf("level = %s, want DEBUG", LogLevel.Level())
	}
	if err := SetLogLevel("loud"); err == nil {
		t.Error("SetLogLevel accepted an unknown level")
	}
}
