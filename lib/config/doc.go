// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agentreg configuration.
//
// Configuration comes from a single file named by the AGENTREG_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no discovery and no search path. Files ending
// in .json or .jsonc are parsed as JSON with comments and trailing
// commas; everything else is YAML.
//
// The file may carry development, staging, and production sections
// that override base values when [Config].Environment matches.
// Production without an explicit section rejects registrations that
// arrive with partial evidence.
//
// After loading, ${HOME}, ${AGENTREG_ROOT}, and ${VAR:-default}
// patterns in path fields are expanded. [Config.Validate] reports
// every problem at once.
//
// This package depends on no other agentreg packages.
package config
