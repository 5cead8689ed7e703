// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
)

// ErrNotRegistered is returned by Repair and FindByAgent when the agent
// has no user record.
var ErrNotRegistered = errors.New("agent is not registered")

// PartialRegistrationError reports a user record that was accepted and
// committed but could not be attached to the anchor. The registration
// is valid; it is just not discoverable until Repair succeeds.
type PartialRegistrationError struct {
	Address address.Address
	Err     error
}

func (e *PartialRegistrationError) Error() string {
	return fmt.Sprintf("user %s committed but not attached to the anchor: %v", address.Short(e.Address), e.Err)
}

func (e *PartialRegistrationError) Unwrap() error {
	return e.Err
}
