// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entrystore

import (
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
)

// missing reports an absent link endpoint; it unwraps to ErrNotFound.
func missing(end string, addr address.Address) error {
	return fmt.Errorf("link %s %s: %w", end, address.Short(addr), ErrNotFound)
}
