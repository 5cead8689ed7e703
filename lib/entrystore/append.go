// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entrystore

import (
	"bytes"
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
)

// checkAppend decides whether header can extend existing. It returns
// duplicate=true when the identical header is already at its sequence.
func checkAppend(existing []chain.Header, header chain.Header) (duplicate bool, err error) {
	if err := header.Verify(); err != nil {
		return false, err
	}

	length := uint64(len(existing))
	switch {
	case header.Seq < length:
		if sameHeader(existing[header.Seq], header) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s already has a different header at seq %d",
			ErrChainFork, address.Agent.Short(header.AuthorAddress()), header.Seq)
	case header.Seq > length:
		return false, fmt.Errorf("%w: seq %d appended to a chain of length %d",
			chain.ErrBrokenChain, header.Seq, length)
	}

	var last *chain.Header
	if length > 0 {
		last = &existing[length-1]
	}
	return false, chain.FollowsFrom(last, header)
}

func sameHeader(a, b chain.Header) bool {
	addressA, errA := a.Address()
	addressB, errB := b.Address()
	return errA == nil && errB == nil && addressA == addressB && bytes.Equal(a.Signature, b.Signature)
}
