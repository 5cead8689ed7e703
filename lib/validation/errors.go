// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
)

var (
	ErrImmutable            = errors.New("registrations cannot be modified or deleted")
	ErrNameEmpty            = errors.New("name is empty")
	ErrNameTooLong          = errors.New("name is too long")
	ErrNameMalformed        = errors.New("name is malformed")
	ErrAuthorship           = errors.New("entry agent is not its author")
	ErrDuplicateAgent       = errors.New("agent already registered")
	ErrInsufficientEvidence = errors.New("insufficient evidence to check uniqueness")
	ErrMalformed            = errors.New("malformed proposal")
)

// Reason is the machine-readable cause of a rejection.
type Reason string

const (
	ReasonImmutable            Reason = "immutable"
	ReasonNameEmpty            Reason = "name_empty"
	ReasonNameTooLong          Reason = "name_too_long"
	ReasonNameMalformed        Reason = "name_malformed"
	ReasonAuthorship           Reason = "authorship"
	ReasonDuplicateAgent       Reason = "duplicate_agent"
	ReasonInsufficientEvidence Reason = "insufficient_evidence"
	ReasonMalformed            Reason = "malformed"
)

var sentinels = map[Reason]error{
	ReasonImmutable:            ErrImmutable,
	ReasonNameEmpty:            ErrNameEmpty,
	ReasonNameTooLong:          ErrNameTooLong,
	ReasonNameMalformed:        ErrNameMalformed,
	ReasonAuthorship:           ErrAuthorship,
	ReasonDuplicateAgent:       ErrDuplicateAgent,
	ReasonInsufficientEvidence: ErrInsufficientEvidence,
	ReasonMalformed:            ErrMalformed,
}

// Rejection is a terminal refusal of one proposal. It is never worth
// retrying: the same proposal against the same evidence is refused
// again.
type Rejection struct {
	Reason Reason

	// Entry is the address of the rejected entry, zero when the
	// rejection happened before an entry was built.
	Entry address.Address

	// Detail is optional human-readable context.
	Detail string
}

func (r *Rejection) Error() string {
	message := "registration rejected: " + r.Unwrap().Error()
	if r.Detail != "" {
		message += " (" + r.Detail + ")"
	}
	return message
}

// Unwrap returns the sentinel error for the reason.
func (r *Rejection) Unwrap() error {
	if sentinel, ok := sentinels[r.Reason]; ok {
		return sentinel
	}
	return fmt.Errorf("rejected: %s", r.Reason)
}

// IsRejection reports whether err is or wraps a *Rejection.
func IsRejection(err error) bool {
	var rejection *Rejection
	return errors.As(err, &rejection)
}

func reject(reason Reason, entry address.Address, detail string) *Rejection {
	return &Rejection{Reason: reason, Entry: entry, Detail: detail}
}
