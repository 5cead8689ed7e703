// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package address implements content addressing for agentreg.
//
// An [Address] is a 32-byte BLAKE3 digest computed in keyed mode with a
// per-domain key. Four domains exist: entries (users and anchors), chain
// headers, links, and agent public keys. Domain separation guarantees
// that the same bytes hashed in two roles produce unrelated addresses,
// so an agent identifier can never be confused with a record address.
//
// The canonical text form is 64 lowercase hex characters ([Format],
// [Parse]). User-facing output uses the short form from [Short]: a
// domain prefix (ent-, hdr-, lnk-, agt-) followed by the first 12 hex
// characters. Short forms are lossy and are never used as keys.
package address
