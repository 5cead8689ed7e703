// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by every
// agentreg package that produces content-addressed bytes.
//
// Records, chain headers, key files, and snapshot frames are all CBOR.
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. This
// is load-bearing: an address is the BLAKE3 hash of the encoded bytes,
// so two replicas encoding the same User must agree byte for byte.
//
// For buffer-oriented operations (records, headers, key files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (snapshots):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// Types that are only ever CBOR (records, headers, frames) use `cbor`
// tags. Types that also appear in CLI --json output use `json` tags;
// fxamacker/cbor falls back to them when no `cbor` tag is present.
// Never put both on one field.
package codec
