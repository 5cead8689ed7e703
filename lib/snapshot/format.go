// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/agentreg/lib/codec"
)

const (
	magic         = "AGRS"
	formatVersion = 1

	// ageMagic opens every age-encrypted file.
	ageMagic = "age-encryption.org/v1"
)

var (
	// ErrNotSnapshot means the stream does not start with the
	// snapshot magic.
	ErrNotSnapshot = errors.New("not a snapshot")

	// ErrTruncated means the stream ended before its end frame.
	ErrTruncated = errors.New("snapshot is truncated")

	// ErrSealed means the snapshot is encrypted and no identity was
	// supplied.
	ErrSealed = errors.New("snapshot is sealed; an age identity is required")
)

// Compression identifies the body compression. The values are stored
// in the snapshot header and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, or zstd)", name)
	}
}

// compressor wraps w. Closing the result flushes the compressor but
// does not close w.
func compressor(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

// decompressor wraps r. The returned close function releases decoder
// resources.
func decompressor(r io.Reader, compression Compression) (io.Reader, func(), error) {
	switch compression {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return decoder, decoder.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Frame types.
const (
	frameMeta   = "meta"
	frameEntry  = "entry"
	frameHeader = "header"
	frameLink   = "link"
	frameEnd    = "end"
)

type frame struct {
	Type string           `cbor:"type"`
	Body codec.RawMessage `cbor:"body"`
}

// Meta describes a snapshot.
type Meta struct {
	Created     time.Time `cbor:"created"`
	EntriesOnly bool      `cbor:"entries_only"`
}

// end carries counts so a reader can tell a complete stream from one
// cut at a frame boundary.
type end struct {
	Entries int `cbor:"entries"`
	Headers int `cbor:"headers"`
	Links   int `cbor:"links"`
}
