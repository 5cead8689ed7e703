// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/codec"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
)

// Source is what Export reads from.
type Source interface {
	entrystore.Store
	entrystore.ChainStore
	entrystore.Dumper
}

// ExportOptions controls Export.
type ExportOptions struct {
	Compression Compression

	// Recipients seals the snapshot with age when non-empty.
	Recipients []age.Recipient

	// EntriesOnly exports the anchor, the registrations linked from
	// it, and only the headers that created those registrations.
	EntriesOnly bool

	// Now stamps the meta frame. Defaults to time.Now.
	Now func() time.Time
}

// Stats counts what Export wrote.
type Stats struct {
	Entries int
	Headers int
	Links   int
}

// Export writes a snapshot of source to w.
func Export(ctx context.Context, w io.Writer, source Source, options ExportOptions) (Stats, error) {
	selection, err := selectContent(ctx, source, options.EntriesOnly)
	if err != nil {
		return Stats{}, err
	}

	sink := w
	var sealer io.WriteCloser
	if len(options.Recipients) > 0 {
		sealer, err = age.Encrypt(w, options.Recipients...)
		if err != nil {
			return Stats{}, fmt.Errorf("sealing snapshot: %w", err)
		}
		sink = sealer
	}

	if _, err := io.WriteString(sink, magic); err != nil {
		return Stats{}, err
	}
	if _, err := sink.Write([]byte{formatVersion, byte(options.Compression)}); err != nil {
		return Stats{}, err
	}

	body, err := compressor(sink, options.Compression)
	if err != nil {
		return Stats{}, err
	}
	encoder := codec.NewEncoder(body)

	now := time.Now
	if options.Now != nil {
		now = options.Now
	}
	if err := writeFrame(encoder, frameMeta, Meta{Created: now().UTC(), EntriesOnly: options.EntriesOnly}); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, addr := range selection.entries {
		data, err := source.Get(ctx, addr)
		if err != nil {
			return stats, fmt.Errorf("reading entry %s: %w", address.Short(addr), err)
		}
		if err := writeFrame(encoder, frameEntry, data); err != nil {
			return stats, err
		}
		stats.Entries++
	}
	for _, header := range selection.headers {
		if err := writeFrame(encoder, frameHeader, header); err != nil {
			return stats, err
		}
		stats.Headers++
	}
	for _, link := range selection.links {
		if err := writeFrame(encoder, frameLink, link); err != nil {
			return stats, err
		}
		stats.Links++
	}
	if err := writeFrame(encoder, frameEnd, end(stats)); err != nil {
		return stats, err
	}

	if err := body.Close(); err != nil {
		return stats, fmt.Errorf("flushing compressor: %w", err)
	}
	if sealer != nil {
		if err := sealer.Close(); err != nil {
			return stats, fmt.Errorf("finalizing seal: %w", err)
		}
	}
	return stats, nil
}

type selection struct {
	entries []address.Address
	headers []chain.Header
	links   []entrystore.LinkHandle
}

func selectContent(ctx context.Context, source Source, entriesOnly bool) (selection, error) {
	var result selection
	included := make(map[address.Address]bool)

	if entriesOnly {
		targets, err := anchor.Targets(ctx, source)
		if err != nil {
			return selection{}, err
		}
		if _, err := source.Get(ctx, anchor.Address()); err == nil {
			result.entries = append(result.entries, anchor.Address())
			included[anchor.Address()] = true
		}
		for _, target := range targets {
			if !included[target] {
				result.entries = append(result.entries, target)
				included[target] = true
			}
		}
	} else {
		addresses, err := source.Addresses(ctx)
		if err != nil {
			return selection{}, err
		}
		result.entries = addresses
		for _, addr := range addresses {
			included[addr] = true
		}
	}

	authors, err := source.Authors(ctx)
	if err != nil {
		return selection{}, err
	}
	for _, author := range authors {
		headers, err := source.Headers(ctx, author)
		if err != nil {
			return selection{}, err
		}
		for _, header := range headers {
			if entriesOnly && !included[header.Entry] {
				continue
			}
			result.headers = append(result.headers, header)
		}
	}

	links, err := source.AllLinks(ctx)
	if err != nil {
		return selection{}, err
	}
	for _, link := range links {
		if included[link.Base] && included[link.Target] {
			result.links = append(result.links, link)
		}
	}
	return result, nil
}

func writeFrame(encoder *codec.Encoder, frameType string, body any) error {
	data, err := codec.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", frameType, err)
	}
	if err := encoder.Encode(frame{Type: frameType, Body: data}); err != nil {
		return fmt.Errorf("writing %s frame: %w", frameType, err)
	}
	return nil
}
