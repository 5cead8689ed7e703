// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"filippo.io/age"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/codec"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/replica"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

// ImportOptions controls Import.
type ImportOptions struct {
	// Identities opens sealed snapshots.
	Identities []age.Identity

	Logger *slog.Logger
}

// Report counts the outcome of an Import.
type Report struct {
	Meta Meta

	// Accepted entries passed validation (including duplicates of
	// entries already held).
	Accepted int

	// Provisional entries were accepted with entry-only evidence.
	Provisional int

	// Duplicates were already in the target store.
	Duplicates int

	// Rejected entries failed validation or conflicted with a stored
	// chain.
	Rejected int

	// Skipped items could not be processed: headers without their
	// entry, entries without a header, links to absent entries.
	Skipped int

	Links int
}

// contents is a fully read snapshot.
type contents struct {
	meta    Meta
	entries map[address.Address][]byte
	order   []address.Address
	chains  map[address.Address][]chain.Header
	links   []entrystore.LinkHandle
}

// Import reads a snapshot from r and offers its contents to target.
// Authored entries are received in chain order through the replica's
// validation. The canonical anchor is published. Links are recreated
// where both ends are present afterwards.
func Import(ctx context.Context, r io.Reader, target *replica.Replica, options ImportOptions) (Report, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	snapshot, err := read(r, options.Identities)
	if err != nil {
		return Report{}, err
	}
	report := Report{Meta: snapshot.meta}

	referenced := make(map[address.Address]bool)
	authors := make([]address.Address, 0, len(snapshot.chains))
	for author := range snapshot.chains {
		authors = append(authors, author)
	}
	slices.SortFunc(authors, func(a, b address.Address) int { return bytes.Compare(a[:], b[:]) })

	for _, author := range authors {
		headers := snapshot.chains[author]
		slices.SortFunc(headers, func(a, b chain.Header) int {
			switch {
			case a.Seq < b.Seq:
				return -1
			case a.Seq > b.Seq:
				return 1
			}
			return 0
		})

		for i, header := range headers {
			referenced[header.Entry] = true
			data, ok := snapshot.entries[header.Entry]
			if !ok {
				report.Skipped++
				continue
			}

			incoming := replica.Incoming{Header: header, Entry: data}
			if !snapshot.meta.EntriesOnly {
				incoming.Package = packageFor(headers[:i], header, snapshot.entries)
			}

			acceptance, err := target.Receive(ctx, incoming)
			switch {
			case err == nil:
			case validation.IsRejection(err), errors.Is(err, entrystore.ErrChainFork), errors.Is(err, chain.ErrBrokenChain):
				logger.Info("snapshot entry rejected", "entry", address.Short(header.Entry), "error", err)
				report.Rejected++
				continue
			case isDecodeError(err):
				logger.Warn("snapshot entry malformed", "entry", address.Short(header.Entry), "error", err)
				report.Skipped++
				continue
			default:
				return report, err
			}

			report.Accepted++
			if !acceptance.FullEvidence {
				report.Provisional++
			}
			if acceptance.Duplicate {
				report.Duplicates++
			}
		}
	}

	for _, addr := range snapshot.order {
		if referenced[addr] {
			continue
		}
		if !anchor.IsCanonical(snapshot.entries[addr]) {
			logger.Debug("snapshot entry has no header", "entry", address.Short(addr))
			report.Skipped++
			continue
		}
		if _, err := target.Publish(ctx, record.AnchorEntry()); err != nil {
			return report, err
		}
		report.Accepted++
	}

	store := target.Store()
	for _, link := range snapshot.links {
		_, err := store.Link(ctx, link.Base, link.Target, link.Type, link.Tag)
		if errors.Is(err, entrystore.ErrNotFound) {
			report.Skipped++
			continue
		}
		if err != nil {
			return report, err
		}
		report.Links++
	}

	logger.Info("snapshot imported",
		"accepted", report.Accepted,
		"provisional", report.Provisional,
		"rejected", report.Rejected,
		"skipped", report.Skipped,
		"links", report.Links,
	)
	return report, nil
}

// packageFor assembles the chain package for header from the
// snapshot's earlier headers by the same author, when they form a
// complete prefix.
func packageFor(prior []chain.Header, header chain.Header, entries map[address.Address][]byte) *chain.Package {
	if uint64(len(prior)) != header.Seq {
		return nil
	}
	pkg := &chain.Package{Headers: slices.Clone(prior)}
	for _, h := range prior {
		if h.Kind != record.KindUser {
			continue
		}
		if data, ok := entries[h.Entry]; ok {
			pkg.Entries = append(pkg.Entries, data)
		}
	}
	return pkg
}

func isDecodeError(err error) bool {
	var decodeError *record.DecodeError
	return errors.As(err, &decodeError)
}

// read parses a whole snapshot stream.
func read(r io.Reader, identities []age.Identity) (contents, error) {
	buffered := bufio.NewReader(r)
	// A short stream is not sealed; the header read below reports it.
	prefix, _ := buffered.Peek(len(ageMagic))
	var source io.Reader = buffered
	if string(prefix) == ageMagic {
		if len(identities) == 0 {
			return contents{}, ErrSealed
		}
		opened, err := age.Decrypt(buffered, identities...)
		if err != nil {
			return contents{}, fmt.Errorf("opening sealed snapshot: %w", err)
		}
		source = opened
	}

	header := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(source, header); err != nil {
		return contents{}, fmt.Errorf("%w: %w", ErrNotSnapshot, err)
	}
	if string(header[:len(magic)]) != magic {
		return contents{}, ErrNotSnapshot
	}
	if header[len(magic)] != formatVersion {
		return contents{}, fmt.Errorf("unsupported snapshot version %d", header[len(magic)])
	}

	body, closeBody, err := decompressor(source, Compression(header[len(magic)+1]))
	if err != nil {
		return contents{}, err
	}
	defer closeBody()

	result := contents{
		entries: make(map[address.Address][]byte),
		chains:  make(map[address.Address][]chain.Header),
	}
	decoder := codec.NewDecoder(body)
	var counts Stats
	for {
		var f frame
		if err := decoder.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return contents{}, ErrTruncated
			}
			return contents{}, fmt.Errorf("reading frame: %w", err)
		}

		switch f.Type {
		case frameMeta:
			if err := codec.Unmarshal(f.Body, &result.meta); err != nil {
				return contents{}, fmt.Errorf("meta frame: %w", err)
			}
		case frameEntry:
			var data []byte
			if err := codec.Unmarshal(f.Body, &data); err != nil {
				return contents{}, fmt.Errorf("entry frame: %w", err)
			}
			addr := record.AddressOfBytes(data)
			if _, seen := result.entries[addr]; !seen {
				result.order = append(result.order, addr)
			}
			result.entries[addr] = data
			counts.Entries++
		case frameHeader:
			var h chain.Header
			if err := codec.Unmarshal(f.Body, &h); err != nil {
				return contents{}, fmt.Errorf("header frame: %w", err)
			}
			author := h.AuthorAddress()
			result.chains[author] = append(result.chains[author], h)
			counts.Headers++
		case frameLink:
			var link entrystore.LinkHandle
			if err := codec.Unmarshal(f.Body, &link); err != nil {
				return contents{}, fmt.Errorf("link frame: %w", err)
			}
			result.links = append(result.links, link)
			counts.Links++
		case frameEnd:
			var trailer end
			if err := codec.Unmarshal(f.Body, &trailer); err != nil {
				return contents{}, fmt.Errorf("end frame: %w", err)
			}
			if Stats(trailer) != counts {
				return contents{}, fmt.Errorf("%w: end frame counts %+v, read %+v", ErrTruncated, Stats(trailer), counts)
			}
			return result, nil
		default:
			return contents{}, fmt.Errorf("unknown frame type %q", f.Type)
		}
	}
}
