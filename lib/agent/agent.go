// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent manages the Ed25519 identities agents sign with.
//
// An agent's identifier is the agent-domain hash of its public key
// (see address.OfAgentKey). The private key never leaves this package
// except through [Identity.Sign]. Key files are deterministic CBOR
// written atomically with mode 0600.
package agent

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/codec"
)

// Identity is an agent's signing keypair.
type Identity struct {
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// Generate creates a new identity from random (crypto/rand if nil).
func Generate(random io.Reader) (*Identity, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("generating agent key: %w", err)
	}
	return &Identity{publicKey: publicKey, privateKey: privateKey}, nil
}

// FromSeed derives an identity from a 32-byte Ed25519 seed. Tests use
// this for reproducible agents.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("agent seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	return &Identity{
		publicKey:  privateKey.Public().(ed25519.PublicKey),
		privateKey: privateKey,
	}, nil
}

// PublicKey returns the identity's public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.publicKey
}

// Address returns the agent identifier.
func (id *Identity) Address() address.Address {
	return address.OfAgentKey(id.publicKey)
}

// Sign signs message with the identity's private key.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.privateKey, message)
}

// keyFile is the on-disk form of an identity.
type keyFile struct {
	Version int    `cbor:"version"`
	Seed    []byte `cbor:"seed"`
}

const keyFileVersion = 1

// Save writes the identity to path atomically with mode 0600. The
// parent directory is created if needed.
func Save(path string, id *Identity) error {
	data, err := codec.Marshal(keyFile{Version: keyFileVersion, Seed: id.privateKey.Seed()})
	if err != nil {
		return fmt.Errorf("encoding key file: %w", err)
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating key directory %s: %w", directory, err)
	}

	tmpFile, err := os.CreateTemp(directory, ".agent-key-*")
	if err != nil {
		return fmt.Errorf("creating temp key file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(0o600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("restricting key file permissions: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming key file to %s: %w", path, err)
	}

	success = true
	return nil
}

// Load reads an identity written by Save.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var file keyFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding key file %s: %w", path, err)
	}
	if file.Version != keyFileVersion {
		return nil, fmt.Errorf("key file %s has version %d, want %d", path, file.Version, keyFileVersion)
	}

	id, err := FromSeed(file.Seed)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return id, nil
}

// LoadOrGenerate loads the identity at path, generating and saving a
// new one if the file does not exist. The boolean reports whether a
// new identity was created.
func LoadOrGenerate(path string) (*Identity, bool, error) {
	id, err := Load(path)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	id, err = Generate(nil)
	if err != nil {
		return nil, false, err
	}
	if err := Save(path, id); err != nil {
		return nil, false, err
	}
	return id, true, nil
}
