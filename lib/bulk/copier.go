// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package bulk copies whole configuration files to and from portable
// payloads, for features the store does not model node by node.
//
// A payload carries the file base64 encoded, optionally compressed
// with zstd or lz4 and sealed to age recipients, together with its size
// and BLAKE3 digest so that a restore can verify what it writes.
package bulk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"github.com/zeebo/blake3"
)

// DefaultFileMode is used for restored files that did not exist.
const DefaultFileMode fs.FileMode = 0644

// Options configures a Copier.
type Options struct {
	// Compression applied on save. Restore accepts any algorithm.
	Compression Compression

	// Recipients are age public keys (age1...). When set, saved
	// payloads are sealed.
	Recipients []string

	// Identities open sealed payloads on restore.
	Identities []age.Identity

	Logger *slog.Logger
}

// Copier implements ReadAsPortable and WriteFromPortable.
type Copier struct {
	compression Compression
	recipients  []age.Recipient
	identities  []age.Identity
	logger      *slog.Logger
}

// IntegrityError reports a restored file whose size or digest does
// not match its payload.
type IntegrityError struct {
	Path   string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("payload for %s failed verification: %s", e.Path, e.Detail)
}

// New validates options and builds a Copier.
func New(options Options) (*Copier, error) {
	compression, err := ParseCompression(string(options.Compression))
	if err != nil {
		return nil, err
	}
	copier := &Copier{
		compression: compression,
		identities:  options.Identities,
		logger:      options.Logger,
	}
	if copier.logger == nil {
		copier.logger = slog.New(slog.DiscardHandler)
	}
	for _, key := range options.Recipients {
		recipient, err := parseRecipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		copier.recipients = append(copier.recipients, recipient)
	}
	return copier, nil
}

// parseRecipient accepts age1... keys and SSH public keys
// (ssh-ed25519, ssh-rsa).
func parseRecipient(key string) (age.Recipient, error) {
	if strings.HasPrefix(key, "ssh-") {
		return agessh.ParseRecipient(key)
	}
	return age.ParseX25519Recipient(key)
}

// LoadIdentities reads identities from an age key file or an
// unencrypted SSH private key.
func LoadIdentities(path string) ([]age.Identity, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(content), []byte("-----BEGIN")) {
		identity, err := agessh.ParseIdentity(content)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH identity in %s: %w", path, err)
		}
		return []age.Identity{identity}, nil
	}
	identities, err := age.ParseIdentities(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing identities in %s: %w", path, err)
	}
	return identities, nil
}

// ReadAsPortable reads the file at path into a payload.
func (c *Copier) ReadAsPortable(ctx context.Context, path string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	digest := blake3.Sum256(content)
	payload := &Payload{
		Size:   len(content),
		Digest: hex.EncodeToString(digest[:]),
	}

	body := content
	algorithm := c.compression
	compressed, err := compress(content, algorithm)
	switch {
	case errors.Is(err, errIncompressible):
		algorithm = CompressionNone
	case err != nil:
		return nil, fmt.Errorf("compressing %s: %w", path, err)
	default:
		body = compressed
	}
	if algorithm != CompressionNone {
		payload.Compression = string(algorithm)
	}

	if len(c.recipients) > 0 {
		body, err = c.seal(body)
		if err != nil {
			return nil, fmt.Errorf("sealing %s: %w", path, err)
		}
		payload.Sealed = true
	}

	payload.Base64Encoded = base64.StdEncoding.EncodeToString(body)
	c.logger.Debug("file read as payload",
		"path", path,
		"size", len(content),
		"compression", algorithm,
		"sealed", payload.Sealed,
	)
	return payload, nil
}

// WriteFromPortable verifies payload and replaces the file at path
// with its content. The file is written to a temporary sibling and
// renamed into place, keeping the mode of the file it replaces.
func (c *Copier) WriteFromPortable(ctx context.Context, path string, payload *Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := c.open(path, payload)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, content); err != nil {
		return err
	}
	c.logger.Debug("file written from payload", "path", path, "size", len(content))
	return nil
}

func (c *Copier) open(path string, payload *Payload) ([]byte, error) {
	body, err := base64.StdEncoding.DecodeString(payload.Base64Encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding payload for %s: %w", path, err)
	}
	if payload.Sealed {
		body, err = c.unseal(body)
		if err != nil {
			return nil, fmt.Errorf("opening sealed payload for %s: %w", path, err)
		}
	}
	algorithm, err := ParseCompression(payload.Compression)
	if err != nil {
		return nil, fmt.Errorf("payload for %s: %w", path, err)
	}
	content, err := decompress(body, algorithm, payload.Size)
	if err != nil {
		return nil, fmt.Errorf("payload for %s: %w", path, err)
	}

	if payload.Size != 0 && len(content) != payload.Size {
		return nil, &IntegrityError{Path: path, Detail: fmt.Sprintf("size %d, expected %d", len(content), payload.Size)}
	}
	if payload.Digest != "" {
		digest := blake3.Sum256(content)
		if hex.EncodeToString(digest[:]) != payload.Digest {
			return nil, &IntegrityError{Path: path, Detail: "digest mismatch"}
		}
	}
	return content, nil
}

func (c *Copier) seal(plaintext []byte) ([]byte, error) {
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, c.recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

func (c *Copier) unseal(ciphertext []byte) ([]byte, error) {
	if len(c.identities) == 0 {
		return nil, fmt.Errorf("no age identity configured")
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), c.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return io.ReadAll(reader)
}

func writeAtomic(path string, content []byte) error {
	mode := DefaultFileMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".srr-*")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if _, err := temporary.Write(content); err != nil {
		temporary.Close()
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Chmod(mode); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		return err
	}
	return os.Rename(temporaryPath, path)
}
