// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package hashutil computes cheap content fingerprints for media files.
// Media files are large, so only the head and tail are hashed together
// with the size. Two files with the same fingerprint are treated as the
// same content for move detection.
package hashutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SampleSize is the number of bytes read from each end of the file.
const SampleSize = 64 * 1024

// Fingerprint hashes the first and last SampleSize bytes of path and its size.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	return FingerprintReader(f, info.Size())
}

// FingerprintReader is Fingerprint over an io.ReaderAt of known size.
func FingerprintReader(r io.ReaderAt, size int64) (string, error) {
	h := xxhash.New()
	fmt.Fprintf(h, "%d:", size)

	buf := make([]byte, SampleSize)

	head := min(size, SampleSize)
	if head > 0 {
		if _, err := r.ReadAt(buf[:head], 0); err != nil && err != io.EOF {
			return "", fmt.Errorf("read head: %w", err)
		}
		_, _ = h.Write(buf[:head])
	}

	if size > SampleSize {
		tailStart := max(size-SampleSize, SampleSize)
		tail := size - tailStart
		if _, err := r.ReadAt(buf[:tail], tailStart); err != nil && err != io.EOF {
			return "", fmt.Errorf("read tail: %w", err)
		}
		_, _ = h.Write(buf[:tail])
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Normalize canonicalizes a stored fingerprint for comparison.
func Normalize(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// Equal reports whether two fingerprints are known and identical.
func Equal(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	return a != "" && a == b
}
