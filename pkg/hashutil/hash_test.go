// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package hashutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Stable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	data := bytes.Repeat([]byte("linkarr"), 50_000)
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	require.NoError(t, os.WriteFile(a, data, 0o644))
	require.NoError(t, os.WriteFile(b, data, 0o644))

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Len(t, fa, 16)
	assert.Equal(t, fa, fb)
	assert.True(t, Equal(fa, fb))
}

func TestFingerprint_DetectsTailChange(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0x01}, 3*SampleSize)
	before, err := FingerprintReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	data[len(data)-1] = 0x02
	after, err := FingerprintReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestFingerprint_SmallAndEmpty(t *testing.T) {
	t.Parallel()

	small, err := FingerprintReader(bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)
	empty, err := FingerprintReader(bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.NotEqual(t, small, empty)

	_, err = Fingerprint(filepath.Join(t.TempDir(), "missing.mkv"))
	require.Error(t, err)
}

func TestEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, Equal("ABCdef", " abcdef "))
	assert.False(t, Equal("", ""))
	assert.False(t, Equal("abc", "abd"))
}
