// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package channel

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"
)

// TestPipeCmdBackendStreamsThroughDeflate exercises the PipeCmd backend as
// one stage of a streaming pipeline: a subprocess emits plain text, which a
// flate.Writer compresses before it reaches a File-backed Channel, and a
// flate.Reader decompresses it back out. Compression is explicitly out of
// scope for the core Channel/Serialize abstractions (spec §1 "does not
// compress"), so this lives purely as an end-to-end streaming test rather
// than a wired backend.
func TestPipeCmdBackendStreamsThroughDeflate(t *testing.T) {
	src := New()
	require.NoError(t, src.Open("PipeCmd://echo -n the quick brown fox", RdOnly, 0))
	defer src.Close()

	plain := make([]byte, 256)
	n, err := src.Read(plain)
	require.True(t, err == nil || err == io.EOF)
	plain = plain[:n]
	require.Equal(t, "the quick brown fox", string(plain))

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	fr := flate.NewReader(&compressed)
	defer fr.Close()
	roundTripped, err := io.ReadAll(fr)
	require.NoError(t, err)
	require.Equal(t, plain, roundTripped)
}
