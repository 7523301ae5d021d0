// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package compressor

import (
	"bytes"
	"testing"

	"github.com/cosnicolaou/pzip/internal/testutil"
)

func TestIsCompressibleHighlyRepetitive(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 64*1024)
	if !isCompressible(data) {
		t.Errorf("isCompressible(repetitive data) = false, want true")
	}
}

func TestIsCompressibleRandomData(t *testing.T) {
	data := testutil.GenPredictableRandomData(64 * 1024)
	if isCompressible(data) {
		t.Errorf("isCompressible(random data) = true, want false")
	}
}

func TestIsCompressibleTooSmall(t *testing.T) {
	// blocksize clamps to bufsize/2; below 16 bytes it bails to false
	// regardless of content.
	data := bytes.Repeat([]byte("a"), 8)
	if isCompressible(data) {
		t.Errorf("isCompressible(8 highly compressible bytes) = true, want false (blocksize < 16)")
	}
}
