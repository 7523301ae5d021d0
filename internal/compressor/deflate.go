// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package compressor

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/cosnicolaou/pzip/internal/mmapfile"
)

// requiredRatio is the compression ratio below which a block is
// judged worth compressing at all; picked by the reference
// implementation's own admission "from a hat".
const requiredRatio = 0.92

// isCompressible probes buf for compressibility by deflating a block
// from its midpoint: most real files start with something unusually
// compressible (an index, a header), so sampling from the start would
// bias the estimate.
func isCompressible(buf []byte) bool {
	bufsize := len(buf)
	if bufsize == 0 {
		return false
	}
	blocksize := 32 * 1024
	if bufsize/2 < blocksize {
		blocksize = bufsize / 2
	}
	if blocksize < 16 {
		return false
	}
	checkpoint := buf[bufsize/2:]
	if len(checkpoint) > blocksize {
		checkpoint = checkpoint[:blocksize]
	}
	var sink countingWriter
	w, err := flate.NewWriter(&sink, flate.DefaultCompression)
	if err != nil {
		return false
	}
	w.Write(checkpoint)
	w.Close()
	return float64(sink.n)/float64(blocksize) < requiredRatio
}

type countingWriter struct{ n int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

type sinkWriter struct{ sink Sink }

func (s sinkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	s.sink.Push(cp)
	return len(p), nil
}

func compressDeflate(e Entry, sink Sink, tc StopChecker) (Result, error) {
	f, err := os.Open(e.Path)
	if err != nil {
		return Result{}, fmt.Errorf("compressor: open %q: %w", e.Path, err)
	}
	defer f.Close()
	m, err := mmapfile.Map(f)
	if err != nil {
		return Result{}, fmt.Errorf("compressor: mmap %q: %w", e.Path, err)
	}
	defer m.Close()
	data := m.Bytes()
	crc := crc32Of(data)

	w, err := flate.NewWriter(sinkWriter{sink}, flate.DefaultCompression)
	if err != nil {
		return Result{}, fmt.Errorf("compressor: deflate init: %w", err)
	}
	const chunk = 1024 * 1024
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := tc.ThrowIfStopped(); err != nil {
			return Result{}, err
		}
		if _, err := w.Write(data[off:end]); err != nil {
			return Result{}, fmt.Errorf("compressor: deflate: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("compressor: deflate close: %w", err)
	}
	return Result{Method: 8, CRC32: crc}, nil
}
