// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package decompressor

import (
	"bytes"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/ulikunitz/xz/lzma"

	"github.com/cosnicolaou/pzip/internal/zipformat"
)

// checkedWriter wraps a destination io.Writer, accumulating a running
// CRC-32 of everything written and consulting a StopChecker before
// every write so a cooperative cancellation request takes effect
// between chunks rather than only once per entry.
type checkedWriter struct {
	w  io.Writer
	h  hash.Hash32
	tc StopChecker
}

func newCheckedWriter(w io.Writer, tc StopChecker) *checkedWriter {
	return &checkedWriter{w: w, h: crc32.NewIEEE(), tc: tc}
}

func (c *checkedWriter) Write(p []byte) (int, error) {
	if err := c.tc.ThrowIfStopped(); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	if n > 0 {
		c.h.Write(p[:n])
	}
	return n, err
}

func (c *checkedWriter) sum() uint32 { return c.h.Sum32() }

// decodeAndWrite decodes data per method, writing the decoded bytes to
// w, and returns the CRC-32 of the decoded stream.
func decodeAndWrite(method uint16, data []byte, w io.Writer, tc StopChecker) (uint32, error) {
	switch method {
	case zipformat.Store:
		return unstoreToWriter(data, w, tc)
	case zipformat.Deflate:
		return inflateToWriter(data, w, tc)
	case zipformat.LZMA:
		return lzmaToWriter(data, w, tc)
	default:
		return 0, fmt.Errorf("unsupported compression format %d", method)
	}
}

func unstoreToWriter(data []byte, w io.Writer, tc StopChecker) (uint32, error) {
	if err := tc.ThrowIfStopped(); err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return crc32.ChecksumIEEE(data), nil
}

func inflateToWriter(data []byte, w io.Writer, tc StopChecker) (uint32, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	cw := newCheckedWriter(w, tc)
	if _, err := io.Copy(cw, r); err != nil {
		return 0, fmt.Errorf("inflate: %w", err)
	}
	return cw.sum(), nil
}

// lzmaToWriter parses this package's custom LZMA1 prelude (a 2-byte
// marker, a little-endian properties-size, then the properties
// themselves) before handing the remainder of data to a raw LZMA1
// decoder, mirroring the reference implementation's framing exactly.
func lzmaToWriter(data []byte, w io.Writer, tc StopChecker) (uint32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("lzma stream too short for prelude")
	}
	propsSize := int(data[2]) | int(data[3])<<8
	offset := 4 + propsSize
	if len(data) < offset {
		return 0, fmt.Errorf("lzma stream too short for properties")
	}
	props := data[4:offset]
	lc, lp, pb, dictCap, err := decodeLZMAProperties(props)
	if err != nil {
		return 0, err
	}
	cfg := lzma.ReaderConfig{
		Properties: &lzma.Properties{LC: lc, LP: lp, PB: pb},
		DictCap:    dictCap,
	}
	r, err := cfg.NewReader2(bytes.NewReader(data[offset:]))
	if err != nil {
		return 0, fmt.Errorf("lzma init: %w", err)
	}
	cw := newCheckedWriter(w, tc)
	if _, err := io.Copy(cw, r); err != nil {
		return 0, fmt.Errorf("lzma decode: %w", err)
	}
	return cw.sum(), nil
}

func decodeLZMAProperties(props []byte) (lc, lp, pb, dictCap int, err error) {
	if len(props) < 5 {
		return 0, 0, 0, 0, fmt.Errorf("lzma properties blob too short: %d bytes", len(props))
	}
	b := props[0]
	pb = int(b) / 45
	rem := int(b) % 45
	lp = rem / 9
	lc = rem % 9
	dictCap = int(props[1]) | int(props[2])<<8 | int(props[3])<<16 | int(props[4])<<24
	return lc, lp, pb, dictCap, nil
}
