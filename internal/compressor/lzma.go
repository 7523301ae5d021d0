// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package compressor

import (
	"fmt"
	"os"

	"github.com/ulikunitz/xz/lzma"

	"github.com/cosnicolaou/pzip/internal/mmapfile"
)

// lzma1Properties are the (lc, lp, pb) parameters this package always
// uses for LZMA1 entries; these are the same defaults xz-utils and
// Python's lzma module use for LZMA1/LZMA2 streams.
const (
	lzmaLC = 3
	lzmaLP = 0
	lzmaPB = 2
)

// lzmaDictCap is the LZMA1 dictionary size recorded in the properties
// prelude and used to configure both ends of the codec.
const lzmaDictCap = 1 << 24 // 16 MiB

// propertiesByte packs (lc, lp, pb) into the single properties byte
// used by both the classic .lzma header and this package's prelude,
// per the standard LZMA properties encoding.
func propertiesByte(lc, lp, pb int) byte {
	return byte((pb*5+lp)*9 + lc)
}

// lzmaPrelude builds the 4-byte marker plus 5-byte properties blob
// this package writes ahead of every raw LZMA1 stream: a 0x09, 0x04
// pair mirroring what Python's lzma module emits for an LZMA1 filter
// (copied without fully understanding why), followed by a
// little-endian properties-size and the properties bytes themselves
// (1 properties byte + 4-byte little-endian dictionary size).
func lzmaPrelude() []byte {
	props := []byte{
		propertiesByte(lzmaLC, lzmaLP, lzmaPB),
		byte(lzmaDictCap),
		byte(lzmaDictCap >> 8),
		byte(lzmaDictCap >> 16),
		byte(lzmaDictCap >> 24),
	}
	out := make([]byte, 0, 4+len(props))
	out = append(out, 0x09, 0x04, byte(len(props)), byte(len(props)>>8))
	out = append(out, props...)
	return out
}

func compressLZMA(e Entry, sink Sink, tc StopChecker) (Result, error) {
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

	if !isCompressible(data) {
		crc := crc32Of(data)
		sink.Push(data)
		return Result{Method: 0, CRC32: crc}, nil
	}

	crc := crc32Of(data)
	sink.Push(lzmaPrelude())

	cfg := lzma.WriterConfig{
		Properties: &lzma.Properties{LC: lzmaLC, LP: lzmaLP, PB: lzmaPB},
		DictCap:    lzmaDictCap,
		SizeInHeader: false,
		EOSMarker:    true,
	}
	w, err := cfg.NewWriter2(sinkWriter{sink})
	if err != nil {
		return Result{}, fmt.Errorf("compressor: lzma init: %w", err)
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
			return Result{}, fmt.Errorf("compressor: lzma: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("compressor: lzma close: %w", err)
	}
	return Result{Method: 14, CRC32: crc}, nil
}
