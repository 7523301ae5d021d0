// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package compressor_test

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cosnicolaou/pzip/internal/compressor"
	"github.com/cosnicolaou/pzip/internal/testutil"
)

// bufSink accumulates everything pushed to it, in order, satisfying
// compressor.Sink.
type bufSink struct {
	buf bytes.Buffer
}

func (s *bufSink) Push(data []byte) {
	s.buf.Write(data)
}

// noStop always reports that the caller should keep going.
type noStop struct{}

func (noStop) ThrowIfStopped() error { return nil }

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "entry.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompressEntryStoreSmallFile(t *testing.T) {
	data := testutil.GenPredictableRandomData(64)
	path := writeTempFile(t, data)
	e := compressor.Entry{Path: path, Name: "small", Type: compressor.FileEntry, Size: uint64(len(data))}

	var sink bufSink
	// preferLZMA true should still be ignored: entry is below
	// tooSmallForLZMA so it is always stored.
	res, err := compressor.CompressEntry(e, &sink, true, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if res.Method != 0 {
		t.Errorf("Method = %d, want Store (0)", res.Method)
	}
	if !bytes.Equal(sink.buf.Bytes(), data) {
		t.Errorf("stored data mismatch")
	}
}

func TestCompressEntryDeflate(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 4096)
	path := writeTempFile(t, data)
	e := compressor.Entry{Path: path, Name: "big.txt", Type: compressor.FileEntry, Size: uint64(len(data))}

	var sink bufSink
	res, err := compressor.CompressEntry(e, &sink, false, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if res.Method != 8 {
		t.Errorf("Method = %d, want Deflate (8)", res.Method)
	}
	if sink.buf.Len() >= len(data) {
		t.Errorf("deflated output (%d bytes) not smaller than input (%d bytes)", sink.buf.Len(), len(data))
	}
}

func TestCompressEntryLZMAFallsBackOnIncompressibleData(t *testing.T) {
	data := testutil.GenPredictableRandomData(64 * 1024)
	path := writeTempFile(t, data)
	e := compressor.Entry{Path: path, Name: "incompressible.bin", Type: compressor.FileEntry, Size: uint64(len(data))}

	var sink bufSink
	res, err := compressor.CompressEntry(e, &sink, true, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if res.Method != 0 {
		t.Errorf("Method = %d, want Store (0) for incompressible data", res.Method)
	}
	if !bytes.Equal(sink.buf.Bytes(), data) {
		t.Errorf("fallback-stored data mismatch")
	}
}

func TestCompressEntryLZMACompressible(t *testing.T) {
	data := bytes.Repeat([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 4096)
	path := writeTempFile(t, data)
	e := compressor.Entry{Path: path, Name: "compressible.txt", Type: compressor.FileEntry, Size: uint64(len(data))}

	var sink bufSink
	res, err := compressor.CompressEntry(e, &sink, true, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if res.Method != 14 {
		t.Errorf("Method = %d, want LZMA (14)", res.Method)
	}
	if sink.buf.Len() >= len(data) {
		t.Errorf("lzma output (%d bytes) not smaller than input (%d bytes)", sink.buf.Len(), len(data))
	}
}

func TestCompressEntryDirectory(t *testing.T) {
	e := compressor.Entry{Name: "adir/", Type: compressor.DirectoryEntry}
	var sink bufSink
	res, err := compressor.CompressEntry(e, &sink, false, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if res.Method != 0 || sink.buf.Len() != 0 {
		t.Errorf("directory entry should push no data and store method 0, got method=%d len=%d", res.Method, sink.buf.Len())
	}
}

func TestCompressEntrySymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not exercised on windows")
	}
	dir := t.TempDir()
	linkPath := filepath.Join(dir, "link")
	if err := os.Symlink("target-name", linkPath); err != nil {
		t.Fatal(err)
	}
	e := compressor.Entry{Path: linkPath, Name: "link", Type: compressor.SymlinkEntry}
	var sink bufSink
	res, err := compressor.CompressEntry(e, &sink, false, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if got, want := sink.buf.String(), "target-name"; got != want {
		t.Errorf("symlink data = %q, want %q", got, want)
	}
	if got, want := string(res.AdditionalUnixData), "target-name"; got != want {
		t.Errorf("symlink AdditionalUnixData = %q, want %q", got, want)
	}
}

func TestCompressEntryCharDevice(t *testing.T) {
	e := compressor.Entry{Name: "dev/null", Type: compressor.CharDeviceEntry, DeviceID: (1 << 8) | 3}
	var sink bufSink
	res, err := compressor.CompressEntry(e, &sink, false, noStop{})
	if err != nil {
		t.Fatalf("CompressEntry: %v", err)
	}
	if res.CRC32 != 0 {
		t.Errorf("char device CRC32 = %d, want 0", res.CRC32)
	}
	if len(res.AdditionalUnixData) != 8 {
		t.Errorf("char device AdditionalUnixData len = %d, want 8", len(res.AdditionalUnixData))
	}
}
