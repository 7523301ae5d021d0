// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package decompressor_test

import (
	"bytes"
	"hash/crc32"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/flate"

	"github.com/cosnicolaou/pzip/internal/decompressor"
	"github.com/cosnicolaou/pzip/internal/zipformat"
)

// noStop always reports that the caller should keep going.
type noStop struct{}

func (noStop) ThrowIfStopped() error { return nil }

func unixModeAttrs(mode uint32) uint32 {
	return mode << 16
}

func TestUnpackEntryStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello, this is the file's content")
	crc := crc32.ChecksumIEEE(content)

	lh := &zipformat.LocalHeader{
		Compression: zipformat.Store,
		CRC32:       crc,
		Name:        "a/b/file.txt",
	}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		CompressionMethod:      zipformat.Store,
		CRC32:                  crc,
		ExternalFileAttributes: unixModeAttrs(0100644),
	}

	ok, msg := decompressor.UnpackEntry(dir, lh, ch, content, noStop{})
	if !ok {
		t.Fatalf("UnpackEntry failed: %s", msg)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a/b/file.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("extracted content mismatch: got %q, want %q", got, content)
	}
}

func TestUnpackEntryDeflateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("repeat me please "), 200)
	crc := crc32.ChecksumIEEE(content)

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	lh := &zipformat.LocalHeader{
		Compression: zipformat.Deflate,
		CRC32:       crc,
		Name:        "deflated.txt",
	}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		CompressionMethod:      zipformat.Deflate,
		CRC32:                  crc,
		ExternalFileAttributes: unixModeAttrs(0100644),
	}

	ok, msg := decompressor.UnpackEntry(dir, lh, ch, buf.Bytes(), noStop{})
	if !ok {
		t.Fatalf("UnpackEntry failed: %s", msg)
	}
	got, err := os.ReadFile(filepath.Join(dir, "deflated.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("extracted content mismatch")
	}
}

func TestUnpackEntryDeferredCRCUsesCentralHeader(t *testing.T) {
	dir := t.TempDir()
	content := []byte("deferred crc lives in the central directory")
	crc := crc32.ChecksumIEEE(content)

	lh := &zipformat.LocalHeader{
		Compression: zipformat.Store,
		GPBitflag:   zipformat.GPBitflagDeferredCRC,
		CRC32:       0, // provisional, must be ignored
		Name:        "deferred.txt",
	}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		CompressionMethod:      zipformat.Store,
		CRC32:                  crc,
		ExternalFileAttributes: unixModeAttrs(0100644),
	}

	ok, msg := decompressor.UnpackEntry(dir, lh, ch, content, noStop{})
	if !ok {
		t.Fatalf("UnpackEntry failed: %s", msg)
	}
}

func TestUnpackEntryCRCMismatchIsRejectedAndCleanedUp(t *testing.T) {
	dir := t.TempDir()
	content := []byte("this content does not match the recorded crc")

	lh := &zipformat.LocalHeader{
		Compression: zipformat.Store,
		CRC32:       0xdeadbeef,
		Name:        "bad.txt",
	}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		CompressionMethod:      zipformat.Store,
		CRC32:                  0xdeadbeef,
		ExternalFileAttributes: unixModeAttrs(0100644),
	}

	ok, msg := decompressor.UnpackEntry(dir, lh, ch, content, noStop{})
	if ok {
		t.Fatalf("UnpackEntry succeeded, want CRC failure: %s", msg)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.txt")); !os.IsNotExist(err) {
		t.Errorf("target file should not exist after CRC failure, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.txt$ZIPTMP")); !os.IsNotExist(err) {
		t.Errorf("temp file should have been removed after CRC failure, stat err = %v", err)
	}
}

func TestUnpackEntryRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists.txt")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}
	content := []byte("new content")
	crc := crc32.ChecksumIEEE(content)

	lh := &zipformat.LocalHeader{
		Compression: zipformat.Store,
		CRC32:       crc,
		Name:        "exists.txt",
	}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		CompressionMethod:      zipformat.Store,
		CRC32:                  crc,
		ExternalFileAttributes: unixModeAttrs(0100644),
	}

	ok, msg := decompressor.UnpackEntry(dir, lh, ch, content, noStop{})
	if ok {
		t.Fatalf("UnpackEntry succeeded, want refuse-to-overwrite failure: %s", msg)
	}
	got, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "already here" {
		t.Errorf("existing file was modified: %q", got)
	}
}

func TestUnpackEntryDirectory(t *testing.T) {
	dir := t.TempDir()
	lh := &zipformat.LocalHeader{Name: "subdir/"}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		ExternalFileAttributes: unixModeAttrs(040755),
	}
	ok, msg := decompressor.UnpackEntry(dir, lh, ch, nil, noStop{})
	if !ok {
		t.Fatalf("UnpackEntry failed: %s", msg)
	}
	fi, err := os.Stat(filepath.Join(dir, "subdir"))
	if err != nil {
		t.Fatalf("stat created directory: %v", err)
	}
	if !fi.IsDir() {
		t.Errorf("subdir was not created as a directory")
	}
}

func TestUnpackEntrySymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not exercised on windows")
	}
	dir := t.TempDir()
	target := []byte("link-target")
	lh := &zipformat.LocalHeader{Name: "link", Compression: zipformat.Store, CRC32: crc32.ChecksumIEEE(target)}
	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix << 8,
		CompressionMethod:      zipformat.Store,
		ExternalFileAttributes: unixModeAttrs(0120777),
	}
	ok, msg := decompressor.UnpackEntry(dir, lh, ch, target, noStop{})
	if !ok {
		t.Fatalf("UnpackEntry failed: %s", msg)
	}
	got, err := os.Readlink(filepath.Join(dir, "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if got != string(target) {
		t.Errorf("symlink target = %q, want %q", got, target)
	}
}
