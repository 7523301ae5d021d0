// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package compressor implements the per-entry compression workers used
// by a Creator: STORE, DEFLATE and LZMA1, plus the non-regular-file
// entry kinds (directories, symlinks, character devices) that never
// go through a codec at all.
package compressor

import (
	"fmt"
	"hash/crc32"
	"os"

	"github.com/cosnicolaou/pzip/internal/mmapfile"
)

// EntryType classifies the filesystem object a compressor.Entry
// describes. It mirrors pzip.EntryType; the two are kept distinct so
// this package has no import-cycle dependency on the root package.
type EntryType int

const (
	FileEntry EntryType = iota
	DirectoryEntry
	SymlinkEntry
	CharDeviceEntry
)

// UnixExtra carries the Unix extra-field metadata for an entry.
type UnixExtra struct {
	Atime uint32
	Mtime uint32
	UID   uint16
	GID   uint16
	Data  []byte
}

// Entry describes one filesystem object to be compressed.
type Entry struct {
	Path     string // path to read from on disk
	Name     string // name to record in the archive
	Type     EntryType
	RawMode  uint32
	Size     uint64
	DeviceID uint64
	Unix     UnixExtra
}

// Result is returned once an entry's data (if any) has been pushed
// into its Sink.
type Result struct {
	Method             uint16 // zipformat.Store/Deflate/LZMA
	CRC32              uint32
	AdditionalUnixData []byte
}

// Sink receives an entry's compressed or raw bytes as they are
// produced. *pzip.ByteQueue satisfies it.
type Sink interface {
	Push(data []byte)
}

// StopChecker allows a long-running compression loop to observe
// cooperative cancellation without this package depending on the root
// package's concrete TaskControl type.
type StopChecker interface {
	ThrowIfStopped() error
}

// tooSmallForLZMA mirrors the original implementation's TOO_SMALL_FOR_LZMA:
// LZMA has enough startup cost that files below this size are always
// stored regardless of the requested method.
const tooSmallForLZMA = 512

// CompressEntry reads e's data (if it has any) and pushes it into
// sink, compressed per preferLZMA, returning the method actually used
// (Store for files below tooSmallForLZMA and, on the LZMA path, for
// incompressible ones) and the entry's CRC-32. Directories, symlinks and character devices are
// handled specially and never consult preferLZMA.
func CompressEntry(e Entry, sink Sink, preferLZMA bool, tc StopChecker) (Result, error) {
	switch e.Type {
	case DirectoryEntry:
		return createDir(), nil
	case SymlinkEntry:
		return createSymlink(e, sink)
	case CharDeviceEntry:
		return createCharDevice(e)
	case FileEntry:
		if e.Size < tooSmallForLZMA {
			return storeFile(e, sink)
		}
		if preferLZMA {
			return compressLZMA(e, sink, tc)
		}
		return compressDeflate(e, sink, tc)
	default:
		return Result{}, fmt.Errorf("compressor: unknown entry type for %q", e.Name)
	}
}

func crc32Of(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func storeFile(e Entry, sink Sink) (Result, error) {
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
	sink.Push(data)
	return Result{Method: 0, CRC32: crc32Of(data)}, nil
}

func createDir() Result {
	return Result{Method: 0, CRC32: crc32Of(nil)}
}

// createSymlink reads the link target and pushes it as the entry's
// data. The ZIP spec says a symlink's target belongs in the Unix
// extra field, but many tools instead expect it in the file data;
// this writes it to both, matching the reference implementation.
func createSymlink(e Entry, sink Sink) (Result, error) {
	target, err := os.Readlink(e.Path)
	if err != nil {
		return Result{}, fmt.Errorf("compressor: readlink %q: %w", e.Path, err)
	}
	data := []byte(target)
	sink.Push(data)
	return Result{
		Method:             0,
		CRC32:              crc32Of(data),
		AdditionalUnixData: data,
	}, nil
}

// createCharDevice encodes the device's major/minor numbers as the
// entry's Unix extra data; it has no file data of its own, and its
// CRC-32 is 0 rather than a checksum of the encoded bytes, a quirk
// preserved from the reference implementation.
func createCharDevice(e Entry) (Result, error) {
	major, minor := splitDevice(e.DeviceID)
	buf := make([]byte, 8)
	putUint32LE(buf[0:4], major)
	putUint32LE(buf[4:8], minor)
	return Result{
		Method:             0,
		CRC32:              0,
		AdditionalUnixData: buf,
	}, nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
