// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import "fmt"

// EntryType classifies the kind of filesystem object an archive entry
// represents.
type EntryType int

const (
	FileEntry EntryType = iota
	DirectoryEntry
	SymlinkEntry
	CharDeviceEntry
	UnknownEntry
)

func (e EntryType) String() string {
	switch e {
	case FileEntry:
		return "file"
	case DirectoryEntry:
		return "directory"
	case SymlinkEntry:
		return "symlink"
	case CharDeviceEntry:
		return "chardev"
	default:
		return "unknown"
	}
}

// Compression identifies the on-disk compression method of an entry,
// using the same numeric values as the ZIP specification so they can
// be written directly into a local/central header's compression field.
type Compression uint16

const (
	Store   Compression = 0
	Deflate Compression = 8
	LZMA1   Compression = 14
)

func (c Compression) String() string {
	switch c {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	case LZMA1:
		return "lzma1"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

// UnixExtra carries the fields written into (or parsed out of) a ZIP
// entry's Info-ZIP Unix extra field (tag 0x000D): access/modification
// times, numeric uid/gid, and any additional type-specific payload
// (e.g. a symlink's target path) that precedes it.
type UnixExtra struct {
	Atime uint32
	Mtime uint32
	UID   uint16
	GID   uint16
	Data  []byte
}

// FileInfo describes one entry to be packed into an archive: the
// source path, its POSIX metadata, and the size the compressor should
// expect to read from it. RawMode carries the full POSIX mode_t,
// including the file-type bits (S_IFLNK, S_IFCHR, ...) that Go's
// fs.FileMode does not preserve, so the compressor can classify
// symlinks and device files the way the original implementation does.
type FileInfo struct {
	Name      string
	Unix      UnixExtra
	RawMode   uint32
	Size      uint64
	DeviceID  uint64
}

// CompressResult is returned by a compressor worker once it has
// finished streaming an entry's data into its ByteQueue: the final
// entry type and CRC-32 (known only once all input has been read),
// the compression method actually used (which may differ from the one
// requested, e.g. Store for a file too small to compress or one the
// LZMA1 path's compressibility probe rejects), and any bytes that must be prepended to the entry's Unix
// extra field data (a symlink target, for instance).
type CompressResult struct {
	EntryType          EntryType
	CRC32              uint32
	Method             Compression
	AdditionalUnixData []byte
}
