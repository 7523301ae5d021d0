// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package zipformat implements the on-disk record layouts for ZIP64
// archives: local file headers, central directory headers, the ZIP64
// end-of-central-directory record and locator, and the classic
// end-of-central-directory record, plus their extra-field encodings.
//
// All integer fields are little-endian on disk; in memory they are
// host-native Go integers. See https://en.wikipedia.org/wiki/ZIP_(file_format)
// for the general layout this package implements.
package zipformat

// Signatures for the various records that make up a ZIP64 archive.
const (
	LocalSig           uint32 = 0x04034b50
	CentralSig         uint32 = 0x02014b50
	CentralEndSig      uint32 = 0x06054b50
	Zip64CentralEndSig uint32 = 0x06064b50
	Zip64LocatorSig    uint32 = 0x07064b50
)

// Compression method codes understood by this package.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
	LZMA    uint16 = 14
)

// Extra field tags.
const (
	ExtraZip64 uint16 = 0x0001
	ExtraUnix  uint16 = 0x000d
)

// NeededVersion is the version-needed-to-extract value this package
// always writes; 63 is the version that introduced LZMA support.
const NeededVersion uint16 = 63

// MadeByUnix is the upper byte of version_made_by this package always
// writes, regardless of build platform.
const MadeByUnix uint16 = 3

// GPBitflagLZMAEOS is the general-purpose bit flag value this package
// always sets (bit 1, documented by the LZMA SDK as "EOS marker is used").
// It is set unconditionally, even for STORE and DEFLATE entries, matching
// the reference producer this format was distilled from.
const GPBitflagLZMAEOS uint16 = 0x0002

// GPBitflagEncrypted is bit 0 of the general purpose flag; its presence
// marks an entry as encrypted, which this package refuses to read.
const GPBitflagEncrypted uint16 = 0x0001

// GPBitflagDeferredCRC is the general purpose flag bit (0x0004) that
// marks a local header's crc32 as provisional, with the authoritative
// value living in the central directory header's crc32 field instead.
// This package never sets it when writing, but honors it when reading
// archives produced by other tools.
const GPBitflagDeferredCRC uint16 = 0x0004

// Size32Sentinel is the 32-bit size field value that indicates "see the
// ZIP64 extra field for the real value".
const Size32Sentinel uint32 = 0xFFFFFFFF

// LocalHeader mirrors the fixed portion of a local file header plus its
// variable-length name/extra fields.
type LocalHeader struct {
	NeededVersion     uint16
	GPBitflag         uint16
	Compression       uint16
	ModTime           uint16
	ModDate           uint16
	CRC32             uint32
	CompressedSize    uint64
	UncompressedSize  uint64
	Name              string
	Extra             []byte
	Unix              UnixExtra
	Zip64Offset       uint64 // local_header_offset recorded in the ZIP64 extra, if present.
}

// CentralHeader mirrors a central directory file header.
type CentralHeader struct {
	VersionMadeBy          uint16
	VersionNeeded          uint16
	BitFlag                uint16
	CompressionMethod      uint16
	ModTime                uint16
	ModDate                uint16
	CRC32                  uint32
	CompressedSize         uint64
	UncompressedSize       uint64
	DiskNumberStart        uint16
	InternalFileAttributes uint16
	ExternalFileAttributes uint32
	LocalHeaderOffset      uint64
	Name                   string
	Extra                  []byte
	Comment                string
}

// Zip64EndRecord mirrors the ZIP64 end-of-central-directory record.
type Zip64EndRecord struct {
	RecordSize         uint64
	VersionMadeBy      uint16
	VersionNeeded      uint16
	DiskNumber         uint32
	DirStartDiskNumber uint32
	DiskNumEntries     uint64
	TotalEntries       uint64
	DirSize            uint64
	DirOffset          uint64
	Extensible         []byte
}

// Zip64Locator mirrors the ZIP64 end-of-central-directory locator.
type Zip64Locator struct {
	DiskNumber   uint32
	DirOffset    uint64
	NumDisks     uint32
}

// EndOfCentralDirectory mirrors the classic end-of-central-directory
// record; archives written by Creator carry ZIP64 sentinel values in it.
type EndOfCentralDirectory struct {
	DiskNumber      uint16
	DirDiskNumber   uint16
	DiskNumEntries  uint16
	TotalEntries    uint16
	DirSize         uint32
	DirOffsetOnDisk uint32
	Comment         string
}

// UnixExtra is the decoded form of the 0x000D "Info-ZIP Unix" extra field.
type UnixExtra struct {
	Atime uint32
	Mtime uint32
	Uid   uint16
	Gid   uint16
	Data  []byte // extra_bytes: symlink target, device major/minor, etc.
}
