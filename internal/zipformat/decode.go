// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package zipformat

import (
	"encoding/binary"
	"fmt"
)

// Cursor reads little-endian records out of an in-memory byte slice,
// typically a memory-mapped archive. It never copies the underlying
// slice except where a record's variable-length fields are captured.
type Cursor struct {
	buf []byte
	pos int64
}

// NewCursor returns a Cursor over buf starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Tell returns the cursor's current offset.
func (c *Cursor) Tell() int64 { return c.pos }

// Len returns the length of the underlying buffer.
func (c *Cursor) Len() int64 { return int64(len(c.buf)) }

// SeekTo repositions the cursor at an absolute offset.
func (c *Cursor) SeekTo(off int64) error {
	if off < 0 || off > int64(len(c.buf)) {
		return fmt.Errorf("zipformat: seek offset %d out of range [0,%d]", off, len(c.buf))
	}
	c.pos = off
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int64) error { return c.SeekTo(c.pos + n) }

func (c *Cursor) need(n int64) error {
	if c.pos+n > int64(len(c.buf)) {
		return fmt.Errorf("zipformat: unexpected end of archive at offset %d wanting %d bytes", c.pos, n)
	}
	return nil
}

// Peek32 returns the uint32 at the cursor without advancing it, used to
// test for a record's signature before committing to parse it.
func (c *Cursor) Peek32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4]), nil
}

// Read16 reads a little-endian uint16 and advances the cursor.
func (c *Cursor) Read16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

// Read32 reads a little-endian uint32 and advances the cursor.
func (c *Cursor) Read32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

// Read64 reads a little-endian uint64 and advances the cursor.
func (c *Cursor) Read64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return v, nil
}

// ReadBytes returns a slice (aliasing the underlying buffer) of n bytes
// and advances the cursor.
func (c *Cursor) ReadBytes(n uint16) ([]byte, error) {
	if err := c.need(int64(n)); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+int64(n)]
	c.pos += int64(n)
	return b, nil
}

// ReadLocalHeader parses one local file header at the cursor's current
// position, including its name and extra field, resolving ZIP64 and
// Unix extra data. It does not validate the signature; callers must
// peek it first.
func ReadLocalHeader(c *Cursor) (*LocalHeader, error) {
	if _, err := c.Read32(); err != nil { // signature, already validated by caller
		return nil, err
	}
	h := &LocalHeader{}
	var err error
	if h.NeededVersion, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.GPBitflag, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.Compression, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.ModTime, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.ModDate, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.CRC32, err = c.Read32(); err != nil {
		return nil, err
	}
	csize32, err := c.Read32()
	if err != nil {
		return nil, err
	}
	usize32, err := c.Read32()
	if err != nil {
		return nil, err
	}
	nameLen, err := c.Read16()
	if err != nil {
		return nil, err
	}
	extraLen, err := c.Read16()
	if err != nil {
		return nil, err
	}
	nameBytes, err := c.ReadBytes(nameLen)
	if err != nil {
		return nil, err
	}
	h.Name = string(nameBytes)
	extra, err := c.ReadBytes(extraLen)
	if err != nil {
		return nil, err
	}
	h.Extra = extra
	h.CompressedSize = uint64(csize32)
	h.UncompressedSize = uint64(usize32)
	if csize32 == Size32Sentinel || usize32 == Size32Sentinel {
		usize, csize, offset, err := parseZip64Extra(extra)
		if err != nil {
			return nil, fmt.Errorf("zipformat: local header %q: %w", h.Name, err)
		}
		h.UncompressedSize = usize
		h.CompressedSize = csize
		h.Zip64Offset = offset
	}
	h.Unix = parseUnixExtra(extra)
	return h, nil
}

// ReadCentralHeader parses one central directory header at the
// cursor's current position, including its signature, which callers
// must peek first.
func ReadCentralHeader(c *Cursor) (*CentralHeader, error) {
	if _, err := c.Read32(); err != nil {
		return nil, err
	}
	h := &CentralHeader{}
	var err error
	if h.VersionMadeBy, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.VersionNeeded, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.BitFlag, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.CompressionMethod, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.ModTime, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.ModDate, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.CRC32, err = c.Read32(); err != nil {
		return nil, err
	}
	csize32, err := c.Read32()
	if err != nil {
		return nil, err
	}
	usize32, err := c.Read32()
	if err != nil {
		return nil, err
	}
	nameLen, err := c.Read16()
	if err != nil {
		return nil, err
	}
	extraLen, err := c.Read16()
	if err != nil {
		return nil, err
	}
	commentLen, err := c.Read16()
	if err != nil {
		return nil, err
	}
	if h.DiskNumberStart, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.InternalFileAttributes, err = c.Read16(); err != nil {
		return nil, err
	}
	if h.ExternalFileAttributes, err = c.Read32(); err != nil {
		return nil, err
	}
	offset32, err := c.Read32()
	if err != nil {
		return nil, err
	}
	nameBytes, err := c.ReadBytes(nameLen)
	if err != nil {
		return nil, err
	}
	h.Name = string(nameBytes)
	extra, err := c.ReadBytes(extraLen)
	if err != nil {
		return nil, err
	}
	h.Extra = extra
	commentBytes, err := c.ReadBytes(commentLen)
	if err != nil {
		return nil, err
	}
	h.Comment = string(commentBytes)
	h.CompressedSize = uint64(csize32)
	h.UncompressedSize = uint64(usize32)
	h.LocalHeaderOffset = uint64(offset32)
	if csize32 == Size32Sentinel || usize32 == Size32Sentinel || offset32 == Size32Sentinel {
		usize, csize, offset, err := parseZip64Extra(extra)
		if err != nil {
			return nil, fmt.Errorf("zipformat: central header %q: %w", h.Name, err)
		}
		if usize32 == Size32Sentinel {
			h.UncompressedSize = usize
		}
		if csize32 == Size32Sentinel {
			h.CompressedSize = csize
		}
		if offset32 == Size32Sentinel {
			h.LocalHeaderOffset = offset
		}
	}
	return h, nil
}

// ReadZip64EndRecord parses the ZIP64 end-of-central-directory record,
// not including the signature.
func ReadZip64EndRecord(c *Cursor) (*Zip64EndRecord, error) {
	r := &Zip64EndRecord{}
	var err error
	if r.RecordSize, err = c.Read64(); err != nil {
		return nil, err
	}
	if r.VersionMadeBy, err = c.Read16(); err != nil {
		return nil, err
	}
	if r.VersionNeeded, err = c.Read16(); err != nil {
		return nil, err
	}
	if r.DiskNumber, err = c.Read32(); err != nil {
		return nil, err
	}
	if r.DirStartDiskNumber, err = c.Read32(); err != nil {
		return nil, err
	}
	if r.DiskNumEntries, err = c.Read64(); err != nil {
		return nil, err
	}
	if r.TotalEntries, err = c.Read64(); err != nil {
		return nil, err
	}
	if r.DirSize, err = c.Read64(); err != nil {
		return nil, err
	}
	if r.DirOffset, err = c.Read64(); err != nil {
		return nil, err
	}
	const fixed = 2 + 2 + 4 + 4 + 8 + 8 + 8 + 8
	extSize := int64(r.RecordSize) - fixed
	if extSize < 0 {
		return nil, fmt.Errorf("zipformat: zip64 end record size %d too small", r.RecordSize)
	}
	if extSize > 0 {
		b, err := c.ReadBytes(uint16(extSize))
		if err != nil {
			return nil, err
		}
		r.Extensible = b
	}
	return r, nil
}

// ReadZip64Locator parses the ZIP64 end-of-central-directory locator,
// not including the signature.
func ReadZip64Locator(c *Cursor) (*Zip64Locator, error) {
	l := &Zip64Locator{}
	var err error
	if l.DiskNumber, err = c.Read32(); err != nil {
		return nil, err
	}
	if l.DirOffset, err = c.Read64(); err != nil {
		return nil, err
	}
	if l.NumDisks, err = c.Read32(); err != nil {
		return nil, err
	}
	return l, nil
}

// ReadEndOfCentralDirectory parses the classic end-of-central-directory
// record, not including the signature.
func ReadEndOfCentralDirectory(c *Cursor) (*EndOfCentralDirectory, error) {
	e := &EndOfCentralDirectory{}
	var err error
	if e.DiskNumber, err = c.Read16(); err != nil {
		return nil, err
	}
	if e.DirDiskNumber, err = c.Read16(); err != nil {
		return nil, err
	}
	if e.DiskNumEntries, err = c.Read16(); err != nil {
		return nil, err
	}
	if e.TotalEntries, err = c.Read16(); err != nil {
		return nil, err
	}
	if e.DirSize, err = c.Read32(); err != nil {
		return nil, err
	}
	if e.DirOffsetOnDisk, err = c.Read32(); err != nil {
		return nil, err
	}
	commentLen, err := c.Read16()
	if err != nil {
		return nil, err
	}
	commentBytes, err := c.ReadBytes(commentLen)
	if err != nil {
		return nil, err
	}
	e.Comment = string(commentBytes)
	return e, nil
}

func parseZip64Extra(extra []byte) (uncompressedSize, compressedSize, localHeaderOffset uint64, err error) {
	off := 0
	for off+4 <= len(extra) {
		tag := binary.LittleEndian.Uint16(extra[off : off+2])
		size := binary.LittleEndian.Uint16(extra[off+2 : off+4])
		off += 4
		if off+int(size) > len(extra) {
			return 0, 0, 0, fmt.Errorf("extra field entry overruns buffer")
		}
		if tag == ExtraZip64 {
			field := extra[off : off+int(size)]
			if len(field) < 8 {
				return 0, 0, 0, fmt.Errorf("zip64 extra field too small: %d bytes", len(field))
			}
			uncompressedSize = binary.LittleEndian.Uint64(field[0:8])
			if len(field) >= 16 {
				compressedSize = binary.LittleEndian.Uint64(field[8:16])
			}
			if len(field) >= 24 {
				localHeaderOffset = binary.LittleEndian.Uint64(field[16:24])
			}
			return uncompressedSize, compressedSize, localHeaderOffset, nil
		}
		off += int(size)
	}
	return 0, 0, 0, fmt.Errorf("entry extra field did not contain a zip64 extension")
}

func parseUnixExtra(extra []byte) UnixExtra {
	off := 0
	for off+4 <= len(extra) {
		tag := binary.LittleEndian.Uint16(extra[off : off+2])
		size := binary.LittleEndian.Uint16(extra[off+2 : off+4])
		off += 4
		if off+int(size) > len(extra) {
			return UnixExtra{}
		}
		if tag == ExtraUnix {
			field := extra[off : off+int(size)]
			if len(field) < 12 {
				return UnixExtra{}
			}
			return UnixExtra{
				Atime: binary.LittleEndian.Uint32(field[0:4]),
				Mtime: binary.LittleEndian.Uint32(field[4:8]),
				Uid:   binary.LittleEndian.Uint16(field[8:10]),
				Gid:   binary.LittleEndian.Uint16(field[10:12]),
				Data:  field[12:],
			}
		}
		off += int(size)
	}
	return UnixExtra{}
}
