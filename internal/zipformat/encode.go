// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package zipformat

import (
	"encoding/binary"
	"io"
)

// Writer wraps an io.WriteSeeker with little-endian primitive writers
// and offset tracking, mirroring the original implementation's
// File::write16le/write32le/write64le helpers.
type Writer struct {
	w      io.WriteSeeker
	offset int64
	err    error
}

// NewWriter returns a Writer positioned at the current offset of w.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	off, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w, offset: off}, nil
}

// Tell returns the writer's current byte offset.
func (w *Writer) Tell() int64 { return w.offset }

// SeekTo repositions the writer at an absolute offset.
func (w *Writer) SeekTo(off int64) error {
	if w.err != nil {
		return w.err
	}
	if _, err := w.w.Seek(off, io.SeekStart); err != nil {
		w.err = err
		return err
	}
	w.offset = off
	return nil
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.offset += int64(n)
	if err != nil {
		w.err = err
	}
}

// WriteBytes writes raw bytes (a name, an extra field, ...).
func (w *Writer) WriteBytes(b []byte) { w.write(b) }

// WriteString writes a raw string, avoiding an extra allocation for the
// common case of writing entry names.
func (w *Writer) WriteString(s string) { w.write([]byte(s)) }

// Write16 writes a little-endian uint16.
func (w *Writer) Write16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.write(b[:])
}

// Write32 writes a little-endian uint32.
func (w *Writer) Write32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.write(b[:])
}

// Write64 writes a little-endian uint64.
func (w *Writer) Write64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.write(b[:])
}

// Err returns the first error encountered by any Write call.
func (w *Writer) Err() error { return w.err }

// WriteLocalHeader writes a local file header including name and extra
// field bytes, in the on-disk layout specified by §6 of the format
// description: fixed 30-byte header, then name, then extra.
func WriteLocalHeader(w *Writer, h *LocalHeader) {
	w.Write32(LocalSig)
	w.Write16(h.NeededVersion)
	w.Write16(h.GPBitflag)
	w.Write16(h.Compression)
	w.Write16(h.ModTime)
	w.Write16(h.ModDate)
	w.Write32(h.CRC32)
	w.Write32(Size32Sentinel)
	w.Write32(Size32Sentinel)
	w.Write16(uint16(len(h.Name)))
	w.Write16(uint16(len(h.Extra)))
	w.WriteString(h.Name)
	w.WriteBytes(h.Extra)
}

// WriteCentralHeader writes one central directory file header.
func WriteCentralHeader(w *Writer, h *CentralHeader) {
	w.Write32(CentralSig)
	w.Write16(h.VersionMadeBy)
	w.Write16(h.VersionNeeded)
	w.Write16(h.BitFlag)
	w.Write16(h.CompressionMethod)
	w.Write16(h.ModTime)
	w.Write16(h.ModDate)
	w.Write32(h.CRC32)
	w.Write32(Size32Sentinel)
	w.Write32(Size32Sentinel)
	w.Write16(uint16(len(h.Name)))
	w.Write16(uint16(len(h.Extra)))
	w.Write16(uint16(len(h.Comment)))
	w.Write16(h.DiskNumberStart)
	w.Write16(h.InternalFileAttributes)
	w.Write32(h.ExternalFileAttributes)
	w.Write32(Size32Sentinel)
	w.WriteString(h.Name)
	w.WriteBytes(h.Extra)
	w.WriteString(h.Comment)
}

// WriteZip64EndRecord writes the ZIP64 end-of-central-directory record.
func WriteZip64EndRecord(w *Writer, r *Zip64EndRecord) {
	w.Write32(Zip64CentralEndSig)
	w.Write64(r.RecordSize)
	w.Write16(r.VersionMadeBy)
	w.Write16(r.VersionNeeded)
	w.Write32(r.DiskNumber)
	w.Write32(r.DirStartDiskNumber)
	w.Write64(r.DiskNumEntries)
	w.Write64(r.TotalEntries)
	w.Write64(r.DirSize)
	w.Write64(r.DirOffset)
	w.WriteBytes(r.Extensible)
}

// WriteZip64Locator writes the ZIP64 end-of-central-directory locator.
func WriteZip64Locator(w *Writer, l *Zip64Locator) {
	w.Write32(Zip64LocatorSig)
	w.Write32(l.DiskNumber)
	w.Write64(l.DirOffset)
	w.Write32(l.NumDisks)
}

// WriteEndOfCentralDirectory writes the classic end-of-central-directory
// record with e's counts and sizes as given; Creator fills them with
// their ZIP64 sentinel values.
func WriteEndOfCentralDirectory(w *Writer, e *EndOfCentralDirectory) {
	w.Write32(CentralEndSig)
	w.Write16(e.DiskNumber)
	w.Write16(e.DirDiskNumber)
	w.Write16(e.DiskNumEntries)
	w.Write16(e.TotalEntries)
	w.Write32(e.DirSize)
	w.Write32(e.DirOffsetOnDisk)
	w.Write16(uint16(len(e.Comment)))
	w.WriteString(e.Comment)
}

// PackZip64Extra builds the tag-0x0001 ZIP64 extended-information extra
// field: uncompressed size, compressed size, local header offset, and a
// zero disk-start field, 28 bytes of payload after the 4-byte tag/size
// header.
func PackZip64Extra(uncompressedSize, compressedSize, localHeaderOffset uint64) []byte {
	buf := make([]byte, 4+28)
	binary.LittleEndian.PutUint16(buf[0:2], ExtraZip64)
	binary.LittleEndian.PutUint16(buf[2:4], 28)
	binary.LittleEndian.PutUint64(buf[4:12], uncompressedSize)
	binary.LittleEndian.PutUint64(buf[12:20], compressedSize)
	binary.LittleEndian.PutUint64(buf[20:28], localHeaderOffset)
	binary.LittleEndian.PutUint32(buf[28:32], 0)
	return buf
}

// PackUnixExtra builds the tag-0x000D Info-ZIP Unix extra field.
func PackUnixExtra(ue UnixExtra) []byte {
	size := 4 + 4 + 2 + 2 + len(ue.Data)
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint16(buf[0:2], ExtraUnix)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(size))
	binary.LittleEndian.PutUint32(buf[4:8], ue.Atime)
	binary.LittleEndian.PutUint32(buf[8:12], ue.Mtime)
	binary.LittleEndian.PutUint16(buf[12:14], ue.Uid)
	binary.LittleEndian.PutUint16(buf[14:16], ue.Gid)
	copy(buf[16:], ue.Data)
	return buf
}
