// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"fmt"
	"os"

	"github.com/cosnicolaou/pzip/internal/mmapfile"
	"github.com/cosnicolaou/pzip/internal/zipformat"
)

// ZipFile is an opened, fully-parsed ZIP64 archive: its local and
// central directory headers have been read and cross-checked, and its
// contents are memory-mapped for zero-copy access during Unzip.
type ZipFile struct {
	path        string
	f           *os.File
	mapping     *mmapfile.Mapping
	locals      []*zipformat.LocalHeader
	centrals    []*zipformat.CentralHeader
	dataOffsets []int64
}

// Open parses the archive at path: it memory-maps the file, reads
// every local file header and central directory header, and validates
// the cross-record invariants (matching entry counts, no encryption,
// no absolute paths) before returning. The returned ZipFile owns the
// underlying mapping until Close is called.
func Open(path string) (*ZipFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pzip: open %q: %w", path, err)
	}
	m, err := mmapfile.Map(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pzip: mmap %q: %w", path, err)
	}
	z := &ZipFile{path: path, f: f, mapping: m}
	if err := z.parse(); err != nil {
		m.Close()
		f.Close()
		return nil, err
	}
	return z, nil
}

// Close releases the archive's memory mapping and underlying file
// handle.
func (z *ZipFile) Close() error {
	err := z.mapping.Close()
	if cerr := z.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (z *ZipFile) parse() error {
	c := zipformat.NewCursor(z.mapping.Bytes())

	for {
		sig, err := c.Peek32()
		if err != nil || sig != zipformat.LocalSig {
			break
		}
		lh, err := zipformat.ReadLocalHeader(c)
		if err != nil {
			return fmt.Errorf("pzip: local header %d: %w", len(z.locals), err)
		}
		if lh.GPBitflag&zipformat.GPBitflagEncrypted != 0 {
			return fmt.Errorf("pzip: entry %q is encrypted, encrypted archives are not supported", lh.Name)
		}
		if isAbsolute(lh.Name) {
			return fmt.Errorf("pzip: entry %q has an absolute path, refusing to open", lh.Name)
		}
		z.locals = append(z.locals, lh)
		z.dataOffsets = append(z.dataOffsets, c.Tell())
		if err := c.Skip(int64(lh.CompressedSize)); err != nil {
			return fmt.Errorf("pzip: entry %q: data region: %w", lh.Name, err)
		}
		if lh.GPBitflag&zipformat.GPBitflagDeferredCRC != 0 {
			// A trailing data descriptor (crc32, compressed size,
			// uncompressed size) follows the entry's data.
			if err := c.Skip(12); err != nil {
				return fmt.Errorf("pzip: entry %q: data descriptor: %w", lh.Name, err)
			}
		}
	}

	for {
		sig, err := c.Peek32()
		if err != nil || sig != zipformat.CentralSig {
			break
		}
		ch, err := zipformat.ReadCentralHeader(c)
		if err != nil {
			return fmt.Errorf("pzip: central header %d: %w", len(z.centrals), err)
		}
		z.centrals = append(z.centrals, ch)
	}

	if len(z.locals) != len(z.centrals) {
		return fmt.Errorf("pzip: mismatch: file has %d local entries but %d central entries", len(z.locals), len(z.centrals))
	}

	sig, err := c.Read32()
	if err != nil {
		return fmt.Errorf("pzip: end of central directory: %w", err)
	}
	if sig == zipformat.Zip64CentralEndSig {
		z64end, err := zipformat.ReadZip64EndRecord(c)
		if err != nil {
			return fmt.Errorf("pzip: zip64 end record: %w", err)
		}
		if z64end.TotalEntries != uint64(len(z.locals)) {
			return fmt.Errorf("pzip: file is broken, zip64 directory has incorrect number of entries")
		}
		sig, err = c.Read32()
		if err != nil {
			return fmt.Errorf("pzip: after zip64 end record: %w", err)
		}
		if sig == zipformat.Zip64LocatorSig {
			if _, err := zipformat.ReadZip64Locator(c); err != nil {
				return fmt.Errorf("pzip: zip64 locator: %w", err)
			}
			sig, err = c.Read32()
			if err != nil {
				return fmt.Errorf("pzip: after zip64 locator: %w", err)
			}
		}
	}
	if sig != zipformat.CentralEndSig {
		return fmt.Errorf("pzip: zip file broken, missing end locator")
	}
	eod, err := zipformat.ReadEndOfCentralDirectory(c)
	if err != nil {
		return fmt.Errorf("pzip: end of central directory record: %w", err)
	}
	if eod.TotalEntries != 0xFFFF && int(eod.TotalEntries) != len(z.locals) {
		return fmt.Errorf("pzip: zip file broken, end record has incorrect directory size")
	}
	return nil
}

func isAbsolute(name string) bool {
	return IsAbsolutePath(name)
}

// NumEntries returns the number of entries in the archive.
func (z *ZipFile) NumEntries() int { return len(z.locals) }
