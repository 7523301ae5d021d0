// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package decompressor implements the per-entry extraction workers
// used when unpacking an archive: STORE/DEFLATE/LZMA1 decoding, plus
// the non-regular-file entry kinds (directories, symlinks, character
// devices) and the atomic temp-file-then-rename write discipline used
// for regular files.
package decompressor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cosnicolaou/pzip/internal/zipformat"
)

// StopChecker allows a long-running decode loop to observe cooperative
// cancellation without this package depending on the root package's
// concrete TaskControl type.
type StopChecker interface {
	ThrowIfStopped() error
}

// EntryType classifies the filesystem object a header describes, as
// determined from its external file attributes.
type EntryType int

const (
	FileEntry EntryType = iota
	DirectoryEntry
	SymlinkEntry
	CharDeviceEntry
	UnknownEntry
)

// POSIX mode_t file-type bits; these are fixed numeric values defined
// by the ZIP spec's Unix external-attributes convention, not
// platform-dependent syscall constants, so no build tag is needed to
// use them.
const (
	sIFMT  = 0170000
	sIFDIR = 0040000
	sIFLNK = 0120000
	sIFCHR = 0020000
	sIFREG = 0100000
)

// tempSuffix is appended to the target path while an entry's data is
// being written, so that a crash or a failed CRC check never leaves a
// half-written file at the final name.
const tempSuffix = "$ZIPTMP"

func detectEntryType(lh *zipformat.LocalHeader, ch *zipformat.CentralHeader) (EntryType, error) {
	if ch.VersionMadeBy>>8 == zipformat.MadeByUnix {
		extattrs := uint32(ch.ExternalFileAttributes>>16) & sIFMT
		switch extattrs {
		case sIFDIR:
			return DirectoryEntry, nil
		case sIFLNK:
			if ch.CompressionMethod != zipformat.Store {
				return UnknownEntry, fmt.Errorf("symbolic link stored compressed, not supported")
			}
			return SymlinkEntry, nil
		case sIFCHR:
			return CharDeviceEntry, nil
		case sIFREG:
			return FileEntry, nil
		default:
			return UnknownEntry, nil
		}
	}
	if strings.HasSuffix(lh.Name, "/") {
		return DirectoryEntry, nil
	}
	return FileEntry, nil
}

// joinName builds the on-disk path for an entry, joining prefix and
// name with exactly one separating slash regardless of whether prefix
// already ends in one.
func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if strings.HasSuffix(prefix, "/") {
		return prefix + name
	}
	return prefix + "/" + name
}

// UnpackEntry extracts one archive entry to disk under prefix,
// dispatching on its detected type, and applies POSIX metadata
// (permissions, ownership, timestamps) once the data is in place. It
// never returns an error: failures are folded into the returned
// message, mirroring the per-entry result log a Creator's unpack
// counterpart keeps so that one bad entry doesn't abort the whole
// archive.
func UnpackEntry(prefix string, lh *zipformat.LocalHeader, ch *zipformat.CentralHeader, data []byte, tc StopChecker) (ok bool, message string) {
	outname := joinName(prefix, lh.Name)
	if err := doUnpack(lh, ch, data, outname, tc); err != nil {
		return false, fmt.Sprintf("FAIL: %s\n%v", lh.Name, err)
	}
	if ch.VersionMadeBy>>8 == zipformat.MadeByUnix {
		setUnixPermissions(lh, ch, outname)
	}
	return true, "OK: " + lh.Name
}

func doUnpack(lh *zipformat.LocalHeader, ch *zipformat.CentralHeader, data []byte, outname string, tc StopChecker) error {
	et, err := detectEntryType(lh, ch)
	if err != nil {
		return err
	}
	switch et {
	case DirectoryEntry:
		return os.MkdirAll(outname, 0777)
	case SymlinkEntry:
		return createSymlink(data, outname)
	case CharDeviceEntry:
		return createDevice(lh, outname)
	case FileEntry:
		return createFile(lh, ch, data, outname, tc)
	default:
		return fmt.Errorf("unknown file type")
	}
}

func createSymlink(data []byte, outname string) error {
	return os.Symlink(string(data), outname)
}

func createFile(lh *zipformat.LocalHeader, ch *zipformat.CentralHeader, data []byte, outname string, tc StopChecker) error {
	if _, err := os.Lstat(outname); err == nil {
		return fmt.Errorf("%s already exists, will not overwrite", outname)
	}
	if err := os.MkdirAll(filepath.Dir(outname), 0777); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	tmpname := outname + tempSuffix
	f, err := os.OpenFile(tmpname, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	crc, decodeErr := decodeAndWrite(ch.CompressionMethod, data, f, tc)
	closeErr := f.Close()
	if decodeErr != nil || closeErr != nil {
		os.Remove(tmpname)
		if decodeErr != nil {
			return decodeErr
		}
		return closeErr
	}

	want := lh.CRC32
	if lh.GPBitflag&zipformat.GPBitflagDeferredCRC != 0 {
		want = ch.CRC32
	}
	if crc != want {
		os.Remove(tmpname)
		return fmt.Errorf("CRC32 checksum is invalid")
	}
	if err := os.Rename(tmpname, outname); err != nil {
		os.Remove(tmpname)
		return fmt.Errorf("rename temp file to target: %w", err)
	}
	return nil
}

// setUnixPermissions applies POSIX mode/ownership/timestamps to a
// newly extracted entry. It mirrors the reference implementation by
// silently ignoring failures here: chown in particular routinely
// fails for an unprivileged extracting process, and that alone should
// not fail an otherwise-successful extraction.
func setUnixPermissions(lh *zipformat.LocalHeader, ch *zipformat.CentralHeader, outname string) {
	os.Chmod(outname, os.FileMode(ch.ExternalFileAttributes>>16)&0o7777)
	if lh.Unix.Atime != 0 {
		applyTimesAndOwner(outname, lh.Unix)
	}
}
