// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cosnicolaou/pzip"
	"github.com/cosnicolaou/pzip/internal/zipformat"
)

// buildMinimalArchive hand-encodes a ZIP64 archive with zero-length,
// STORE-method entries named per names[:numLocals]/names[:numCentrals],
// letting each test lie about counts, flags or the end record's
// TotalEntries field to exercise ZipFile.Open's validation directly,
// without going through a Creator.
func buildMinimalArchive(t *testing.T, names []string, numLocals, numCentrals int, localFlags uint16, eocdTotalEntries uint16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := zipformat.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < numLocals; i++ {
		lh := &zipformat.LocalHeader{
			NeededVersion: zipformat.NeededVersion,
			GPBitflag:     localFlags,
			Compression:   zipformat.Store,
			Name:          names[i],
			Extra:         zipformat.PackZip64Extra(0, 0, 0),
		}
		zipformat.WriteLocalHeader(w, lh)
	}

	dirStart := w.Tell()
	for i := 0; i < numCentrals; i++ {
		ch := &zipformat.CentralHeader{
			VersionMadeBy:          zipformat.MadeByUnix<<8 | zipformat.NeededVersion,
			VersionNeeded:          zipformat.NeededVersion,
			CompressionMethod:      zipformat.Store,
			ExternalFileAttributes: 0100644 << 16,
			Name:                   names[i],
			Extra:                  zipformat.PackZip64Extra(0, 0, 0),
		}
		zipformat.WriteCentralHeader(w, ch)
	}
	dirEnd := w.Tell()

	zipformat.WriteEndOfCentralDirectory(w, &zipformat.EndOfCentralDirectory{
		TotalEntries:    eocdTotalEntries,
		DirSize:         uint32(dirEnd - dirStart),
		DirOffsetOnDisk: uint32(dirStart),
	})
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestZipFileOpenValid(t *testing.T) {
	path := buildMinimalArchive(t, []string{"a.txt", "b.txt"}, 2, 2, 0, 2)
	z, err := pzip.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer z.Close()
	if got, want := z.NumEntries(), 2; got != want {
		t.Errorf("NumEntries() = %d, want %d", got, want)
	}
}

func TestZipFileOpenRejectsEncrypted(t *testing.T) {
	path := buildMinimalArchive(t, []string{"secret.txt"}, 1, 1, zipformat.GPBitflagEncrypted, 1)
	if _, err := pzip.Open(path); err == nil {
		t.Fatalf("Open succeeded, want rejection of encrypted entry")
	}
}

func TestZipFileOpenRejectsAbsolutePath(t *testing.T) {
	path := buildMinimalArchive(t, []string{"/etc/passwd"}, 1, 1, 0, 1)
	if _, err := pzip.Open(path); err == nil {
		t.Fatalf("Open succeeded, want rejection of absolute path")
	}
}

func TestZipFileOpenRejectsMismatchedEntryCounts(t *testing.T) {
	path := buildMinimalArchive(t, []string{"a.txt", "b.txt"}, 2, 1, 0, 2)
	if _, err := pzip.Open(path); err == nil {
		t.Fatalf("Open succeeded, want rejection of local/central count mismatch")
	}
}

func TestZipFileOpenRejectsBadEOCDCount(t *testing.T) {
	path := buildMinimalArchive(t, []string{"a.txt"}, 1, 1, 0, 5)
	if _, err := pzip.Open(path); err == nil {
		t.Fatalf("Open succeeded, want rejection of EOCD TotalEntries mismatch")
	}
}

// TestZipFileOpenToleratesEOCDSentinel reproduces an archive whose
// classic end record reports the ZIP64 "too many entries" sentinel
// (0xFFFF) in TotalEntries even though no ZIP64 end record follows;
// Open must not treat that sentinel value as a mismatch.
func TestZipFileOpenToleratesEOCDSentinel(t *testing.T) {
	path := buildMinimalArchive(t, []string{"a.txt"}, 1, 1, 0, 0xFFFF)
	z, err := pzip.Open(path)
	if err != nil {
		t.Fatalf("Open: %v, want sentinel TotalEntries to be tolerated", err)
	}
	defer z.Close()
	if got, want := z.NumEntries(), 1; got != want {
		t.Errorf("NumEntries() = %d, want %d", got, want)
	}
}
