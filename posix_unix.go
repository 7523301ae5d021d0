// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build unix

package pzip

import (
	"fmt"
	"os"
	"syscall"
)

// statEntry stats name without following symlinks, capturing the
// POSIX metadata a ZIP Unix extra field needs.
//
// Grounded on original_source/src/fileutils.cpp's get_unix_stats.
func statEntry(name string) (FileInfo, error) {
	fi, err := os.Lstat(name)
	if err != nil {
		return FileInfo{}, fmt.Errorf("pzip: stat %q: %w", name, err)
	}
	sys, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return FileInfo{}, fmt.Errorf("pzip: stat %q: platform does not expose unix file metadata", name)
	}
	return FileInfo{
		Name:     name,
		RawMode:  uint32(sys.Mode),
		Size:     uint64(fi.Size()),
		DeviceID: uint64(sys.Rdev),
		Unix: UnixExtra{
			Atime: uint32(atime(sys)),
			Mtime: uint32(mtime(sys)),
			UID:   uint16(sys.Uid),
			GID:   uint16(sys.Gid),
		},
	}, nil
}
