// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build unix

package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map memory-maps f read-only for its current size. The returned
// Mapping must be released with Close once no worker still references
// its Bytes(); the caller is responsible for keeping f open for at
// least as long as the mapping is live on some platforms, though on
// Linux/BSD the mapping remains valid after the fd is closed.
func Map(f *os.File) (*Mapping, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmapfile: stat: %w", err)
	}
	size := fi.Size()
	if size == 0 {
		// mmap of a zero-length region is rejected by the kernel; return
		// an empty, harmless mapping instead.
		return &Mapping{data: nil, release: func() error { return nil }}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap: %w", err)
	}
	return &Mapping{
		data: data,
		release: func() error {
			return unix.Munmap(data)
		},
	}, nil
}
