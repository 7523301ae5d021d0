// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !unix

package mmapfile

import (
	"fmt"
	"io"
	"os"
)

// Map provides limited support for platforms without a real mmap: the
// whole file is read into memory once. It is correct but defeats the
// point of zero-copy access for very large archives; spec'd as
// "optional limited support on other platforms".
func Map(f *os.File) (*Mapping, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mmapfile: seek: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: read: %w", err)
	}
	return &Mapping{data: data, release: func() error { return nil }}, nil
}
