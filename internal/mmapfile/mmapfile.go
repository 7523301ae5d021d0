// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package mmapfile provides a thin, RAII-style wrapper over memory
// mapping a file read-only, with a portable fallback for platforms
// without mmap support.
package mmapfile

// Mapping is a read-only view of a file's contents, acquired either via
// mmap or, on unsupported platforms, a plain in-memory read.
type Mapping struct {
	data []byte
	release func() error
}

// Bytes returns the mapped region. It is only valid until Close is called.
func (m *Mapping) Bytes() []byte { return m.data }

// Close releases the mapping.
func (m *Mapping) Close() error {
	if m.release == nil {
		return nil
	}
	release := m.release
	m.release = nil
	return release()
}
