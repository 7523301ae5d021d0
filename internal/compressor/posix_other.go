// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !unix

package compressor

// splitDevice returns 0, 0 on platforms without character devices,
// where the root package's file scanning never yields a character
// device entry.
func splitDevice(dev uint64) (major, minor uint32) {
	return 0, 0
}
