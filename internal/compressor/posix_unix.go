// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build unix

package compressor

import "golang.org/x/sys/unix"

// splitDevice decomposes a raw device ID into its major/minor parts
// using the platform's native encoding.
func splitDevice(dev uint64) (major, minor uint32) {
	return uint32(unix.Major(dev)), uint32(unix.Minor(dev))
}
