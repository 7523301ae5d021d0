// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !unix

package decompressor

import (
	"fmt"

	"github.com/cosnicolaou/pzip/internal/zipformat"
)

func createDevice(lh *zipformat.LocalHeader, outname string) error {
	return fmt.Errorf("character device nodes are not supported on this platform")
}

func applyTimesAndOwner(outname string, ue zipformat.UnixExtra) {
	// Ownership/atime application is a POSIX-only concern; nothing to
	// do on platforms without it.
}
