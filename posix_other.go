// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !unix

package pzip

import "fmt"

func statEntry(name string) (FileInfo, error) {
	return FileInfo{}, fmt.Errorf("pzip: stat %q: unix file metadata is not available on this platform", name)
}
