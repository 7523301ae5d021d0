// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build unix && !darwin

package pzip

import "syscall"

func atime(sys *syscall.Stat_t) int64 { return sys.Atim.Sec }
func mtime(sys *syscall.Stat_t) int64 { return sys.Mtim.Sec }
