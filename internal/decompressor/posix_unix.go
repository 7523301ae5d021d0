// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build unix

package decompressor

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cosnicolaou/pzip/internal/zipformat"
)

func createDevice(lh *zipformat.LocalHeader, outname string) error {
	d := lh.Unix.Data
	if len(d) != 8 {
		return fmt.Errorf("incorrect extra data for character device")
	}
	major := binary.LittleEndian.Uint32(d[0:4])
	minor := binary.LittleEndian.Uint32(d[4:8])
	dev := unix.Mkdev(major, minor)
	if err := unix.Mknod(outname, unix.S_IFCHR|0666, int(dev)); err != nil {
		return fmt.Errorf("create device node: %w", err)
	}
	return nil
}

// applyTimesAndOwner sets the access/modification time and numeric
// uid/gid recorded in an entry's Unix extra field. Failures (e.g. lack
// of privilege to chown) are intentionally ignored here.
func applyTimesAndOwner(outname string, ue zipformat.UnixExtra) {
	atime := time.Unix(int64(ue.Atime), 0)
	mtime := time.Unix(int64(ue.Mtime), 0)
	os.Chtimes(outname, atime, mtime)
	os.Chown(outname, int(ue.Uid), int(ue.Gid))
}
