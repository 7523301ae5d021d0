// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"sort"
	"strings"

	"github.com/cosnicolaou/pzip/internal/natural"
)

// TreeFile is one regular file entry within a DirectoryTree.
type TreeFile struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
}

// DirectoryTree is a recursive view of an archive's entries, grouped
// into directories the way a file browser would display them, with
// subdirectories and files within each directory sorted in natural
// order (embedded digit runs compared numerically, so "file2" sorts
// before "file10").
type DirectoryTree struct {
	Name    string
	Subdirs []*DirectoryTree
	Files   []TreeFile
}

// BuildTree walks z's local headers and constructs the DirectoryTree
// for the whole archive. An entry's name is split on "/"; every path
// component but the last descends into (creating if necessary) a
// subdirectory node. Entries whose names end in "/" are explicit
// directory entries and contribute no file record, only the
// directory path itself.
//
// Grounded on spec.md's directory tree construction description;
// there is no original_source/ equivalent since the C++ implementation
// treats this as a read-only helper rather than a core operation.
func (z *ZipFile) BuildTree() *DirectoryTree {
	root := &DirectoryTree{}
	for _, lh := range z.locals {
		isDir := strings.HasSuffix(lh.Name, "/")
		parts := strings.Split(strings.Trim(lh.Name, "/"), "/")
		if len(parts) == 1 && parts[0] == "" {
			continue
		}
		dir := root
		for i := 0; i < len(parts)-1; i++ {
			dir = dir.child(parts[i])
		}
		last := parts[len(parts)-1]
		if isDir {
			dir.child(last)
			continue
		}
		dir.Files = append(dir.Files, TreeFile{
			Name:             last,
			CompressedSize:   lh.CompressedSize,
			UncompressedSize: lh.UncompressedSize,
		})
	}
	root.sort()
	return root
}

// child returns the subdirectory of d named name, creating it if it
// does not already exist.
func (d *DirectoryTree) child(name string) *DirectoryTree {
	for _, s := range d.Subdirs {
		if s.Name == name {
			return s
		}
	}
	s := &DirectoryTree{Name: name}
	d.Subdirs = append(d.Subdirs, s)
	return s
}

func (d *DirectoryTree) sort() {
	sort.Slice(d.Subdirs, func(i, j int) bool {
		return natural.Less(d.Subdirs[i].Name, d.Subdirs[j].Name)
	})
	sort.Slice(d.Files, func(i, j int) bool {
		return natural.Less(d.Files[i].Name, d.Files[j].Name)
	})
	for _, s := range d.Subdirs {
		s.sort()
	}
}
