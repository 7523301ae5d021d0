// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// IsAbsolutePath reports whether fname is an absolute path on any
// platform ZIP files need to travel between, unlike the standard
// library's filepath.IsAbs, which only recognizes the host platform's
// own convention.
//
// Grounded on original_source/src/fileutils.cpp's is_absolute_path.
func IsAbsolutePath(fname string) bool {
	if fname == "" {
		return false
	}
	if fname[0] == '/' || fname[0] == '\\' {
		return true
	}
	if len(fname) > 2 && fname[1] == ':' && (fname[2] == '/' || fname[2] == '\\') {
		return true
	}
	return false
}

// ExpandFiles walks each of originals, recursing into directories in
// sorted order to keep archive contents reproducible, and returns a
// FileInfo for every file, directory, symlink, and character device
// encountered. It refuses any path that is empty or absolute.
//
// Grounded on original_source/src/fileutils.cpp's expand_files/
// expand_entry/expand_dir/get_unix_stats.
func ExpandFiles(originals []string) ([]FileInfo, error) {
	var result []FileInfo
	for _, s := range originals {
		if s == "" {
			return nil, fmt.Errorf("pzip: empty file name not permitted")
		}
		if IsAbsolutePath(s) {
			return nil, fmt.Errorf("pzip: absolute file names are forbidden in zip files: %q", s)
		}
		entries, err := expandEntry(s)
		if err != nil {
			return nil, err
		}
		result = append(result, entries...)
	}
	return result, nil
}

func expandEntry(name string) ([]FileInfo, error) {
	fi, err := statEntry(name)
	if err != nil {
		return nil, err
	}
	result := []FileInfo{fi}
	if fi.RawMode&modeFmt == modeDir {
		children, err := expandDir(name)
		if err != nil {
			return nil, err
		}
		result = append(result, children...)
	}
	return result, nil
}

func expandDir(dirname string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("pzip: read directory %q: %w", dirname, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var result []FileInfo
	for _, base := range names {
		children, err := expandEntry(strings.TrimSuffix(dirname, "/") + "/" + base)
		if err != nil {
			return nil, err
		}
		result = append(result, children...)
	}
	return result, nil
}

