// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import "log"

// Progress is sent on a caller-supplied channel (see WithProgress) as
// each entry is packed or unpacked successfully, mirroring the update
// pbzip2.Progress carries for its block-level callbacks. Sends never
// block: an update is dropped when the channel has no room.
type Progress struct {
	// Entry is the number of entries completed so far, monotonically
	// increasing.
	Entry int
	// Name is the entry that just finished.
	Name string
	// CompressedSize is the final on-disk size of that entry's data.
	CompressedSize uint64
}

// CreatorOption configures a Creator, mirroring the functional-options
// pattern DecompressorOption/ScannerOption use in the teacher's
// parallel.go/scanner.go.
type CreatorOption func(*creatorOptions)

type creatorOptions struct {
	verbose  bool
	useLZMA  bool
	progress chan<- Progress
}

// WithVerbose traces task-list transitions to the standard log package,
// the way Decompressor.trace does when its Verbose option is set.
func WithVerbose(v bool) CreatorOption {
	return func(o *creatorOptions) { o.verbose = v }
}

// WithUseLZMA overrides the platform default for whether LZMA1 is
// attempted (see the useLZMA constant); tests use this to exercise
// the LZMA path on platforms where it is otherwise disabled.
func WithUseLZMA(v bool) CreatorOption {
	return func(o *creatorOptions) { o.useLZMA = v }
}

// WithProgress requests a Progress update on ch after each entry is
// written successfully; failed entries send none, and an update is
// dropped when ch is full. ch is never closed by the Creator; the caller owns it.
func WithProgress(ch chan<- Progress) CreatorOption {
	return func(o *creatorOptions) { o.progress = ch }
}

func newCreatorOptions(opts ...CreatorOption) *creatorOptions {
	o := &creatorOptions{useLZMA: useLZMA}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

func (o *creatorOptions) trace(format string, args ...interface{}) {
	if o.verbose {
		log.Printf(format, args...)
	}
}

// UnzipOption configures a ZipFile.Unzip call.
type UnzipOption func(*unzipOptions)

type unzipOptions struct {
	verbose  bool
	progress chan<- Progress
}

// WithUnzipVerbose traces task-list transitions during extraction.
func WithUnzipVerbose(v bool) UnzipOption {
	return func(o *unzipOptions) { o.verbose = v }
}

// WithUnzipProgress requests a Progress update on ch after each entry
// extracts successfully, on the same non-blocking terms as
// WithProgress.
func WithUnzipProgress(ch chan<- Progress) UnzipOption {
	return func(o *unzipOptions) { o.progress = ch }
}

func newUnzipOptions(opts ...UnzipOption) *unzipOptions {
	o := &unzipOptions{}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

func (o *unzipOptions) trace(format string, args ...interface{}) {
	if o.verbose {
		log.Printf(format, args...)
	}
}
