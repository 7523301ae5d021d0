// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/cosnicolaou/pzip/internal/decompressor"
)

// Unzip extracts every entry in z to files rooted at prefix, using up
// to numThreads worker goroutines. It returns immediately with a
// TaskControl the caller can poll or use to request cancellation;
// extraction is complete once TaskControl.State() reports TaskFinished.
//
// Grounded on original_source/src/parunzip.cpp's parallel worker-pool
// loop (plus the archive-record walking in zipfile.h/zipfile.cpp):
// entries are handed out to a bounded number of goroutines in archive
// order, each decoding straight out of the archive's memory mapping,
// with no ordering guarantee on completion (unlike Create, entries do
// not need to be written in a particular order since each extracts to
// its own independent file).
func (z *ZipFile) Unzip(ctx context.Context, prefix string, numThreads int, opts ...UnzipOption) *TaskControl {
	tc := NewTaskControl()
	o := newUnzipOptions(opts...)
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	if err := tc.Reserve(len(z.locals)); err != nil {
		panic(err)
	}
	tc.SetState(TaskRunning)
	o.trace("pzip: unzip: %d entries, %d workers", len(z.locals), numThreads)
	go func() {
		z.unzip(ctx, prefix, numThreads, tc, o)
		o.trace("pzip: unzip: finished, %d ok, %d failed", tc.Successes(), tc.Failures())
		tc.SetState(TaskFinished)
	}()
	return tc
}

func (z *ZipFile) unzip(ctx context.Context, prefix string, numThreads int, tc *TaskControl, o *unzipOptions) {
	sem := semaphore.NewWeighted(int64(numThreads))
	results := make(chan struct {
		ok   bool
		msg  string
		name string
		size uint64
	}, len(z.locals))

	launched := 0
	for i := range z.locals {
		if tc.ShouldStop() || ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		launched++
		go func(i int) {
			defer sem.Release(1)
			lh := z.locals[i]
			ch := z.centrals[i]
			data := z.entryData(i)
			ok, msg := decompressor.UnpackEntry(prefix, lh, ch, data, tc)
			results <- struct {
				ok   bool
				msg  string
				name string
				size uint64
			}{ok, msg, lh.Name, lh.CompressedSize}
		}(i)
	}
	for i := 0; i < launched; i++ {
		r := <-results
		if r.ok {
			tc.AddSuccess(r.msg)
			if o.progress != nil {
				select {
				case o.progress <- Progress{Entry: tc.Finished(), Name: r.name, CompressedSize: r.size}:
				default:
				}
			}
		} else {
			tc.AddFailure(r.msg)
		}
	}
}

// entryData returns the memory-mapped slice holding entry i's raw
// (still-compressed) data, aliasing the archive's mapping directly.
func (z *ZipFile) entryData(i int) []byte {
	start := z.dataOffsets[i]
	end := start + int64(z.locals[i].CompressedSize)
	return z.mapping.Bytes()[start:end]
}
