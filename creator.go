// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"context"
	"fmt"
	"math/bits"
	"os"
	"runtime"
	"time"

	"github.com/cosnicolaou/pzip/internal/compressor"
	"github.com/cosnicolaou/pzip/internal/zipformat"
)

// queueSize is the per-entry ByteQueue capacity: large enough that a
// worker rarely blocks on backpressure, sized down on 32-bit platforms
// where a full 1GiB buffer per in-flight entry is not affordable.
var queueSize int64 = func() int64 {
	if bits.UintSize > 32 {
		return 1024 * 1024 * 1024
	}
	return 10 * 1024 * 2014
}()

// compressionTask tracks one entry's in-flight compression: its
// ByteQueue, the goroutine compressing into it, and the result it will
// eventually produce.
type compressionTask struct {
	fi     FileInfo
	queue  *ByteQueue
	result chan taskResult
}

type taskResult struct {
	res CompressResult
	err error
}

// Creator writes a ZIP64 archive to path, driving one compression
// goroutine per in-flight entry and writing each entry's data to the
// output file as it becomes available, in the order Create was called
// with, not the order entries finish compressing.
type Creator struct {
	path string
	tc   *TaskControl
	opts *creatorOptions
}

// NewCreator returns a Creator that will write a new archive at path.
// The file is not opened until Create is called.
func NewCreator(path string, opts ...CreatorOption) (*Creator, error) {
	return &Creator{path: path, tc: NewTaskControl(), opts: newCreatorOptions(opts...)}, nil
}

// Create launches archive creation in a background goroutine and
// returns immediately with a TaskControl the caller can poll or use to
// request cancellation; the archive is complete once
// TaskControl.State() reports TaskFinished. Create panics if called
// more than once on the same Creator, mirroring the original's
// logic_error for reuse.
func (c *Creator) Create(ctx context.Context, files []FileInfo, numThreads int) *TaskControl {
	if c.tc.State() != TaskNotStarted {
		panic("pzip: Create called twice on the same Creator")
	}
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	if err := c.tc.Reserve(len(files)); err != nil {
		panic(err)
	}
	c.tc.SetState(TaskRunning)
	c.opts.trace("pzip: create: %d files, %d workers", len(files), numThreads)
	go func() {
		if err := c.run(ctx, files, numThreads); err != nil {
			c.tc.AddFailure(fmt.Sprintf("FAIL: %v", err))
		}
		c.opts.trace("pzip: create: finished, %d ok, %d failed", c.tc.Successes(), c.tc.Failures())
		c.tc.SetState(TaskFinished)
	}()
	return c.tc
}

// useLZMA mirrors the original's temporary platform hack: LZMA1 is
// only enabled on Linux until its other-platform codepaths are
// revisited (original_source/src/zipcreator.cpp's run() comment).
const useLZMA = runtime.GOOS == "linux"

func (c *Creator) run(ctx context.Context, files []FileInfo, numThreads int) error {
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("create %q: %w", c.path, err)
	}
	defer f.Close()
	w, err := zipformat.NewWriter(f)
	if err != nil {
		return fmt.Errorf("init writer: %w", err)
	}

	var tasks []*compressionTask
	var centrals []*zipformat.CentralHeader

	launch := func(fi FileInfo) {
		t := &compressionTask{
			fi:     fi,
			queue:  NewByteQueue(queueSize),
			result: make(chan taskResult, 1),
		}
		go func() {
			entry := toCompressorEntry(fi)
			res, err := compressor.CompressEntry(entry, t.queue, c.opts.useLZMA, c.tc)
			t.queue.Shutdown()
			t.result <- taskResult{res: toCompressResult(classifyMode(fi.RawMode), res), err: err}
		}()
		tasks = append(tasks, t)
	}

	// popOneDone writes the oldest in-flight task to the output file if
	// its queue is in the given state, removing it from tasks. Only the
	// head of tasks is considered, so entries are written in the order
	// they were submitted. It mirrors the original's
	// pop_with_state/pop_future: poll every 50ms until that task is
	// either full (stream it now) or shut down (it is done).
	popOneDone := func(state QueueState) bool {
		if len(tasks) == 0 || tasks[0].queue.State() != state {
			return false
		}
		t := tasks[0]
		ch, err := writeEntry(w, t)
		if err != nil {
			c.tc.AddFailure(fmt.Sprintf("FAIL: %s: %v", t.fi.Name, err))
		} else {
			centrals = append(centrals, ch)
			c.tc.AddSuccess("OK: " + t.fi.Name)
			c.opts.trace("pzip: create: wrote %s (%s, %d bytes)", t.fi.Name, Compression(ch.CompressionMethod), ch.CompressedSize)
			if c.opts.progress != nil {
				select {
				case c.opts.progress <- Progress{Entry: c.tc.Finished(), Name: t.fi.Name, CompressedSize: ch.CompressedSize}:
				default:
				}
			}
		}
		tasks = tasks[1:]
		return true
	}

	// popFuture also drains in-flight tasks after a stop request; their
	// workers observe it between chunks and report a failure.
	popFuture := func() {
		for {
			if popOneDone(QueueFull) {
				return
			}
			if popOneDone(QueueShutdown) {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}

	for _, fi := range files {
		if c.tc.ShouldStop() || ctx.Err() != nil {
			break
		}
		for len(tasks) >= numThreads {
			popFuture()
		}
		launch(fi)
	}
	for len(tasks) > 0 {
		popFuture()
	}

	if len(centrals) == 0 {
		return fmt.Errorf("all files failed to compress")
	}
	if c.tc.ShouldStop() || ctx.Err() != nil {
		return nil
	}
	return writeCentralDirectory(w, centrals)
}

func toCompressorEntry(fi FileInfo) compressor.Entry {
	return compressor.Entry{
		Path:     fi.Name,
		Name:     fi.Name,
		Type:     compressor.EntryType(classifyMode(fi.RawMode)),
		RawMode:  fi.RawMode,
		Size:     fi.Size,
		DeviceID: fi.DeviceID,
		Unix: compressor.UnixExtra{
			Atime: fi.Unix.Atime,
			Mtime: fi.Unix.Mtime,
			UID:   fi.Unix.UID,
			GID:   fi.Unix.GID,
			Data:  fi.Unix.Data,
		},
	}
}

func toCompressResult(entryType EntryType, r compressor.Result) CompressResult {
	return CompressResult{
		EntryType:          entryType,
		Method:             Compression(r.Method),
		CRC32:              r.CRC32,
		AdditionalUnixData: r.AdditionalUnixData,
	}
}

// POSIX mode_t file-type bits; see internal/decompressor for the
// matching reader-side constants.
const (
	modeFmt  = 0170000
	modeDir  = 0040000
	modeLnk  = 0120000
	modeChr  = 0020000
	modeReg  = 0100000
)

func classifyMode(mode uint32) EntryType {
	switch mode & modeFmt {
	case modeDir:
		return DirectoryEntry
	case modeLnk:
		return SymlinkEntry
	case modeChr:
		return CharDeviceEntry
	case modeReg:
		return FileEntry
	default:
		return UnknownEntry
	}
}

// writeEntry writes one entry's local header, streams its data out of
// the task's ByteQueue, then rewrites the local header with the final
// sizes now that they are known, and returns the central directory
// header to be written once every entry has been processed.
//
// Grounded on original_source/src/zipcreator.cpp's write_entry: the
// local header is written twice, once with placeholder ZIP64 sizes
// before the data (because the header must precede the data but the
// final compressed size isn't known until the ByteQueue has been fully
// drained), then again after, by seeking back.
func writeEntry(w *zipformat.Writer, t *compressionTask) (*zipformat.CentralHeader, error) {
	result := <-t.result
	if result.err != nil {
		drainQueue(t.queue)
		return nil, result.err
	}
	fi := t.fi
	name := fi.Name
	if result.res.EntryType == DirectoryEntry && (len(name) == 0 || name[len(name)-1] != '/') {
		name += "/"
	}
	unixData := append(append([]byte{}, result.res.AdditionalUnixData...), fi.Unix.Data...)

	localOffset := uint64(w.Tell())
	lh := &zipformat.LocalHeader{
		NeededVersion:    zipformat.NeededVersion,
		GPBitflag:        zipformat.GPBitflagLZMAEOS,
		Compression:      uint16(result.res.Method),
		CRC32:            result.res.CRC32,
		Name:             name,
		Unix: zipformat.UnixExtra{
			Atime: fi.Unix.Atime,
			Mtime: fi.Unix.Mtime,
			Uid:   fi.Unix.UID,
			Gid:   fi.Unix.GID,
			Data:  unixData,
		},
	}
	lh.Extra = append(zipformat.PackZip64Extra(fi.Size, 0, localOffset), zipformat.PackUnixExtra(lh.Unix)...)
	zipformat.WriteLocalHeader(w, lh)

	dataStart := w.Tell()
	writeQueueData(w, t.queue)
	dataEnd := w.Tell()
	compressedSize := uint64(dataEnd - dataStart)

	lh.Extra = append(zipformat.PackZip64Extra(fi.Size, compressedSize, localOffset), zipformat.PackUnixExtra(lh.Unix)...)
	if err := w.SeekTo(localOffset); err != nil {
		return nil, err
	}
	zipformat.WriteLocalHeader(w, lh)
	if err := w.SeekTo(dataEnd); err != nil {
		return nil, err
	}
	if err := w.Err(); err != nil {
		return nil, err
	}

	ch := &zipformat.CentralHeader{
		VersionMadeBy:          zipformat.MadeByUnix<<8 | zipformat.NeededVersion,
		VersionNeeded:          lh.NeededVersion,
		BitFlag:                lh.GPBitflag,
		CompressionMethod:      lh.Compression,
		CRC32:                  lh.CRC32,
		CompressedSize:         compressedSize,
		UncompressedSize:       fi.Size,
		DiskNumberStart:        0,
		InternalFileAttributes: 0,
		ExternalFileAttributes: fi.RawMode << 16,
		LocalHeaderOffset:      localOffset,
		Name:                   name,
		Extra:                  lh.Extra,
	}
	return ch, nil
}

// writeQueueData drains t's ByteQueue to w until it observes shutdown,
// mirroring the original's write_file: pop/write in a loop, with one
// final pop after the shutdown is observed to catch any data pushed
// in the same instant the producer shut the queue down.
func writeQueueData(w *zipformat.Writer, q *ByteQueue) {
	for {
		buf := q.Pop()
		w.WriteBytes(buf)
		if q.State() == QueueShutdown {
			break
		}
	}
	final := q.Pop()
	w.WriteBytes(final)
}

func drainQueue(q *ByteQueue) {
	for q.State() != QueueShutdown {
		q.Pop()
	}
	q.Pop()
}

func writeCentralDirectory(w *zipformat.Writer, chs []*zipformat.CentralHeader) error {
	dirOffset := uint64(w.Tell())
	for _, ch := range chs {
		zipformat.WriteCentralHeader(w, ch)
	}
	dirEnd := uint64(w.Tell())

	z64r := &zipformat.Zip64EndRecord{
		RecordSize:         2 + 2 + 4 + 4 + 8 + 8 + 8 + 8,
		VersionMadeBy:      chs[0].VersionMadeBy,
		VersionNeeded:      zipformat.NeededVersion,
		DiskNumber:         0,
		DirStartDiskNumber: 0,
		DiskNumEntries:     uint64(len(chs)),
		TotalEntries:       uint64(len(chs)),
		DirSize:            dirEnd - dirOffset,
		DirOffset:          dirOffset,
	}
	zipformat.WriteZip64EndRecord(w, z64r)

	z64l := &zipformat.Zip64Locator{
		DiskNumber: 0,
		DirOffset:  dirEnd,
		NumDisks:   1,
	}
	zipformat.WriteZip64Locator(w, z64l)

	eod := &zipformat.EndOfCentralDirectory{
		DiskNumber:      0,
		DirDiskNumber:   0,
		DiskNumEntries:  0xFFFF,
		TotalEntries:    0xFFFF,
		DirSize:         0xFFFFFFFF,
		DirOffsetOnDisk: 0xFFFFFFFF,
	}
	zipformat.WriteEndOfCentralDirectory(w, eod)
	return w.Err()
}
