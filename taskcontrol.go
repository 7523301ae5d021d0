// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"fmt"
	"sync"
)

// TaskState describes the lifecycle stage of a Creator or unpack
// operation. It advances monotonically: NotStarted -> Running ->
// Finished.
type TaskState int

const (
	TaskNotStarted TaskState = iota
	TaskRunning
	TaskFinished
)

func (s TaskState) String() string {
	switch s {
	case TaskNotStarted:
		return "not-started"
	case TaskRunning:
		return "running"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ErrStopped is returned by operations that observe TaskControl.Stop
// having been called.
var ErrStopped = fmt.Errorf("pzip: operation stopped")

// TaskControl is a mutex-guarded handle shared between the goroutine
// driving a pack or unpack operation and whatever is monitoring its
// progress (a CLI progress bar, a test, a caller's context). It
// records per-entry results and supports cooperative cancellation
// independent of, and in addition to, context.Context cancellation:
// some callers want to stop a Creator without plumbing a context
// through every call site, and TaskControl's stop flag is sticky and
// introspectable via ShouldStop/ThrowIfStopped in a way a bare
// context.Err() is not until the derived context actually observes
// cancellation.
type TaskControl struct {
	mu       sync.Mutex
	state    TaskState
	results  []string
	total    int
	success  int
	failures int
	stopped  bool
}

// NewTaskControl returns a TaskControl in the NotStarted state.
func NewTaskControl() *TaskControl {
	return &TaskControl{}
}

// Reserve records the total number of entries the operation will
// process and preallocates space for their results. It must be called
// before the operation starts; calling it again once the state has
// advanced past NotStarted is a programmer error, mirroring the
// original's reserve() throwing logic_error("Called reserve after
// task has started.").
func (t *TaskControl) Reserve(numEntries int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskNotStarted {
		return fmt.Errorf("pzip: Reserve called after task has started")
	}
	t.total = numEntries
	if cap(t.results) < numEntries {
		results := make([]string, len(t.results), numEntries)
		copy(results, t.results)
		t.results = results
	}
	return nil
}

// State returns the current lifecycle state.
func (t *TaskControl) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState advances the lifecycle state. Callers are expected to call
// it with monotonically increasing states; it does not itself enforce
// that, mirroring the original's unchecked setter.
func (t *TaskControl) SetState(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// Successes returns the number of entries recorded via AddSuccess.
func (t *TaskControl) Successes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success
}

// Failures returns the number of entries recorded via AddFailure.
func (t *TaskControl) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// Total returns the number of entries the operation was reserved for,
// regardless of how many have finished so far.
func (t *TaskControl) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// AddSuccess records a successful entry with an associated message,
// typically the archive path that was packed or unpacked.
func (t *TaskControl) AddSuccess(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, msg)
	t.success++
}

// AddFailure records a failed entry with an associated message,
// typically an "<path>: <error>" string.
func (t *TaskControl) AddFailure(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, msg)
	t.failures++
}

// Finished returns the number of entries recorded so far.
func (t *TaskControl) Finished() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.results)
}

// Entry returns the result message recorded at index i.
func (t *TaskControl) Entry(i int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.results[i]
}

// Stop requests cooperative cancellation of the running operation.
// It is sticky: once called, ShouldStop and ThrowIfStopped report the
// stopped condition for the lifetime of the TaskControl.
func (t *TaskControl) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// ShouldStop reports whether Stop has been called.
func (t *TaskControl) ShouldStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// ThrowIfStopped returns ErrStopped if Stop has been called, nil
// otherwise. The compression and decompression workers check it
// before each chunk they encode or decode, so a stop request takes
// effect mid-entry: the entry in progress is abandoned and recorded as
// a failure.
func (t *TaskControl) ThrowIfStopped() error {
	if t.ShouldStop() {
		return ErrStopped
	}
	return nil
}
