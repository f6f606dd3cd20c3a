// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package eventlog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/dining/services/dining/lock"
)

// LockName is the name of the resource that serializes writers.
const LockName = "log"

// ErrLogClosed indicates Record after Close.
var ErrLogClosed = errors.New("eventlog: log closed")

// Options locates the shared parts of an event log.
type Options struct {
	// RunDir holds the counter and the log lock.
	RunDir string

	// Output is the event log file.
	Output string

	// Sync fsyncs the sink after every record.
	Sync bool
}

// CreateSink creates (or truncates) the event log file at path and returns
// it open for appending.
func CreateSink(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return f, nil
}

// sink is the open event log file. *os.File implements it.
type sink interface {
	Write(p []byte) (int, error)
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Log is one process's writer on the shared event log.
//
// # Thread Safety
//
// A Log is NOT safe for concurrent use; each actor process owns one.
type Log struct {
	lock    *lock.Lock
	counter *Counter
	sink    sink
	sync    bool
}

// Open attaches to an event log whose counter, lock and sink were already
// allocated.
//
// # Outputs
//
//   - *Log: Writer ready for Record. Must be closed to detach.
//   - error: Non-nil if any part is missing; nothing stays attached.
func Open(opts Options) (*Log, error) {
	l, err := lock.Open(opts.RunDir, LockName)
	if err != nil {
		return nil, fmt.Errorf("attach log lock: %w", err)
	}
	counter, err := AttachCounter(opts.RunDir)
	if err != nil {
		l.Close()
		return nil, err
	}
	f, err := os.OpenFile(opts.Output, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		counter.Close()
		l.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Log{
		lock:    l,
		counter: counter,
		sink:    f,
		sync:    opts.Sync,
	}, nil
}

// Record appends one formatted line to the log as a single indivisible step.
//
// # Description
//
// Under the log lock: advance the counter, write "<seq>: <message>\n" and
// (optionally) fsync. The lock is never held outside this call. An empty
// template is a no-op that neither advances the counter nor writes.
//
// # Outputs
//
//   - uint64: The sequence number written, 0 for the no-op case.
//   - error: Non-nil if the line could not be written. A failed write takes
//     its sequence number back so the log stays gapless, and a short write
//     is cut off first so the next line starts on a line boundary. When the
//     cut fails the number stays used.
func (l *Log) Record(template string, args ...any) (seq uint64, err error) {
	if template == "" {
		return 0, nil
	}
	if l.sink == nil {
		return 0, ErrLogClosed
	}
	msg := strings.TrimRight(fmt.Sprintf(template, args...), "\n")

	if err := l.lock.Acquire(); err != nil {
		return 0, fmt.Errorf("record: %w", err)
	}
	defer func() {
		if rerr := l.lock.Release(); rerr != nil && err == nil {
			err = fmt.Errorf("record: %w", rerr)
		}
	}()

	info, err := l.sink.Stat()
	if err != nil {
		return 0, fmt.Errorf("record: stat: %w", err)
	}
	seq, err = l.counter.Next()
	if err != nil {
		return 0, err
	}

	line := make([]byte, 0, len(msg)+24)
	line = strconv.AppendUint(line, seq, 10)
	line = append(line, ": "...)
	line = append(line, msg...)
	line = append(line, '\n')

	if n, werr := l.sink.Write(line); werr != nil {
		if n > 0 {
			if terr := l.sink.Truncate(info.Size()); terr != nil {
				return 0, fmt.Errorf("record: write: %w", errors.Join(werr, terr))
			}
		}
		l.counter.undo()
		return 0, fmt.Errorf("record: write: %w", werr)
	}
	if l.sync {
		if err := l.sink.Sync(); err != nil {
			return seq, fmt.Errorf("record: sync: %w", err)
		}
	}
	return seq, nil
}

// Last returns the last sequence number handed out by any writer.
func (l *Log) Last() (uint64, error) {
	if l.counter == nil {
		return 0, ErrLogClosed
	}
	return l.counter.Load()
}

// Close detaches from the counter, the log lock and the sink. The shared
// resources themselves are left for their creator to destroy.
func (l *Log) Close() error {
	if l.sink == nil {
		return nil
	}
	errs := []error{
		l.sink.Close(),
		l.counter.Close(),
		l.lock.Close(),
	}
	l.sink = nil
	return errors.Join(errs...)
}
