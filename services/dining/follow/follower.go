// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package follow tails a live event log and emits its records as they are
// written.
package follow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/services/dining/eventlog"
)

// ErrRemoved is returned by Run when the followed file is deleted or
// renamed away.
var ErrRemoved = errors.New("follow: event log removed")

// Handler receives each complete record. A non-nil error stops Run.
type Handler func(eventlog.Event) error

// Follower tails one event log file.
//
// # Description
//
// The file's directory is watched with fsnotify so that writes, removal
// and re-creation by a new run are all seen. Only complete lines are
// parsed; a partial trailing line waits for its newline. When the file
// shrinks (a new run truncated it) reading restarts from the top.
//
// # Thread Safety
//
// Run must be called at most once at a time.
type Follower struct {
	path   string
	logger *logging.Logger

	// FromStart replays existing content before following. Default: only
	// records written after Run starts.
	FromStart bool

	file    *os.File
	offset  int64
	partial []byte
}

// New creates a Follower for path.
func New(path string, logger *logging.Logger) *Follower {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Follower{path: filepath.Clean(path), logger: logger}
}

// Run follows the file until ctx is done, the file is removed or handle
// fails.
//
// # Outputs
//
//   - error: nil when ctx ended the run, ErrRemoved, a parse error, or
//     the error returned by handle.
func (f *Follower) Run(ctx context.Context, handle Handler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}
	if err := f.open(); err != nil {
		return err
	}
	defer func() { f.file.Close() }()

	if !f.FromStart {
		if f.offset, err = f.file.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek event log: %w", err)
		}
	}
	if err := f.drain(handle); err != nil {
		return err
	}

	f.logger.Debug("following event log", "path", f.path, "offset", f.offset)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				return ErrRemoved
			case event.Has(fsnotify.Create):
				f.file.Close()
				if err := f.open(); err != nil {
					return err
				}
			}
			if err := f.drain(handle); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("event log watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func (f *Follower) open() error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	f.file = file
	f.offset = 0
	f.partial = f.partial[:0]
	return nil
}

// drain reads everything past offset and hands out complete lines.
func (f *Follower) drain(handle Handler) error {
	info, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("stat event log: %w", err)
	}
	if info.Size() < f.offset {
		f.logger.Info("event log truncated, restarting from the top", "path", f.path)
		f.offset = 0
		f.partial = f.partial[:0]
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := f.file.ReadAt(buf, f.offset)
		if n > 0 {
			f.offset += int64(n)
			if herr := f.emit(buf[:n], handle); herr != nil {
				return herr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
	}
}

func (f *Follower) emit(chunk []byte, handle Handler) error {
	f.partial = append(f.partial, chunk...)
	for {
		i := bytes.IndexByte(f.partial, '\n')
		if i < 0 {
			return nil
		}
		line := string(f.partial[:i])
		f.partial = f.partial[i+1:]
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, err := eventlog.ParseLine(line)
		if err != nil {
			return err
		}
		if err := handle(ev); err != nil {
			return err
		}
	}
}
