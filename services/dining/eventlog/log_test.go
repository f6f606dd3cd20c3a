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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dining/services/dining/lock"
)

// allocateLog creates the shared parts of a log the way the coordinator does.
func allocateLog(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	_, err := CreateCounter(dir)
	require.NoError(t, err)
	_, err = lock.Create(dir, LockName)
	require.NoError(t, err)

	out := filepath.Join(dir, "philosophers.out")
	sink, err := CreateSink(out)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	return Options{RunDir: dir, Output: out}
}

func TestLog_Record(t *testing.T) {
	opts := allocateLog(t)
	l, err := Open(opts)
	require.NoError(t, err)
	defer l.Close()

	seq, err := l.Record(TemplateThinking, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	seq, err = l.Record(TemplatePickUp, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, "1: philosopher 1: becomes thinking\n2: philosopher 1: picks up a fork 2\n", string(data))

	last, err := l.Last()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last)
}

func TestLog_EmptyTemplateIsNoOp(t *testing.T) {
	opts := allocateLog(t)
	l, err := Open(opts)
	require.NoError(t, err)
	defer l.Close()

	seq, err := l.Record("")
	require.NoError(t, err)
	assert.Zero(t, seq)

	seq, err = l.Record(TemplateEating, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestLog_TrailingNewlineTrimmed(t *testing.T) {
	opts := allocateLog(t)
	l, err := Open(opts)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Record(TemplateEating+"\n", 1)
	require.NoError(t, err)

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, "1: philosopher 1: becomes eating\n", string(data))
}

func TestLog_ConcurrentWritersAreGapless(t *testing.T) {
	opts := allocateLog(t)
	opts.Sync = true

	const writers, perWriter = 6, 40
	var wg sync.WaitGroup
	for w := 1; w <= writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l, err := Open(opts)
			if err != nil {
				t.Error(err)
				return
			}
			defer l.Close()
			for i := 0; i < perWriter; i++ {
				if _, err := l.Record(TemplateThinking, id); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	events, err := ReadFile(opts.Output)
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq, "line %d", i+1)
	}
}

// shortSink writes only the first keep bytes of every line, like a disk
// that fills up mid-write.
type shortSink struct {
	*os.File
	keep int
}

func (s *shortSink) Write(p []byte) (int, error) {
	n, _ := s.File.Write(p[:s.keep])
	return n, errors.New("no space left on device")
}

func TestLog_ShortWriteLeavesNoFragment(t *testing.T) {
	opts := allocateLog(t)
	l, err := Open(opts)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Record(TemplateThinking, 1)
	require.NoError(t, err)

	file := l.sink.(*os.File)
	l.sink = &shortSink{File: file, keep: 5}
	_, err = l.Record(TemplateThinking, 2)
	require.Error(t, err)
	l.sink = file

	seq, err := l.Record(TemplateThinking, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq, "failed record gives its number back")

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, "1: philosopher 1: becomes thinking\n2: philosopher 3: becomes thinking\n", string(data))
}

func TestLog_Closed(t *testing.T) {
	opts := allocateLog(t)
	l, err := Open(opts)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err = l.Record(TemplateThinking, 1)
	assert.ErrorIs(t, err, ErrLogClosed)
}

func TestOpen_MissingParts(t *testing.T) {
	opts := allocateLog(t)
	require.NoError(t, RemoveCounter(opts.RunDir))

	_, err := Open(opts)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "counter"))
}

func TestCreateSink_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	f, err := CreateSink(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
