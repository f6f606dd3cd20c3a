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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_StartsAtOne(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateCounter(dir)
	require.NoError(t, err)

	c, err := AttachCounter(dir)
	require.NoError(t, err)
	defer c.Close()

	last, err := c.Load()
	require.NoError(t, err)
	assert.Zero(t, last)

	for want := uint64(1); want <= 3; want++ {
		got, err := c.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCounter_SharedBetweenMappings(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateCounter(dir)
	require.NoError(t, err)

	a, err := AttachCounter(dir)
	require.NoError(t, err)
	defer a.Close()
	b, err := AttachCounter(dir)
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Next()
	require.NoError(t, err)
	got, err := b.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got)
}

func TestCounter_ConcurrentNextIsUnique(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateCounter(dir)
	require.NoError(t, err)

	const workers, perWorker = 8, 200
	seen := make(chan uint64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := AttachCounter(dir)
			if err != nil {
				t.Error(err)
				return
			}
			defer c.Close()
			for j := 0; j < perWorker; j++ {
				v, err := c.Next()
				if err != nil {
					t.Error(err)
					return
				}
				seen <- v
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for v := range seen {
		assert.False(t, unique[v], "duplicate value %d", v)
		unique[v] = true
	}
	assert.Len(t, unique, workers*perWorker)
}

func TestCounter_CreateTwiceFails(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateCounter(dir)
	require.NoError(t, err)

	_, err = CreateCounter(dir)
	assert.True(t, errors.Is(err, ErrCounterExists))

	require.NoError(t, RemoveCounter(dir))
	require.NoError(t, RemoveCounter(dir))
	_, err = CreateCounter(dir)
	assert.NoError(t, err)
}

func TestCounter_Detached(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateCounter(dir)
	require.NoError(t, err)
	c, err := AttachCounter(dir)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Next()
	assert.ErrorIs(t, err, ErrCounterDetached)
}

func TestAttachCounter_Missing(t *testing.T) {
	_, err := AttachCounter(t.TempDir())
	assert.Error(t, err)
}
