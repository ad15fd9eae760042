// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlantern/replica-search/internal/searchindex"
)

type fakeStore struct {
	added   map[string]searchindex.KeyInfo
	removed map[string]bool
	addErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{added: map[string]searchindex.KeyInfo{}, removed: map[string]bool{}}
}

func (f *fakeStore) AddKey(key string, info searchindex.KeyInfo) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added[key] = info
	return nil
}

func (f *fakeStore) RemoveKey(key string) error {
	f.removed[key] = true
	return nil
}

type fakeResolver struct {
	hash [20]byte
	err  error
}

func (f *fakeResolver) InfoHash(ctx context.Context, key string) ([20]byte, error) {
	return f.hash, f.err
}

func TestApplyRecordObjectCreatedAddsKey(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := &Controller{store: store, resolver: &fakeResolver{hash: [20]byte{1, 2, 3}}}

	c.applyRecord(context.Background(), record{
		EventName: "ObjectCreated:Put",
		EventTime: "2020-01-15T01:24:23Z",
		S3:        s3Entry{Object: s3Object{Key: "11111111-1111-4111-8111-111111111111/x.txt", Size: 42}},
	})

	info, ok := store.added["11111111-1111-4111-8111-111111111111/x.txt"]
	require.True(t, ok)
	assert.EqualValues(t, 42, info.Size)
	assert.Equal(t, [20]byte{1, 2, 3}, info.InfoHash)
}

func TestApplyRecordObjectRemovedRemovesKey(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := &Controller{store: store, resolver: &fakeResolver{}}

	c.applyRecord(context.Background(), record{
		EventName: "ObjectRemoved:Delete",
		S3:        s3Entry{Object: s3Object{Key: "11111111-1111-4111-8111-111111111111/x.txt"}},
	})

	assert.True(t, store.removed["11111111-1111-4111-8111-111111111111/x.txt"])
}

func TestApplyRecordUnknownEventIsIgnored(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := &Controller{store: store, resolver: &fakeResolver{}}

	c.applyRecord(context.Background(), record{EventName: "ObjectCreated:Copy"})

	assert.Empty(t, store.added)
	assert.Empty(t, store.removed)
}

func TestApplyRecordFallsBackToNowOnBadEventTime(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := &Controller{store: store, resolver: &fakeResolver{}}

	c.applyRecord(context.Background(), record{
		EventName: "ObjectCreated:Put",
		EventTime: "not-a-timestamp",
		S3:        s3Entry{Object: s3Object{Key: "11111111-1111-4111-8111-111111111111/x.txt"}},
	})

	info, ok := store.added["11111111-1111-4111-8111-111111111111/x.txt"]
	require.True(t, ok)
	assert.False(t, info.LastModified.IsZero())
}

func TestApplyRecordLogsAndSkipsOnInfoHashFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := &Controller{store: store, resolver: &fakeResolver{err: assert.AnError}}

	c.applyRecord(context.Background(), record{
		EventName: "ObjectCreated:Put",
		S3:        s3Entry{Object: s3Object{Key: "11111111-1111-4111-8111-111111111111/x.txt"}},
	})

	assert.Empty(t, store.added)
}
