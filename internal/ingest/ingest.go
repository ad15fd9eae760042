// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ingest drives the bootstrap bucket listing and the live
// change-queue event loop that keep the local index current.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getlantern/replica-search/internal/notifyqueue"
	"github.com/getlantern/replica-search/internal/objectstore"
	"github.com/getlantern/replica-search/internal/searchindex"
)

const bootstrapConcurrency = 16

// Store is the subset of searchindex.Index operations the controller
// drives.
type Store interface {
	AddKey(key string, info searchindex.KeyInfo) error
	RemoveKey(key string) error
}

// InfoHashResolver is the subset of objectstore.Client operations the
// controller drives.
type InfoHashResolver interface {
	InfoHash(ctx context.Context, key string) ([20]byte, error)
}

// Controller owns the index population lifecycle: Bootstrap once, then
// Run forever consuming live events until ctx is cancelled.
type Controller struct {
	store     Store
	resolver  InfoHashResolver
	sub       *notifyqueue.Subscription
	bucketAPI *objectstore.Client
}

// New constructs a Controller. bucketAPI both lists the bucket and
// resolves info-hashes; sub is the already-provisioned change-queue
// subscription (C7).
func New(store Store, bucketAPI *objectstore.Client, sub *notifyqueue.Subscription) *Controller {
	return &Controller{store: store, resolver: bucketAPI, bucketAPI: bucketAPI, sub: sub}
}

// Bootstrap pages through the entire bucket listing and inserts every
// object into the index, resolving info-hashes with bounded concurrency.
// A per-object failure is logged and that object skipped.
func (c *Controller) Bootstrap(ctx context.Context) error {
	objects, err := c.bucketAPI.ListObjects(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bootstrapConcurrency)
	for _, obj := range objects {
		obj := obj
		g.Go(func() error {
			c.addObject(gctx, obj)
			return nil
		})
	}
	return g.Wait()
}

func (c *Controller) addObject(ctx context.Context, obj objectstore.Object) {
	infoHash, err := c.resolver.InfoHash(ctx, obj.Key)
	if err != nil {
		log.Error().Err(err).Str("key", obj.Key).Msg("failed to resolve info-hash, skipping object")
		return
	}

	lastModified, err := time.Parse(time.RFC3339, obj.LastModified)
	if err != nil {
		log.Error().Err(err).Str("key", obj.Key).Str("last_modified", obj.LastModified).Msg("failed to parse last_modified, falling back to now")
		lastModified = time.Now().UTC()
	}

	if err := c.store.AddKey(obj.Key, searchindex.KeyInfo{
		Size:         obj.Size,
		LastModified: lastModified,
		InfoHash:     infoHash,
	}); err != nil {
		log.Error().Err(err).Str("key", obj.Key).Msg("failed to add object to index")
		return
	}
	log.Info().Str("key", obj.Key).Msg("added object to index")
}

// Run long-polls the change queue until ctx is cancelled, applying each
// message's records to the index in order. It never returns on transient
// failure; only cancellation of ctx ends the loop.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := c.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("failed to receive change-queue messages")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			c.processMessage(ctx, msg)
		}
	}
}

func (c *Controller) processMessage(ctx context.Context, msg notifyqueue.Message) {
	var envelope envelope
	if err := json.Unmarshal([]byte(msg.Body), &envelope); err != nil {
		log.Error().Err(err).Msg("failed to parse queue message envelope")
		return
	}

	var notification notification
	if err := json.Unmarshal([]byte(envelope.Message), &notification); err != nil {
		log.Error().Err(err).Msg("failed to parse inner notification message")
		return
	}

	if err := c.sub.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error().Err(err).Msg("failed to delete processed queue message")
	}

	for _, rec := range notification.Records {
		c.applyRecord(ctx, rec)
	}
}

func (c *Controller) applyRecord(ctx context.Context, rec record) {
	switch rec.EventName {
	case "ObjectCreated:Put", "ObjectCreated:CompleteMultipartUpload":
		key := rec.S3.Object.Key
		infoHash, err := c.resolver.InfoHash(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to resolve info-hash for created object")
			return
		}
		lastModified, err := time.Parse(time.RFC3339, rec.EventTime)
		if err != nil {
			log.Error().Err(err).Str("event_time", rec.EventTime).Msg("failed to parse event time, falling back to now")
			lastModified = time.Now().UTC()
		}
		if err := c.store.AddKey(key, searchindex.KeyInfo{
			Size:         rec.S3.Object.Size,
			LastModified: lastModified,
			InfoHash:     infoHash,
		}); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to add live object to index")
		}
	case "ObjectRemoved:Delete":
		if err := c.store.RemoveKey(rec.S3.Object.Key); err != nil {
			log.Error().Err(err).Str("key", rec.S3.Object.Key).Msg("failed to remove object from index")
		}
	default:
		log.Info().Str("event_name", rec.EventName).Msg("ignoring unrecognized event")
	}
}

type envelope struct {
	Message string `json:"Message"`
}

type notification struct {
	Records []record `json:"Records"`
}

type record struct {
	EventName string  `json:"eventName"`
	EventTime string  `json:"eventTime"`
	S3        s3Entry `json:"s3"`
}

type s3Entry struct {
	Object s3Object `json:"object"`
}

type s3Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}
