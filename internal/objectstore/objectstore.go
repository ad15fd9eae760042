// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package objectstore wraps the bucket operations the search service needs:
// paginated listing and per-object torrent-metadata resolution.
package objectstore

import (
	"bytes"
	"context"
	"io"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/getlantern/replica-search/internal/apperr"
)

// BucketName and Region are fixed by the deployment this service answers
// queries for; see spec §6.
const (
	BucketName = "getlantern-replica"
	Region     = "ap-southeast-1"
)

// Object is one entry from a bucket listing page.
type Object struct {
	Key          string
	Size         int64
	LastModified string // RFC-3339, as returned by the object store
}

// API is the subset of S3 operations the search service depends on,
// satisfied by *s3.Client and by fakes in tests.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectTorrent(ctx context.Context, params *s3.GetObjectTorrentInput, optFns ...func(*s3.Options)) (*s3.GetObjectTorrentOutput, error)
}

// Client is the subset of S3 operations the search service depends on.
type Client struct {
	s3     API
	bucket string
}

// New wraps an already-configured S3 client for bucket.
func New(s3Client API, bucket string) *Client {
	return &Client{s3: s3Client, bucket: bucket}
}

// ListObjects pages through the entire bucket via ListObjectsV2,
// following continuation tokens until exhausted.
func (c *Client) ListObjects(ctx context.Context) ([]Object, error) {
	var all []Object
	var token *string
	for {
		out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.Network, "objectstore.ListObjects", err)
		}
		for _, obj := range out.Contents {
			all = append(all, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: formatRFC3339(obj),
			})
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return all, nil
}

func formatRFC3339(obj types.Object) string {
	if obj.LastModified == nil {
		return ""
	}
	return obj.LastModified.Format("2006-01-02T15:04:05Z07:00")
}

// InfoHash fetches the bucket's torrent representation of key and extracts
// its 20-byte BitTorrent info-hash.
func (c *Client) InfoHash(ctx context.Context, key string) ([20]byte, error) {
	var zero [20]byte

	out, err := c.s3.GetObjectTorrent(ctx, &s3.GetObjectTorrentInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return zero, apperr.Wrap(apperr.Network, "objectstore.InfoHash", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return zero, apperr.Wrap(apperr.Network, "objectstore.InfoHash", err)
	}

	mi, err := metainfo.Load(bytes.NewReader(body))
	if err != nil {
		return zero, apperr.Wrap(apperr.Parse, "objectstore.InfoHash", err)
	}
	return [20]byte(mi.HashInfoBytes()), nil
}
