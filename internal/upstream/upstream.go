// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package upstream queries the federated BitTorrent metadata backend:
// torrent search plus per-torrent file listing, with caching and
// single-flight de-duplication of concurrent file-listing fetches.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getlantern/replica-search/internal/apperr"
	"github.com/getlantern/replica-search/internal/coalesce"
	"github.com/getlantern/replica-search/internal/resultitem"
)

// fileListCacheTTL bounds how long a torrent's file listing is trusted
// before ListFiles re-fetches it from upstream.
const fileListCacheTTL = 30 * time.Minute

// File is one entry in a torrent's file listing.
type File struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// torrentSummary is the shape of one element of the /torrents search
// response.
type torrentSummary struct {
	InfoHash     string `json:"info_hash"`
	Name         string `json:"name"`
	DiscoveredOn int64  `json:"discovered_on"`
	NFiles       int    `json:"n_files"`
}

// Config configures a Client's root URL and basic-auth credentials. The
// service fills it at startup from its runtime configuration
// (internal/config), so the backend can be switched without a rebuild.
type Config struct {
	RootURL  string
	Username string
	Password string
}

// Client queries the upstream backend, caching and coalescing per-torrent
// file-listing fetches.
type Client struct {
	cfg        Config
	httpClient *http.Client
	coalescer  *coalesce.Group[string, []File]
	cache      *ttlcache.Cache[string, []File]
}

// New constructs a Client for cfg. The supplied http.Client's timeout, if
// any, governs both search and file-listing requests; the spec does not
// mandate retries at this layer, so none are performed.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		coalescer:  coalesce.NewGroup[string, []File](),
		cache:      ttlcache.New(ttlcache.Options[string, []File]{}.SetDefaultTTL(fileListCacheTTL)),
	}
}

// Search issues the torrent search request and, for every returned
// torrent, fetches its file listing concurrently. A failed file-listing
// fetch for one torrent is logged and that torrent is skipped; it does
// not fail the overall search.
func (c *Client) Search(ctx context.Context, query string) ([]resultitem.SearchResultItem, error) {
	summaries, err := c.searchTorrents(ctx, query)
	if err != nil {
		return nil, err
	}

	type listed struct {
		summary torrentSummary
		files   []File
	}
	results := make([]listed, len(summaries))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range summaries {
		i, s := i, s
		g.Go(func() error {
			files, err := c.ListFiles(gctx, s.InfoHash)
			if err != nil {
				log.Warn().Err(err).Str("info_hash", s.InfoHash).Msg("upstream file listing failed, skipping torrent")
				return nil
			}
			results[i] = listed{summary: s, files: files}
			return nil
		})
	}
	// errgroup.Wait only ever returns an error from a Go closure that
	// itself returned non-nil; this loop never does, so Wait always
	// returns nil here.
	_ = g.Wait()

	var items []resultitem.SearchResultItem
	for _, r := range results {
		if r.summary.InfoHash == "" {
			continue
		}
		for _, f := range r.files {
			items = append(items, resultitem.SearchResultItem{
				TorrentName:  r.summary.Name,
				InfoHash:     r.summary.InfoHash,
				FilePath:     f.Path,
				FileSize:     f.Size,
				LastModified: time.Unix(r.summary.DiscoveredOn, 0).UTC(),
			})
		}
	}
	return items, nil
}

func (c *Client) searchTorrents(ctx context.Context, query string) ([]torrentSummary, error) {
	endpoint, err := url.JoinPath(c.cfg.RootURL, "torrents")
	if err != nil {
		return nil, apperr.Wrap(apperr.Invalid, "upstream.Search", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "upstream.Search", err)
	}
	q := req.URL.Query()
	q.Set("query", query)
	req.URL.RawQuery = q.Encode()
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "upstream.Search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, apperr.New(apperr.Network, "upstream.Search", fmt.Sprintf("upstream search returned status %d", resp.StatusCode))
	}

	var summaries []torrentSummary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return nil, apperr.Wrap(apperr.Parse, "upstream.Search", err)
	}
	return summaries, nil
}

// ListFiles returns the file listing for infoHash, serving from cache on
// hit and coalescing concurrent misses for the same info-hash. A failed
// fetch is never negative-cached, so the next call retries.
func (c *Client) ListFiles(ctx context.Context, infoHash string) ([]File, error) {
	if files, ok := c.cache.Get(infoHash); ok {
		return files, nil
	}

	files, err := c.coalescer.Work(ctx, infoHash, func(ctx context.Context) ([]File, error) {
		return c.fetchFiles(ctx, infoHash)
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(infoHash, files, ttlcache.DefaultTTL)
	return files, nil
}

func (c *Client) fetchFiles(ctx context.Context, infoHash string) ([]File, error) {
	endpoint, err := url.JoinPath(c.cfg.RootURL, "torrents", infoHash, "filelist")
	if err != nil {
		return nil, apperr.Wrap(apperr.Invalid, "upstream.ListFiles", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "upstream.ListFiles", err)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "upstream.ListFiles", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, apperr.New(apperr.Network, "upstream.ListFiles", fmt.Sprintf("upstream filelist returned status %d", resp.StatusCode))
	}

	var files []File
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, apperr.Wrap(apperr.Parse, "upstream.ListFiles", err)
	}
	return files, nil
}
