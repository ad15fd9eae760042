// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package query implements the federated query engine: merge local and
// upstream results, score, filter by MIME type, sort with stable
// tie-break, paginate, and attach a magnet link to every hit.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/getlantern/replica-search/internal/magnet"
	"github.com/getlantern/replica-search/internal/objectkey"
	"github.com/getlantern/replica-search/internal/resultitem"
)

const defaultLimit = 20

// LocalIndex is the subset of searchindex.Index operations the query
// engine depends on.
type LocalIndex interface {
	GetMatches(terms []string, mimeType *string) []resultitem.SearchResultItem
}

// UpstreamSearcher is the subset of upstream.Client operations the query
// engine depends on.
type UpstreamSearcher interface {
	Search(ctx context.Context, query string) ([]resultitem.SearchResultItem, error)
}

// Request is the parsed form of the public API's query parameters.
type Request struct {
	S      string
	Offset int
	Limit  int
	MIME   *string
}

// Engine executes federated queries against a local index and an
// upstream backend.
type Engine struct {
	local    LocalIndex
	upstream UpstreamSearcher
}

// New constructs an Engine.
func New(local LocalIndex, upstream UpstreamSearcher) *Engine {
	return &Engine{local: local, upstream: upstream}
}

// Execute runs req end to end: local lookup, concurrent upstream lookup,
// remote scoring and filtering, merge, stable sort, pagination, and
// magnet-link attachment.
func (e *Engine) Execute(ctx context.Context, req Request) []resultitem.SearchResultItem {
	terms := strings.Fields(req.S)

	var local []resultitem.SearchResultItem
	localDone := make(chan struct{})
	go func() {
		defer close(localDone)
		local = e.local.GetMatches(terms, req.MIME)
	}()

	remote, err := e.upstream.Search(ctx, req.S)
	if err != nil {
		log.Warn().Err(err).Str("query", req.S).Msg("upstream search failed, returning local results only")
		remote = nil
	}
	remote = scoreAndFilterRemote(remote, terms, req.MIME)
	<-localDone

	merged := make([]resultitem.SearchResultItem, 0, len(local)+len(remote))
	merged = append(merged, local...)
	merged = append(merged, remote...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SearchTermHits > merged[j].SearchTermHits
	})

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	if offset >= len(merged) {
		merged = merged[:0]
	} else {
		merged = merged[offset:]
	}
	if limit < len(merged) {
		merged = merged[:limit]
	}

	for i := range merged {
		merged[i].ReplicaLink = linkFor(merged[i])
	}
	return merged
}

// scoreAndFilterRemote computes search_term_hits for each remote item by
// tokenizing torrent_name and file_path the same way the local index
// tokenizes keys and counting every occurrence of a query term in the
// combined tokens, and drops items whose MIME top-level type doesn't
// match mimeType when set.
func scoreAndFilterRemote(items []resultitem.SearchResultItem, terms []string, mimeType *string) []resultitem.SearchResultItem {
	if len(items) == 0 {
		return nil
	}
	normalizedTerms := objectkey.NormalizeAll(terms)

	out := make([]resultitem.SearchResultItem, 0, len(items))
	for _, item := range items {
		item.MimeType = objectkey.MIMEType(item.FilePath)
		if mimeType != nil {
			types := objectkey.TopLevelMIMETypes(item.FilePath)
			if !containsString(types, *mimeType) {
				continue
			}
		}

		tokens := objectkey.NormalizeAll(objectkey.SplitName(item.TorrentName))
		tokens = append(tokens, objectkey.NormalizeAll(objectkey.SplitName(item.FilePath))...)
		item.SearchTermHits = countHits(tokens, normalizedTerms)
		out = append(out, item)
	}
	return out
}

func countHits(tokens, terms []string) int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	hits := 0
	for _, term := range terms {
		hits += counts[term]
	}
	return hits
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func linkFor(item resultitem.SearchResultItem) string {
	displayName := item.TorrentName
	if displayName == "" {
		displayName = objectkey.NameOrEmpty(item.ReplicaS3Key)
	}
	return magnet.Format(magnet.Link{
		InfoHash:    item.InfoHash,
		DisplayName: displayName,
		Trackers:    magnet.DefaultTrackers,
	})
}
