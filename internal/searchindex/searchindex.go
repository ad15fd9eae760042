// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package searchindex implements the in-memory inverted index of bucket
// object keys: insert, remove, and term/MIME-type queries with stable,
// per-process-deterministic tie-break ordering.
package searchindex

import (
	"hash/maphash"
	"sort"
	"sync"
	"time"

	"github.com/getlantern/replica-search/internal/apperr"
	"github.com/getlantern/replica-search/internal/objectkey"
	"github.com/getlantern/replica-search/internal/resultitem"
)

// KeyInfo is the immutable-after-insert record the ingestion controller
// attaches to each indexed key.
type KeyInfo struct {
	Size         int64
	LastModified time.Time
	InfoHash     [20]byte
}

// Index is the local inverted index described by the data model: postings
// by normalized token, postings by MIME top-level type, and the key ->
// info map, all guarded by a single lock.
type Index struct {
	mu         sync.RWMutex
	allKeys    map[string]KeyInfo
	terms      map[string]map[string]struct{}
	keysByType map[string]map[string]struct{}
	seed       maphash.Seed
}

// New constructs an empty Index. Each Index gets its own random seed, so
// tie-break order is stable within a process run but not across runs or
// across distinct Index values.
func New() *Index {
	return &Index{
		allKeys:    make(map[string]KeyInfo),
		terms:      make(map[string]map[string]struct{}),
		keysByType: make(map[string]map[string]struct{}),
		seed:       maphash.MakeSeed(),
	}
}

// rank returns a value derived from the index's seed and k, stable for the
// lifetime of the index, used to order equal-score candidates
// deterministically regardless of which terms were queried.
func (idx *Index) rank(k string) uint64 {
	var h maphash.Hash
	h.SetSeed(idx.seed)
	_, _ = h.WriteString(k)
	return h.Sum64()
}

// AddKey validates k, tokenizes it, and inserts it (and info) into the
// index, overwriting any previous info for k. Postings are unaffected by
// the overwrite since a key's tokens never change.
func (idx *Index) AddKey(k string, info KeyInfo) error {
	tokens, err := objectkey.Tokenize(k)
	if err != nil {
		return err
	}
	normalized := objectkey.NormalizeAll(tokens)
	types := objectkey.TopLevelMIMETypes(objectkey.Name(k))

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.allKeys[k] = info
	for _, t := range normalized {
		set, ok := idx.terms[t]
		if !ok {
			set = make(map[string]struct{})
			idx.terms[t] = set
		}
		set[k] = struct{}{}
	}
	for _, m := range types {
		set, ok := idx.keysByType[m]
		if !ok {
			set = make(map[string]struct{})
			idx.keysByType[m] = set
		}
		set[k] = struct{}{}
	}
	return nil
}

// RemoveKey deletes k and all of its postings, failing with kind-NotFound
// if k is not present.
func (idx *Index) RemoveKey(k string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.allKeys[k]; !ok {
		return apperr.New(apperr.NotFound, "searchindex.RemoveKey", "key not indexed: "+k)
	}
	delete(idx.allKeys, k)

	tokens, err := objectkey.Tokenize(k)
	if err == nil {
		for _, t := range objectkey.NormalizeAll(tokens) {
			set, ok := idx.terms[t]
			if !ok {
				continue
			}
			delete(set, k)
			if len(set) == 0 {
				delete(idx.terms, t)
			}
		}
	}
	for _, set := range idx.keysByType {
		delete(set, k)
	}
	return nil
}

// GetMatches scores every candidate key (all keys, or only those under
// mimeType when set) by how many normalized terms hit its postings, and
// returns one SearchResultItem per candidate. Output is unsorted by score;
// the query engine is responsible for ranking. Equal-score candidates are
// always emitted in the same order within a given Index (ordered by the
// index's own seed, see rank), independent of which terms were queried.
func (idx *Index) GetMatches(terms []string, mimeType *string) []resultitem.SearchResultItem {
	normalized := objectkey.NormalizeAll(terms)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var candidates map[string]struct{}
	if mimeType != nil {
		if set, ok := idx.keysByType[*mimeType]; ok {
			candidates = set
		}
	} else {
		candidates = make(map[string]struct{}, len(idx.allKeys))
		for k := range idx.allKeys {
			candidates[k] = struct{}{}
		}
	}

	scores := make(map[string]int, len(candidates))
	for k := range candidates {
		scores[k] = 0
	}
	for _, t := range normalized {
		for k := range idx.terms[t] {
			if _, ok := scores[k]; ok {
				scores[k]++
			}
		}
	}

	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return idx.rank(keys[i]) < idx.rank(keys[j]) })

	items := make([]resultitem.SearchResultItem, 0, len(keys))
	for _, k := range keys {
		info := idx.allKeys[k]
		items = append(items, resultitem.SearchResultItem{
			ReplicaS3Key:   k,
			SearchTermHits: scores[k],
			InfoHash:       infoHashHex(info.InfoHash),
			FileSize:       info.Size,
			MimeType:       objectkey.MIMEType(objectkey.Name(k)),
			LastModified:   info.LastModified,
		})
	}
	return items
}

const hexDigits = "0123456789abcdef"

func infoHashHex(h [20]byte) string {
	buf := make([]byte, 40)
	for i, b := range h {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}
