// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package resultitem defines the public search hit shape shared by the
// local index (internal/searchindex), the upstream client
// (internal/upstream), and the federated query engine (internal/query).
package resultitem

import "time"

// SearchResultItem is one ranked hit returned by the public search API. A
// hit produced from the local index carries ReplicaS3Key; a hit produced
// from the upstream backend carries TorrentName and FilePath instead.
type SearchResultItem struct {
	ReplicaS3Key   string    `json:"replica_s3_key,omitempty"`
	SearchTermHits int       `json:"search_term_hits"`
	InfoHash       string    `json:"info_hash"`
	FilePath       string    `json:"file_path,omitempty"`
	FileSize       int64     `json:"file_size"`
	TorrentName    string    `json:"torrent_name,omitempty"`
	MimeType       string    `json:"mime_type,omitempty"`
	LastModified   time.Time `json:"last_modified"`
	ReplicaLink    string    `json:"replica_link"`
}
