// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package magnet formats and parses magnet URIs for search result hits.
package magnet

import (
	"net/url"
	"strings"

	"github.com/getlantern/replica-search/internal/apperr"
)

// DefaultTrackers is the fixed tracker list every formatted magnet link
// carries, per spec §4.9.
var DefaultTrackers = []string{"http://s3-tracker.ap-southeast-1.amazonaws.com:6969/announce"}

// Link is the input to Format: the fields a magnet URI can embed.
type Link struct {
	InfoHash         string
	DisplayName      string
	Trackers         []string
	ExactSource      string
	AcceptableSource string
}

// Format serializes link as "magnet:?..." per spec §4.9: the literal
// "urn:btih:" prefix on xt is never percent-encoded, but every parameter
// value is form-url-encoded. Fields are emitted in a fixed order: xt, dn,
// xs, as, then one tr per tracker — url.Values.Encode cannot be used here
// because it sorts keys alphabetically, which would break this ordering
// and collapse repeated "tr" parameters out of the order they were given.
func Format(link Link) string {
	var b strings.Builder
	b.WriteString("magnet:?")

	wrote := false
	writeParam := func(key, value string) {
		if wrote {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		wrote = true
	}

	if link.InfoHash != "" {
		writeParam("xt", "urn:btih:"+url.QueryEscape(link.InfoHash))
	}
	if link.DisplayName != "" {
		writeParam("dn", url.QueryEscape(link.DisplayName))
	}
	if link.ExactSource != "" {
		writeParam("xs", url.QueryEscape(link.ExactSource))
	}
	if link.AcceptableSource != "" {
		writeParam("as", url.QueryEscape(link.AcceptableSource))
	}
	for _, tr := range link.Trackers {
		writeParam("tr", url.QueryEscape(tr))
	}

	return b.String()
}

// Parse decodes a magnet URI produced by Format back into a Link.
// Unrecognized parameters are ignored.
func Parse(raw string) (Link, error) {
	const prefix = "magnet:?"
	if !strings.HasPrefix(raw, prefix) {
		return Link{}, apperr.New(apperr.Invalid, "magnet.Parse", "missing magnet:? prefix")
	}
	query := raw[len(prefix):]

	var link Link
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Link{}, apperr.New(apperr.Invalid, "magnet.Parse", "malformed parameter: "+pair)
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return Link{}, apperr.Wrap(apperr.Invalid, "magnet.Parse", err)
		}
		switch key {
		case "xt":
			const btihPrefix = "urn:btih:"
			if !strings.HasPrefix(decoded, btihPrefix) {
				return Link{}, apperr.New(apperr.Invalid, "magnet.Parse", "xt is not a btih urn")
			}
			link.InfoHash = strings.TrimPrefix(decoded, btihPrefix)
		case "dn":
			link.DisplayName = decoded
		case "xs":
			link.ExactSource = decoded
		case "as":
			link.AcceptableSource = decoded
		case "tr":
			link.Trackers = append(link.Trackers, decoded)
		}
	}
	return link, nil
}
