// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package magnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMatchesSpecExamples(t *testing.T) {
	t.Parallel()

	got := Format(Link{InfoHash: "abcd", DisplayName: "yo", Trackers: []string{"a", "b"}})
	assert.Equal(t, "magnet:?xt=urn:btih:abcd&dn=yo&tr=a&tr=b", got)

	got = Format(Link{DisplayName: "hello there!"})
	assert.Equal(t, "magnet:?dn=hello+there%21", got)
}

func TestFormatOrdersFieldsRegardlessOfStructOrder(t *testing.T) {
	t.Parallel()

	got := Format(Link{
		AcceptableSource: "as-value",
		ExactSource:      "xs-value",
		DisplayName:      "dn-value",
		InfoHash:         "deadbeef",
		Trackers:         []string{"tr1", "tr2"},
	})
	assert.Equal(t, "magnet:?xt=urn:btih:deadbeef&dn=dn-value&xs=xs-value&as=as-value&tr=tr1&tr=tr2", got)
}

func TestFormatParseRoundTrip(t *testing.T) {
	t.Parallel()

	links := []Link{
		{InfoHash: "abcd1234", DisplayName: "My File.txt", Trackers: []string{"http://a.example/announce", "http://b.example/announce"}},
		{InfoHash: "deadbeef", ExactSource: "http://example.com/file", AcceptableSource: "http://mirror.example/file"},
		{InfoHash: "cafebabe", DisplayName: "weird chars !@# space"},
	}

	for _, link := range links {
		formatted := Format(link)
		parsed, err := Parse(formatted)
		require.NoError(t, err)
		assert.Equal(t, link, parsed)
	}
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	t.Parallel()

	_, err := Parse("http://not-a-magnet")
	assert.Error(t, err)
}

func TestParseRejectsNonBtihXt(t *testing.T) {
	t.Parallel()

	_, err := Parse("magnet:?xt=urn:sha1:abcd")
	assert.Error(t, err)
}
