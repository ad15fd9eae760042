// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package objectkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validUUID = "11111111-1111-4111-8111-111111111111"

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", validUUID + "/Project Gutenberg Vol 1.epub", false},
		{"too short", validUUID[:20], true},
		{"exactly separator boundary", validUUID, true},
		{"missing separator", validUUID + "x" + "name.mp3", true},
		{"bad uuid prefix", "not-a-uuid-not-a-uuid-not-a-uuid-xxx/name.mp3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tokens, err := Tokenize(validUUID + "/Project Gutenberg Vol 1.epub")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Project", "Gutenberg", "Vol", "1", "epub"}, tokens)
}

func TestTokenizeRejectsMalformedKeys(t *testing.T) {
	t.Parallel()

	_, err := Tokenize("short")
	require.Error(t, err)
	assert.True(t, len(err.Error()) > 0)
}

func TestSplitNameSplitsExtensionSeparately(t *testing.T) {
	t.Parallel()

	tokens := SplitName("My Movie.Final.Cut.mkv")
	assert.ElementsMatch(t, []string{"My", "Movie", "Final", "Cut", "mkv"}, tokens)
}

func TestNormalizeIsPureAndLowercases(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gutenberg", Normalize("GUTENBERG"))
	assert.Equal(t, "gutenberg", Normalize("Gutenberg"))
	assert.Equal(t, Normalize("abc"), Normalize("abc"))
}

func TestTopLevelMIMETypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"application"}, TopLevelMIMETypes("book.epub"))
	assert.Equal(t, []string{"audio"}, TopLevelMIMETypes("song.mp3"))
	assert.Equal(t, []string{"video"}, TopLevelMIMETypes("clip.mp4"))
	assert.Nil(t, TopLevelMIMETypes("no-extension"))
}
