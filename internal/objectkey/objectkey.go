// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package objectkey validates and tokenizes the bucket object keys indexed
// by the search service. A Key is a canonical UUID followed by a '/' and an
// arbitrary name, e.g. "11111111-1111-4111-8111-111111111111/Gutenberg.epub".
package objectkey

import (
	"mime"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/getlantern/replica-search/internal/apperr"
)

const separatorOffset = 36

func init() {
	// Seed a handful of extensions the standard library's mime package
	// doesn't reliably resolve across platforms, so MIME guesses (and
	// therefore top-level type filtering) are deterministic in tests.
	extras := map[string]string{
		".epub":    "application/epub+zip",
		".mp3":     "audio/mpeg",
		".flac":    "audio/flac",
		".mp4":     "video/mp4",
		".mkv":     "video/x-matroska",
		".avi":     "video/x-msvideo",
		".torrent": "application/x-bittorrent",
	}
	for ext, typ := range extras {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// Validate checks that key has a well-formed "UUID/name" shape, returning a
// kind-Invalid error otherwise.
func Validate(key string) error {
	if len(key) <= separatorOffset {
		return apperr.New(apperr.Invalid, "objectkey.Validate", "key shorter than uuid prefix plus separator")
	}
	if key[separatorOffset] != '/' {
		return apperr.New(apperr.Invalid, "objectkey.Validate", "key missing '/' separator after uuid")
	}
	if _, err := uuid.Parse(key[:separatorOffset]); err != nil {
		return apperr.Wrap(apperr.Invalid, "objectkey.Validate", err)
	}
	return nil
}

// Name returns the portion of key after the UUID prefix and separator. The
// caller must have already validated key.
func Name(key string) string {
	return key[separatorOffset+1:]
}

// NameOrEmpty returns Name(key) if key validates, or "" otherwise. Useful
// for callers that want a best-effort display name without propagating a
// validation error.
func NameOrEmpty(key string) string {
	if Validate(key) != nil {
		return ""
	}
	return Name(key)
}

// Tokenize validates key and splits its Name into raw (un-normalized)
// tokens: whitespace/punctuation-delimited words, plus the base name and
// extension treated as separate tokens.
func Tokenize(key string) ([]string, error) {
	if err := Validate(key); err != nil {
		return nil, err
	}
	return SplitName(Name(key)), nil
}

// SplitName splits an arbitrary name (not necessarily a validated Key) into
// raw tokens the same way Tokenize does for the suffix of a Key: split on
// ASCII whitespace or punctuation, and additionally split the final '.'
// extension off so callers get tokens for both the base name and the
// extension.
func SplitName(name string) []string {
	var tokens []string
	base, ext, hasExt := cutExtension(name)
	tokens = append(tokens, splitWords(base)...)
	if hasExt {
		tokens = append(tokens, splitWords(ext)...)
	}
	return tokens
}

func cutExtension(name string) (base, ext string, ok bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name, "", false
	}
	return name[:idx], name[idx+1:], true
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r <= unicode.MaxASCII && (unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r))
	})
}

// Normalize folds a raw token to its canonical NormalizedToken form: ASCII
// lowercase. It is pure and deterministic so insertion and lookup agree.
func Normalize(token string) string {
	b := []byte(token)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// NormalizeAll normalizes a slice of raw tokens in place order, returning a
// new slice.
func NormalizeAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Normalize(t)
	}
	return out
}

// MIMEType guesses the full MIME type implied by name's extension, or ""
// if none is recognized.
func MIMEType(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	typ := mime.TypeByExtension(name[idx:])
	if semi := strings.IndexByte(typ, ';'); semi >= 0 {
		typ = strings.TrimSpace(typ[:semi])
	}
	return typ
}

// TopLevelMIMETypes guesses the MIME top-level types (e.g. "video",
// "audio", "application") implied by name's extension. A name without a
// recognized extension yields no guesses.
func TopLevelMIMETypes(name string) []string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return nil
	}
	ext := name[idx:]
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return nil
	}
	// Strip any parameters (e.g. "; charset=utf-8") before splitting on '/'.
	if semi := strings.IndexByte(typ, ';'); semi >= 0 {
		typ = typ[:semi]
	}
	typ = strings.TrimSpace(typ)
	slash := strings.IndexByte(typ, '/')
	if slash < 0 {
		return nil
	}
	return []string{typ[:slash]}
}
