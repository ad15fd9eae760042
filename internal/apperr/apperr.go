// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package apperr tags errors with the coarse kinds used throughout the
// search service (Invalid, NotFound, Network, Parse, Cancelled) so callers
// can branch on kind without string matching.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// ingestion-loop logging decisions.
type Kind string

const (
	Invalid   Kind = "invalid"
	NotFound  Kind = "not_found"
	Network   Kind = "network"
	Parse     Kind = "parse"
	Cancelled Kind = "cancelled"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// New creates a Kind-tagged error from a message.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

// Wrap tags an existing error with a Kind, preserving it for errors.Is/As.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: err}
}

// Is reports whether err (or one of its wrapped causes) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Network for untagged
// errors since most untagged failures in this codebase originate from I/O.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return Network
}
