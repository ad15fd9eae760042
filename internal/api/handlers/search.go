// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/getlantern/replica-search/internal/query"
)

// SearchHandler serves the single public route: GET / with s, offset,
// limit, and type query parameters.
type SearchHandler struct {
	engine *query.Engine
}

// NewSearchHandler constructs a SearchHandler backed by engine.
func NewSearchHandler(engine *query.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// ServeHTTP implements http.Handler. Malformed offset/limit/missing s
// return HTTP 400; otherwise it writes the JSON array of SearchResultItem.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("s")
	if s == "" {
		RespondError(w, http.StatusBadRequest, "query parameter 's' is required")
		return
	}

	offset, ok := ParseIntParam(r, "offset", 0)
	if !ok {
		RespondError(w, http.StatusBadRequest, "invalid 'offset'")
		return
	}
	limit, ok := ParseIntParam(r, "limit", 20)
	if !ok {
		RespondError(w, http.StatusBadRequest, "invalid 'limit'")
		return
	}

	var mimeType *string
	if t := r.URL.Query().Get("type"); t != "" {
		mimeType = &t
	}

	results := h.engine.Execute(r.Context(), query.Request{
		S:      s,
		Offset: offset,
		Limit:  limit,
		MIME:   mimeType,
	})
	RespondJSON(w, http.StatusOK, results)
}
