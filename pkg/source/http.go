// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package source

import (
	"context"
	"net/http"
	"strconv"

	"gcodeviewer-go/pkg/errors"
)

// OriginalLengthHeader carries the uncompressed size when the body is
// served with a transfer encoding that hides it.
const OriginalLengthHeader = "X-Original-Content-Length"

// OpenHTTP starts a GET of url and streams the body. The request is
// bound to ctx, so cancelling ctx aborts the download and the next read
// fails. Timeouts are configured on client.
func OpenHTTP(ctx context.Context, client *http.Client, url string) (*ReaderSource, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.SourceIOError(url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.SourceIOError(url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errors.SourceStatusError(url, resp.StatusCode)
	}

	total := resp.ContentLength
	if v := resp.Header.Get(OriginalLengthHeader); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			total = n
		}
	}
	s := NewReader(resp.Body, total)
	s.name = url
	return s, nil
}
