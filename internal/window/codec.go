// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package window

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Handle is an opaque decoded thumbnail owned by the codec.
type Handle any

// Codec fetches thumbnails. Implementations must be idempotent per
// imageRef; results are cached by product id.
type Codec interface {
	FetchThumbnail(ctx context.Context, imageRef string) (Handle, error)
}

// CodecFunc adapts a function to Codec.
type CodecFunc func(ctx context.Context, imageRef string) (Handle, error)

// FetchThumbnail calls f.
func (f CodecFunc) FetchThumbnail(ctx context.Context, imageRef string) (Handle, error) {
	return f(ctx, imageRef)
}

// Thumbnail is the raw image returned by HTTPCodec.
type Thumbnail struct {
	Ref         string
	ContentType string
	Data        []byte
}

// HTTPCodec downloads thumbnails over HTTP without decoding them.
type HTTPCodec struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewHTTPCodec creates a codec with a per-request timeout and a body limit.
func NewHTTPCodec(timeout time.Duration, maxBytes int64) *HTTPCodec {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &HTTPCodec{httpClient: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// FetchThumbnail downloads imageRef.
func (c *HTTPCodec) FetchThumbnail(ctx context.Context, imageRef string) (Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageRef, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", c.maxBytes)
	}

	return &Thumbnail{Ref: imageRef, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}
