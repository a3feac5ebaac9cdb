// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxFeedBody bounds a single feed response.
const maxFeedBody = 64 << 20

// Feed is the upstream catalog source.
type Feed interface {
	LoadCatalog(ctx context.Context) ([]ProductRecord, error)
	LoadCategories(ctx context.Context) ([]string, error)
}

// HTTPFeed loads the catalog from a JSON HTTP service exposing
// GET {BaseURL}/products and GET {BaseURL}/categories.
type HTTPFeed struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFeed creates a feed for baseURL with the given request timeout.
func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoadCatalog fetches all product records.
func (f *HTTPFeed) LoadCatalog(ctx context.Context) ([]ProductRecord, error) {
	var records []ProductRecord
	if err := f.getJSON(ctx, "/products", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadCategories fetches the category list.
func (f *HTTPFeed) LoadCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := f.getJSON(ctx, "/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (f *HTTPFeed) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s failed with status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBody)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
