// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/resilience"
)

func newFeedServer(t *testing.T, products []ProductRecord, status int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(products)
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["books","home"]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFeed_Load(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t, []ProductRecord{rec("a", "books", 10, "new")}, http.StatusOK)
	feed := NewHTTPFeed(srv.URL+"/", time.Second)

	records, err := feed.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(records) != 1 || records[0].ID != "a" || records[0].Tags[0] != "new" {
		t.Errorf("records = %+v", records)
	}

	cats, err := feed.LoadCategories(context.Background())
	if err != nil {
		t.Fatalf("LoadCategories: %v", err)
	}
	if len(cats) != 2 {
		t.Errorf("categories = %v", cats)
	}
}

func TestHTTPFeed_Errors(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t, nil, http.StatusBadGateway)
	feed := NewHTTPFeed(srv.URL, time.Second)

	if _, err := feed.LoadCatalog(context.Background()); err == nil {
		t.Error("expected error for non-200 status")
	}

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"`))
	}))
	defer malformed.Close()

	if _, err := NewHTTPFeed(malformed.URL, time.Second).LoadCatalog(context.Background()); err == nil {
		t.Error("expected decode error for malformed body")
	}
}

func TestStore_RefreshThroughBreaker(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t, nil, http.StatusServiceUnavailable)
	breaker := resilience.NewBreaker("catalog-feed-test", resilience.BreakerConfig{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Hour}, zerolog.Nop())
	s := NewStore(breaker, zerolog.Nop())
	feed := NewHTTPFeed(srv.URL, time.Second)

	for i := 0; i < 3; i++ {
		if _, err := s.Refresh(context.Background(), feed); !errors.Is(err, ErrIngest) {
			t.Fatalf("attempt %d: err = %v, want ErrIngest", i, err)
		}
	}

	// the open breaker short-circuits the feed
	_, err := s.Refresh(context.Background(), feed)
	if !errors.Is(err, ErrIngest) || !resilience.IsRejected(err) {
		t.Errorf("err = %v, want ErrIngest wrapping a breaker rejection", err)
	}
	if s.Current().Version() != 0 {
		t.Errorf("version = %d, want 0", s.Current().Version())
	}
}
