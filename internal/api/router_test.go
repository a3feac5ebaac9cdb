// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/engine"
	"github.com/tomtom215/catalogview/internal/logging"
	"github.com/tomtom215/catalogview/internal/telemetry"
	"github.com/tomtom215/catalogview/internal/window"
	ws "github.com/tomtom215/catalogview/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

const testOrigin = "http://catalog.test"

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

type testServer struct {
	eng     *engine.Engine
	store   *catalog.Store
	hub     *ws.Hub
	handler *Handler
	mux     http.Handler
}

func product(id, category string, price float64) catalog.ProductRecord {
	return catalog.ProductRecord{
		ID:       id,
		Name:     "Item " + id,
		Category: category,
		Price:    price,
		ImageRef: "img://" + id,
		Reviews:  []catalog.Review{{Rating: 4}, {Rating: 5}},
	}
}

var thumbCodec = window.CodecFunc(func(_ context.Context, ref string) (window.Handle, error) {
	return &window.Thumbnail{Ref: ref, ContentType: "image/png", Data: []byte("png:" + ref)}, nil
})

func newTestServer(t *testing.T, records ...catalog.ProductRecord) *testServer {
	t.Helper()

	store := catalog.NewStore(nil, zerolog.Nop())
	if len(records) > 0 {
		if _, err := store.Replace(records); err != nil {
			t.Fatalf("Replace: %v", err)
		}
	}
	bus := telemetry.NewBus(telemetry.DefaultConfig(), zerolog.Nop())

	cfg := engine.DefaultConfig()
	cfg.SearchDebounce = 20 * time.Millisecond
	cfg.Window.PrefetchMargin = 0

	eng, err := engine.New(engine.Deps{Store: store, Bus: bus, Codec: thumbCodec}, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Close)

	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = []string{testOrigin}
	mwCfg.RateLimitDisabled = true
	mw := NewChiMiddleware(mwCfg)

	hub := ws.NewHub()
	h := NewHandler(eng, hub, mw, HandlerConfig{DefaultPageSize: 2})
	return &testServer{
		eng:     eng,
		store:   store,
		hub:     hub,
		handler: h,
		mux:     NewRouter(h, nil).SetupChi(),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestHealth_ReadinessFollowsCatalog(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Fatalf("ready before load: %d %+v", rec.Code, env.Error)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/health", nil)
	var health HealthStatus
	decodeData(t, env, &health)
	if health.Status != "degraded" {
		t.Errorf("status = %q, want degraded", health.Status)
	}

	if _, err := s.store.Replace([]catalog.ProductRecord{product("A", "books", 10)}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready after load = %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
}

func TestView_Pagination(t *testing.T) {
	t.Parallel()

	s := newTestServer(t,
		product("A", "books", 10),
		product("B", "books", 20),
		product("C", "toys", 5),
		product("D", "toys", 15),
		product("E", "games", 30),
	)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantMore  bool
		wantCode  int
	}{
		{"default page size", "", 2, true, http.StatusOK},
		{"explicit limit", "?limit=4", 4, true, http.StatusOK},
		{"last page", "?offset=4&limit=2", 1, false, http.StatusOK},
		{"past end", "?offset=10", 0, false, http.StatusOK},
		{"max int offset", "?offset=9223372036854775807&limit=3", 0, false, http.StatusOK},
		{"negative offset", "?offset=-1", 0, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, env := s.do(t, http.MethodGet, "/api/v1/view"+tt.query, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var page ViewPage
			decodeData(t, env, &page)
			if len(page.Items) != tt.wantCount {
				t.Errorf("items = %d, want %d", len(page.Items), tt.wantCount)
			}
			p := env.Metadata.Pagination
			if p == nil || p.Total != 5 || p.HasMore != tt.wantMore {
				t.Errorf("pagination = %+v", p)
			}
			if page.Metrics.Count != 5 {
				t.Errorf("metrics count = %d, want 5", page.Metrics.Count)
			}
		})
	}
}

func TestCategoryAndSearch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t,
		product("A", "books", 10),
		product("B", "books", 20),
		product("C", "toys", 5),
	)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/category", CategoryRequest{Category: "books"})
	if rec.Code != http.StatusOK {
		t.Fatalf("category = %d", rec.Code)
	}

	_, env := s.do(t, http.MethodGet, "/api/v1/view?limit=10", nil)
	var page ViewPage
	decodeData(t, env, &page)
	if page.Metrics.Count != 2 || page.Inputs.Category != "books" {
		t.Errorf("after category: count %d inputs %+v", page.Metrics.Count, page.Inputs)
	}
	if page.Metrics.AveragePrice != 15 {
		t.Errorf("average price = %v, want 15", page.Metrics.AveragePrice)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/search", SearchRequest{Term: "Item B", Flush: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d", rec.Code)
	}
	var result struct {
		Applied bool `json:"applied"`
	}
	decodeData(t, env, &result)
	if !result.Applied {
		t.Error("flushed search was not applied")
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/view", nil)
	decodeData(t, env, &page)
	if len(page.Items) != 1 || page.Items[0].ID != "B" {
		t.Errorf("search view = %+v", page.Items)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/categories", nil)
	var cats struct {
		Categories []string `json:"categories"`
	}
	decodeData(t, env, &cats)
	if rec.Code != http.StatusOK || len(cats.Categories) != 2 {
		t.Errorf("categories = %v", cats.Categories)
	}
}

func TestProductAndRelated(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, product("A", "books", 10), product("B", "books", 20))

	rec, env := s.do(t, http.MethodGet, "/api/v1/products/A", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("product = %d", rec.Code)
	}
	var detail ProductDetail
	decodeData(t, env, &detail)
	if detail.ID != "A" || detail.AverageRating != 4.5 {
		t.Errorf("detail = %+v", detail)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/products/missing", nil)
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("missing product = %d %+v", rec.Code, env.Error)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/products/A/related", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("related = %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/products/missing/related", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("related for missing = %d", rec.Code)
	}
}

func TestCart_Endpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, product("A", "books", 10), product("B", "books", 20))

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
		items    int
	}{
		{"add A", http.MethodPost, "/api/v1/cart/items", CartItemRequest{ProductID: "A"}, http.StatusOK, "", 1},
		{"add A again", http.MethodPost, "/api/v1/cart/items", CartItemRequest{ProductID: "A"}, http.StatusOK, "", 2},
		{"add B", http.MethodPost, "/api/v1/cart/items", CartItemRequest{ProductID: "B"}, http.StatusOK, "", 3},
		{"add unknown", http.MethodPost, "/api/v1/cart/items", CartItemRequest{ProductID: "Z"}, http.StatusNotFound, ErrCodeNotFound, 3},
		{"add blank", http.MethodPost, "/api/v1/cart/items", CartItemRequest{ProductID: " "}, http.StatusBadRequest, ErrCodeValidation, 3},
		{"remove A", http.MethodDelete, "/api/v1/cart/items/A", nil, http.StatusOK, "", 2},
		{"remove absent", http.MethodDelete, "/api/v1/cart/items/Z", nil, http.StatusConflict, ErrCodeConflict, 2},
		{"clear", http.MethodDelete, "/api/v1/cart", nil, http.StatusOK, "", 0},
	}

	// steps build on each other
	for _, tt := range tests {
		rec, env := s.do(t, tt.method, tt.path, tt.body)
		if rec.Code != tt.wantCode {
			t.Fatalf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.wantCode, rec.Body.String())
		}
		if tt.wantErr != "" {
			if env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("%s: error = %+v, want %s", tt.name, env.Error, tt.wantErr)
			}
		}
		if got := s.eng.Cart().TotalItems(); got != tt.items {
			t.Errorf("%s: total items = %d, want %d", tt.name, got, tt.items)
		}
	}

	s.do(t, http.MethodPost, "/api/v1/cart/items", CartItemRequest{ProductID: "B"})
	_, env := s.do(t, http.MethodGet, "/api/v1/cart", nil)
	var summary engine.CartSummary
	decodeData(t, env, &summary)
	if summary.TotalItems != 1 || summary.TotalValue != 20 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestEvents_PublishAndRecent(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, product("A", "books", 10))

	tests := []struct {
		name     string
		req      EventRequest
		wantCode int
	}{
		{"product view", EventRequest{Kind: "productView", ProductID: "A"}, http.StatusOK},
		{"scroll", EventRequest{Kind: "scroll", Offset: 120}, http.StatusOK},
		{"unknown product", EventRequest{Kind: "productView", ProductID: "Z"}, http.StatusNotFound},
		{"unknown kind", EventRequest{Kind: "hover"}, http.StatusBadRequest},
		{"missing kind", EventRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec, env := s.do(t, http.MethodPost, "/api/v1/events", tt.req)
		if rec.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantCode)
			continue
		}
		if tt.wantCode == http.StatusOK {
			var ev telemetry.Event
			decodeData(t, env, &ev)
			if ev.Seq == 0 || ev.Timestamp.IsZero() {
				t.Errorf("%s: bus did not stamp event: %+v", tt.name, ev)
			}
		}
	}

	_, env := s.do(t, http.MethodGet, "/api/v1/events?n=1", nil)
	var recent struct {
		Count  int               `json:"count"`
		Events []telemetry.Event `json:"events"`
	}
	decodeData(t, env, &recent)
	if recent.Count != 1 || recent.Events[0].Kind != telemetry.KindScroll {
		t.Errorf("recent = %+v", recent)
	}
}

func TestWindow_FetchesAssets(t *testing.T) {
	t.Parallel()

	s := newTestServer(t,
		product("A", "books", 10),
		product("B", "books", 20),
		product("C", "toys", 5),
		product("D", "toys", 15),
	)

	rec, env := s.do(t, http.MethodPost, "/api/v1/window", WindowRequest{Top: 0, Height: 100, ItemHeight: 50, Wait: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("window = %d (%s)", rec.Code, rec.Body.String())
	}
	var win WindowResponse
	decodeData(t, env, &win)
	if len(win.VisibleIDs) == 0 || win.AssetError != "" {
		t.Fatalf("window = %+v", win)
	}

	id := win.VisibleIDs[0]
	_, env = s.do(t, http.MethodGet, "/api/v1/assets/"+id, nil)
	var status AssetStatus
	decodeData(t, env, &status)
	if status.Status != window.StatusResident {
		t.Errorf("asset %s status = %s, want resident", id, status.Status)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/assets/"+id+"/image", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("image = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "png:img://"+id {
		t.Errorf("image body = %q", rec.Body.String())
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/window", WindowRequest{Top: 0, Height: -5, ItemHeight: 50})
	if rec.Code != http.StatusOK {
		t.Errorf("invalid geometry = %d, want 200 with empty window", rec.Code)
	}
}

func TestRefresh_WithoutFeed(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec, env := s.do(t, http.MethodPost, "/api/v1/catalog/refresh", nil)
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil {
		t.Errorf("refresh = %d %+v", rec.Code, env.Error)
	}
}

func TestRouter_FallbackAndMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/nope", nil)
	if rec.Code != http.StatusNotFound || env.Error == nil {
		t.Errorf("unknown route = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.mux.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK || !strings.Contains(mrec.Body.String(), "api_active_requests") {
		t.Errorf("metrics = %d", mrec.Code)
	}

	if id := rec.Header().Get("X-Request-ID"); id == "" || env.Metadata.RequestID != id {
		t.Errorf("request id header %q, metadata %q", id, env.Metadata.RequestID)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tests := []struct {
		origin string
		want   bool
	}{
		{testOrigin, true},
		{"http://evil.test", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := s.handler.checkWebSocketOrigin(req); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestRealtime_ViewChangedBroadcast(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, product("A", "books", 10), product("B", "toys", 20))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.hub.RunWithContext(ctx) }()

	stop := s.handler.StartRealtime()
	defer stop()

	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if resp.Body != nil {
		_ = resp.Body.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.eng.SelectCategory("toys")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		var msg struct {
			Type string             `json:"type"`
			Data ws.ViewChangedData `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != ws.MessageTypeViewChanged || msg.Data.Category != "toys" {
			continue
		}
		if msg.Data.Count != 1 || len(msg.Data.Head) != 1 || msg.Data.Head[0] != "B" {
			t.Errorf("view_changed = %+v", msg.Data)
		}
		return
	}
}
