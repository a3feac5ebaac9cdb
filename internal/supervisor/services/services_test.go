// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/engine"
	"github.com/tomtom215/catalogview/internal/telemetry"
)

// Compile-time checks against the suture.Service interface.
var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*WebSocketHubService)(nil)
	_ suture.Service = (*RefreshService)(nil)
	_ suture.Service = (*RollupService)(nil)
	_ suture.Service = (*SinkForwarderService)(nil)
	_ suture.Service = (*SinkConsumerService)(nil)
)

type mockHTTPServer struct {
	listenErr error
	started   chan struct{}
	stopCh    chan struct{}
	shutdowns atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}, 1), stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	m.started <- struct{}{}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return nil
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	t.Parallel()

	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times", server.shutdowns.Load())
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestHTTPServerService_ListenError(t *testing.T) {
	t.Parallel()

	server := newMockHTTPServer()
	server.listenErr = errors.New("address in use")

	err := NewHTTPServerService(server, 0).Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("Serve = %v, want wrapped listen error", err)
	}
}

type hubFunc func(ctx context.Context) error

func (f hubFunc) RunWithContext(ctx context.Context) error { return f(ctx) }

func TestWebSocketHubService_Delegates(t *testing.T) {
	t.Parallel()

	var called atomic.Bool
	svc := NewWebSocketHubService(hubFunc(func(ctx context.Context) error {
		called.Store(true)
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v", err)
	}
	if !called.Load() || svc.String() != "websocket-hub" {
		t.Error("hub was not run")
	}
}

type stubRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *stubRefresher) Refresh(context.Context) (*catalog.Snapshot, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return catalog.NewStore(nil, zerolog.Nop()).Current(), nil
}

func TestRefreshService_Periodic(t *testing.T) {
	t.Parallel()

	r := &stubRefresher{}
	svc := NewRefreshService(r, RefreshServiceConfig{RefreshOnStartup: true, Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v", err)
	}
	if n := r.calls.Load(); n < 3 {
		t.Errorf("refreshed %d times, want at least 3", n)
	}
}

func TestRefreshService_FeedErrorsDoNotStopService(t *testing.T) {
	t.Parallel()

	r := &stubRefresher{err: catalog.ErrIngest}
	svc := NewRefreshService(r, RefreshServiceConfig{RefreshOnStartup: true, Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want to keep running through feed errors", err)
	}
	if r.calls.Load() < 2 {
		t.Error("failed refreshes were not retried")
	}
}

func TestRefreshService_NoFeedIsPermanent(t *testing.T) {
	t.Parallel()

	r := &stubRefresher{err: engine.ErrNoFeed}
	svc := NewRefreshService(r, RefreshServiceConfig{RefreshOnStartup: true}, zerolog.Nop())

	if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve = %v, want ErrDoNotRestart", err)
	}
}

type rollFunc func() bool

func (f rollFunc) Rollup() bool { return f() }

func TestRollupService_Ticks(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	svc := NewRollupService(rollFunc(func() bool { return calls.Add(1)%2 == 0 }), 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	if calls.Load() < 3 {
		t.Errorf("Rollup called %d times", calls.Load())
	}
}

func TestSinkForwarderService(t *testing.T) {
	t.Parallel()

	bus := telemetry.NewBus(telemetry.DefaultConfig(), zerolog.Nop())
	sink := &countingSink{}
	fwd := telemetry.NewForwarder(bus, sink, telemetry.DefaultForwarderConfig(), zerolog.Nop())
	svc := NewSinkForwarderService(fwd)

	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()

	if _, err := bus.Publish(telemetry.Event{Kind: telemetry.KindSearch, Query: "lamp"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sink.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.n.Load() != 1 {
		t.Errorf("delivered %d records, want 1", sink.n.Load())
	}

	fwd.Close()
	select {
	case err := <-done:
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve = %v, want ErrDoNotRestart", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closed forwarder kept running")
	}
}

type countingSink struct {
	n atomic.Int32
}

func (s *countingSink) Deliver(context.Context, telemetry.Record) error {
	s.n.Add(1)
	return nil
}

type chanSubscriber struct {
	ch chan *message.Message
}

func (s *chanSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return s.ch, nil
}

func (s *chanSubscriber) Close() error {
	close(s.ch)
	return nil
}

func TestSinkConsumerService_AcksRecords(t *testing.T) {
	t.Parallel()

	sub := &chanSubscriber{ch: make(chan *message.Message, 2)}
	svc := NewSinkConsumerService(sub, "test.consumer", zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()

	payload, err := json.Marshal(telemetry.Flatten(telemetry.Event{Seq: 1, Kind: telemetry.KindSearch, Query: "desk"}, 64))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	valid := message.NewMessage(watermill.NewUUID(), payload)
	malformed := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	sub.ch <- valid
	sub.ch <- malformed

	for name, msg := range map[string]*message.Message{"valid": valid, "malformed": malformed} {
		select {
		case <-msg.Acked():
		case <-time.After(2 * time.Second):
			t.Fatalf("%s message was not acked", name)
		}
	}

	_ = sub.Close()
	select {
	case err := <-done:
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve = %v, want ErrDoNotRestart after subscriber closed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer kept running after subscriber closed")
	}
}

func TestSinkConsumerService_GoChannel(t *testing.T) {
	t.Parallel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	sink := telemetry.NewWatermillSink(pubSub, "test.persistent", nil)
	rec := telemetry.Flatten(telemetry.Event{Seq: 2, Kind: telemetry.KindScroll}, 64)
	if err := sink.Deliver(context.Background(), rec); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewSinkConsumerService(pubSub, "test.persistent", zerolog.Nop()).Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v", err)
	}
}
