// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// recordingSink captures delivered records.
type recordingSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestFlatten_TruncatesStrings(t *testing.T) {
	t.Parallel()

	e := Event{
		Seq:       7,
		Kind:      KindSearch,
		Query:     strings.Repeat("x", 300),
		Detail:    "short",
		ProductID: "p-1",
	}

	rec := Flatten(e, 10)
	if len(rec.Query) != 10 {
		t.Errorf("Query length = %d, want 10", len(rec.Query))
	}
	if rec.Detail != "short" || rec.ProductID != "p-1" {
		t.Errorf("short fields changed: %+v", rec)
	}
	if rec.Seq != 7 || rec.Kind != "search" {
		t.Errorf("identity fields not copied: %+v", rec)
	}
	if rec.ID == "" {
		t.Error("record ID must be set")
	}
}

func TestForwarder_DeliversMatchingKinds(t *testing.T) {
	t.Parallel()

	bus := newTestBus(32, 0)
	sink := &recordingSink{}
	fwd := NewForwarder(bus, sink, ForwarderConfig{
		QueueSize: 8,
		Kinds:     []Kind{KindProductView, KindCartChange},
	}, zerolog.Nop())
	defer fwd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwd.Run(ctx) //nolint:errcheck // stopped by cancel

	bus.Publish(Event{Kind: KindSearch, Query: "ignored"})
	bus.Publish(Event{Kind: KindProductView, ProductID: "a"})
	bus.Publish(Event{Kind: KindCartChange, ProductID: "a", Quantity: 1})

	waitFor(t, func() bool { return sink.count() == 2 })

	if got := fwd.Stats().Delivered; got != 2 {
		t.Errorf("Delivered = %d, want 2", got)
	}
}

func TestForwarder_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	bus := newTestBus(32, 0)
	sink := &recordingSink{}
	fwd := NewForwarder(bus, sink, ForwarderConfig{QueueSize: 2}, zerolog.Nop())
	defer fwd.Close()

	// Run is not started, so the queue fills up and publication keeps going.
	for i := 0; i < 5; i++ {
		if _, err := bus.Publish(Event{Kind: KindScroll}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	stats := fwd.Stats()
	if stats.Enqueued != 2 || stats.Dropped != 3 || stats.Queued != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if bus.Len() != 5 {
		t.Errorf("bus Len = %d, want 5", bus.Len())
	}
}

func TestForwarder_CountsDeliveryErrors(t *testing.T) {
	t.Parallel()

	bus := newTestBus(32, 0)
	sink := &recordingSink{err: errors.New("sink down")}
	fwd := NewForwarder(bus, sink, ForwarderConfig{QueueSize: 4}, zerolog.Nop())
	defer fwd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwd.Run(ctx) //nolint:errcheck // stopped by cancel

	bus.Publish(Event{Kind: KindScroll})
	waitFor(t, func() bool { return fwd.Stats().Failed == 1 })
}

func TestForwarder_CloseStopsRun(t *testing.T) {
	t.Parallel()

	bus := newTestBus(8, 0)
	fwd := NewForwarder(bus, &recordingSink{}, ForwarderConfig{}, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- fwd.Run(context.Background()) }()

	fwd.Close()
	fwd.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrForwarderClosed) {
			t.Errorf("Run returned %v, want ErrForwarderClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if bus.Stats().Subscribers != 0 {
		t.Errorf("forwarder still subscribed after Close")
	}
}

func TestWatermillSink_PublishesJSONRecords(t *testing.T) {
	t.Parallel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "test.analytics")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sink := NewWatermillSink(pubSub, "test.analytics", nil)
	rec := Flatten(Event{Seq: 3, Kind: KindProductView, ProductID: "p-9"}, 64)
	if err := sink.Deliver(ctx, rec); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != rec.ID {
			t.Errorf("UUID = %s, want %s", msg.UUID, rec.ID)
		}
		if msg.Metadata.Get("kind") != "productView" {
			t.Errorf("kind metadata = %q", msg.Metadata.Get("kind"))
		}
		var got Record
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.ProductID != "p-9" || got.Seq != 3 {
			t.Errorf("payload = %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestWatermillSink_ClosedRejects(t *testing.T) {
	t.Parallel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	sink := NewWatermillSink(pubSub, "", nil)
	if sink.Topic() != DefaultSinkTopic {
		t.Errorf("Topic = %q, want default", sink.Topic())
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Deliver(context.Background(), Record{ID: "x"}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Deliver after Close = %v, want ErrSinkClosed", err)
	}
}
