// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/catalogview/internal/resilience"
)

// ErrSinkClosed is returned when delivering to a closed sink.
var ErrSinkClosed = errors.New("sink is closed")

// DefaultSinkTopic is the watermill topic analytics records go to.
const DefaultSinkTopic = "catalog.analytics"

// WatermillSink publishes records as JSON watermill messages. Any
// message.Publisher works: gochannel in-process, or a broker-backed one.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
	breaker   *resilience.Breaker

	mu     sync.RWMutex
	closed bool
}

// NewWatermillSink creates a sink publishing to topic. breaker may be nil.
func NewWatermillSink(publisher message.Publisher, topic string, breaker *resilience.Breaker) *WatermillSink {
	if topic == "" {
		topic = DefaultSinkTopic
	}
	return &WatermillSink{publisher: publisher, topic: topic, breaker: breaker}
}

// Deliver serializes rec and publishes it. The record ID is the message UUID.
func (s *WatermillSink) Deliver(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}

	msg := message.NewMessage(rec.ID, payload)
	msg.Metadata.Set("kind", rec.Kind)
	msg.Metadata.Set("seq", fmt.Sprintf("%d", rec.Seq))
	msg.SetContext(ctx)

	if s.breaker == nil {
		return s.publisher.Publish(s.topic, msg)
	}
	_, err = resilience.Execute(s.breaker, func() (struct{}, error) {
		return struct{}{}, s.publisher.Publish(s.topic, msg)
	})
	return err
}

// Topic returns the destination topic.
func (s *WatermillSink) Topic() string { return s.topic }

// Close closes the underlying publisher.
func (s *WatermillSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.publisher.Close()
}
