// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/catalogview/internal/telemetry"
)

// Drainer delivers queued analytics records until stopped.
// Satisfied by *telemetry.Forwarder.
type Drainer interface {
	Run(ctx context.Context) error
}

// SinkForwarderService runs the analytics forwarder under supervision.
// A closed forwarder is not restarted.
type SinkForwarderService struct {
	drainer Drainer
}

// NewSinkForwarderService wraps drainer.
func NewSinkForwarderService(drainer Drainer) *SinkForwarderService {
	return &SinkForwarderService{drainer: drainer}
}

// Serve implements suture.Service.
func (s *SinkForwarderService) Serve(ctx context.Context) error {
	err := s.drainer.Run(ctx)
	if errors.Is(err, telemetry.ErrForwarderClosed) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s *SinkForwarderService) String() string {
	return "sink-forwarder"
}

// SinkConsumerService reads analytics records back off a watermill topic
// and logs them. It stands in for an external analytics consumer when the
// sink publishes in-process.
type SinkConsumerService struct {
	subscriber message.Subscriber
	topic      string
	logger     zerolog.Logger
}

// NewSinkConsumerService creates a consumer for topic.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSinkConsumerService(subscriber message.Subscriber, topic string, logger zerolog.Logger) *SinkConsumerService {
	return &SinkConsumerService{
		subscriber: subscriber,
		topic:      topic,
		logger:     logger.With().Str("service", "sink-consumer").Str("topic", topic).Logger(),
	}
}

// Serve implements suture.Service. Malformed messages are acked and skipped.
func (s *SinkConsumerService) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return suture.ErrDoNotRestart
			}
			var rec telemetry.Record
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				s.logger.Warn().Err(err).Str("uuid", msg.UUID).Msg("dropping malformed analytics record")
				msg.Ack()
				continue
			}
			s.logger.Debug().
				Uint64("seq", rec.Seq).
				Str("kind", rec.Kind).
				Str("product_id", rec.ProductID).
				Msg("analytics record")
			msg.Ack()
		}
	}
}

func (s *SinkConsumerService) String() string {
	return "sink-consumer"
}
