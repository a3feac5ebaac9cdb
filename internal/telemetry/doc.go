// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package telemetry implements the bounded interaction event bus.

# Overview

Bus stores events in a fixed-capacity ring ordered by sequence number. Each
Publish evicts at most the single oldest event, so memory never grows past
the configured capacity. Subscribers register a Predicate and a Handler and
are called synchronously on the publisher's goroutine:

	bus := telemetry.NewBus(telemetry.DefaultConfig(), logger)
	sub := bus.Subscribe("views", telemetry.Kinds(telemetry.KindProductView), func(e telemetry.Event) error {
	    return nil
	})
	defer bus.Unsubscribe(sub)

	bus.Publish(telemetry.Event{Kind: telemetry.KindProductView, ProductID: "p-1"})

A handler that returns an error or panics never affects other subscribers.
The failure is logged and recorded in the ring as an error event.

# Window Versions

The bus keeps a coarse window version that bumps every RollupEvery events,
or on Rollup when events arrived since the previous bump. Each bump freezes
an immutable Window of the most recent events. Scoring reads CurrentWindow,
so results only change when the version changes.

# Analytics Sink

Forwarder subscribes to the bus, flattens events into size-bounded Records
and queues them without blocking the publisher. Run drains the queue into a
Sink at a limited rate. WatermillSink publishes records to a watermill
message.Publisher.
*/
package telemetry
