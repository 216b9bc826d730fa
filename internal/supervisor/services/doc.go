// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package services adapts the server's components to suture.Service.

Each wrapper turns a component lifecycle into a context-aware Serve:

	HTTPServerService    ListenAndServe / Shutdown
	BrokerService        NATS broker health watch / Close
	SubscriberService    Consumer.Run / Close
	AppenderService      Appender.Start / Close (final flush)

Serve returns ctx.Err() on a requested shutdown and a wrapped error when the
component fails, which makes suture restart it with backoff.
*/
package services
