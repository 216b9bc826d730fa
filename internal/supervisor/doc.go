// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package supervisor runs the long-lived parts of the CMCD analytics server
under a suture v4 tree.

The tree has three layers so a failure in one does not take down the others:

	RootSupervisor ("cmcd-analytics")
	├── StoreSupervisor ("store-layer")
	│   └── AppenderService        batches samples into the sinks
	├── IngestSupervisor ("ingest-layer")
	│   ├── BrokerService          embedded or external NATS JetStream
	│   └── SubscriberService      stream consumer feeding the appender
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Ingest services are only added when ingest is enabled; with the broker
disabled the HTTP ingest endpoint feeds the appender directly and the ingest
layer stays empty.

Supervisor events are logged through sutureslog on top of the zerolog-backed
slog handler from internal/logging.
*/
package supervisor
