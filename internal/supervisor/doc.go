// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package supervisor runs Riskguard's long-lived services under suture v4.

	RootSupervisor ("riskguard")
	├── EngineSupervisor ("engine-layer")
	│   ├── Sweeper ("sweeper")
	│   └── CPU load probe ("load-probe", load.mode=cpu)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub ("websocket-hub")
	│   └── Ingestor ("signal-ingest", ingest.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService ("http-server", server.enabled)

Crashed services restart with suture's exponential backoff. Supervisor events
are logged through sutureslog into the zerolog pipeline:

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddEngineService(engine.NewSweeper(eng))
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(newServer, cfg.Server.Timeout))

	err = tree.Serve(ctx)

Add takes a Layer for callers that pick the layer at runtime.

Resources such as the badger store are closed by Resources after Serve
returns, once no service can still touch them.
*/
package supervisor
