// Package app is the composition root of the DropIt client.
//
// # Overview
//
// NewContainer registers every service with a samber/do injector. Services
// are built lazily on first invoke, so commands that only need the API
// client never open the local database or the log file.
//
//	Options ──> Config ──> Logger ──> Storage
//	                  │                  │
//	                  └──> api.Client <──┴── auth.Session (authorizer)
//	                          │
//	                          ├──> CollectionStore
//	                          ├──> UIStore
//	                          └──> MapStore ──> ui.MapView
//
// Storage and the log file implement Shutdown, so a single Shutdown call on
// the container releases both.
//
// # Run
//
// Run drives the TUI session:
//
//  1. Restore persisted collection, map and UI state
//  2. Apply the start-up location, if any
//  3. Refresh the cached profile when a session is stored
//  4. Start auto refresh and the health poller
//  5. Run the TUI until the user quits
//  6. Persist store state
//
// # Health Polling
//
// StartHealthPoller probes the backend once per interval (default one
// minute) and only notifies on transitions. While the backend is down the
// interval doubles per failure, capped at ten minutes.
//
// # Usage Example
//
//	err := app.Run(ctx, app.Options{
//		ConfigPath: "",   // ~/.config/dropit/config.toml
//		Flags:      cmd.Flags(),
//	})
package app
