// Package api implements the local control API for vhtoggle watch mode.
//
// This package provides:
//   - REST endpoints for the current device state and state history
//   - A toggle endpoint that queues an interactive cycle
//   - A WebSocket hub streaming notification events
//   - Optional JWT bearer authentication (see package auth)
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server never runs cycles itself. Toggle requests are pushed onto the
// trigger channel consumed by controller.Watch, so cycles stay serialised on
// one goroutine. The Hub is a notify.Sink: it is added to the dispatcher and
// relays every event to connected WebSocket clients.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Security
//
// Authentication is off when api.jwt_secret is empty. When set, every route
// except /health needs a bearer token; toggling needs the "control" scope.
// WebSocket clients may pass the token as the "token" query parameter since
// browsers cannot set headers on upgrade requests.
package api
