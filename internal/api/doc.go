// Package api provides the operational HTTP REST API and WebSocket
// server for the bridge.
//
// It exposes the device sessions, protocol affinity decisions, learned
// scaling state and the capability-profile registry to operators, and
// relays normalized state updates to WebSocket clients in real time.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
