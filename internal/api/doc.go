// Package api serves the BAES REST API under /api/v1.
//
// The server follows the same lifecycle as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Every route except login, health, version and status ingestion needs a
// bearer token from POST /auth/login. Store errors are mapped by kind:
// not found to 404, validation to 400, conflict to 409, anything else
// to 500.
package api
