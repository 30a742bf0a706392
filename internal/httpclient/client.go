// Package httpclient defines the HTTP client collaborator the sending state
// machine consumes and its real, OpenTelemetry-instrumented
// implementation.
package httpclient

import (
	"context"

	"github.com/openkit-go/openkit/internal/protocol"
)

// Client is the narrow interface the sending state machine depends on. It
// deliberately exposes only the three request kinds spec §6 names; auth and
// TLS negotiation are out of scope (spec §1 Non-goals).
type Client interface {
	SendStatusRequest(ctx context.Context) (*protocol.StatusResponse, error)
	SendBeaconRequest(ctx context.Context, clientIP, body string) (*protocol.StatusResponse, error)
	SendNewSessionRequest(ctx context.Context) (*protocol.StatusResponse, error)
}

// Config carries the pieces of the Configuration Snapshot that shape the
// outbound request (endpoint, application id, server id), so a new Client
// can be built whenever ServerID changes.
type Config struct {
	Endpoint      string
	ApplicationID string
	ServerID      int32
	TimeoutMs     int64 // default 30000
}
