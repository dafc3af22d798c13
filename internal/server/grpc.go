// Package server assembles the gRPC server: the auth, audit, and
// telemetry interceptor chain, OpenTelemetry instrumentation, the
// standard health service, and optional reflection for development.
// Callers register their services on the returned server and drive the
// health status around startup and shutdown.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"matterguard/authcore/internal/audit"
	"matterguard/authcore/internal/server/interceptors"
	"matterguard/authcore/internal/telemetry"
)

// Deps holds the dependencies of the assembled server.
type Deps struct {
	// Authenticator backs the auth interceptor. If nil, every protected
	// RPC is rejected as unauthenticated.
	Authenticator interceptors.Authenticator
	// Audit receives one event per authenticated RPC. If nil, RPCs are
	// not audited. The auth-flow RPCs still write their own events in
	// the service layer.
	Audit audit.AuditLogger
	// Emitter receives one grpc_request event per RPC. If nil, no
	// request telemetry is emitted.
	Emitter telemetry.EventEmitter
	// PublicMethods is the set of full method names served without
	// credentials. Nil means DefaultPublicMethods.
	PublicMethods map[string]bool
	// SkipMethods is the set of full method names excluded from audit
	// and request telemetry. Nil means DefaultSkipMethods.
	SkipMethods map[string]bool
	// Reflection registers the reflection service. Development only.
	Reflection bool
}

// New builds the gRPC server with the interceptor chain and the
// otelgrpc stats handler, and registers the health service. The
// returned health server starts SERVING; call its Shutdown on the way
// out so load balancers drain before GracefulStop.
func New(deps Deps) (*grpc.Server, *health.Server) {
	public := deps.PublicMethods
	if public == nil {
		public = DefaultPublicMethods()
	}
	skip := deps.SkipMethods
	if skip == nil {
		skip = DefaultSkipMethods()
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Authenticator, public),
			interceptors.AuditUnary(deps.Audit, skip),
			interceptors.TelemetryUnary(deps.Emitter, skip),
		),
	)

	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	if deps.Reflection {
		reflection.Register(s)
	}
	return s, h
}

// DefaultPublicMethods returns the full method names that run before a
// Bearer credential exists: the auth flows driven by the session token
// or refresh token, and the health checks.
func DefaultPublicMethods() map[string]bool {
	return map[string]bool{
		"/matterguard.auth.v1.AuthService/BeginSession":  true,
		"/matterguard.auth.v1.AuthService/CompleteMFA":   true,
		"/matterguard.auth.v1.AuthService/RefreshTokens": true,
		"/matterguard.auth.v1.AuthService/Logout":        true,
		"/grpc.health.v1.Health/Check":                   true,
		"/grpc.health.v1.Health/Watch":                   true,
	}
}

// DefaultSkipMethods returns the full method names excluded from the
// audit trail and request telemetry.
func DefaultSkipMethods() map[string]bool {
	return map[string]bool{
		"/grpc.health.v1.Health/Check": true,
		"/grpc.health.v1.Health/Watch": true,
	}
}
