package interceptors

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"matterguard/authcore/internal/telemetry"
	telemetrydomain "matterguard/authcore/internal/telemetry/domain"
)

// TelemetryUnary returns a unary server interceptor that emits a
// grpc_request security event after each RPC, carrying method, status,
// duration, and client IP. Emission is asynchronous and best-effort. A
// nil emitter disables the interceptor. skipMethods is the set of full
// method names to not emit (e.g. the health checks).
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		severity := telemetrydomain.SeverityInfo
		if err != nil {
			severity = telemetrydomain.SeverityWarn
		}
		id, _ := GetIdentity(ctx)
		telemetry.EmitAsync(emitter, ctx, &telemetrydomain.SecurityEvent{
			OrgID:     id.OrgID,
			UserID:    id.UserID,
			SessionID: id.SessionID,
			EventType: "grpc_request",
			Source:    "grpc_interceptor",
			Severity:  severity,
			Metadata: map[string]string{
				"full_method": info.FullMethod,
				"status_code": code.String(),
				"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
				"client_ip":   ClientIP(ctx),
			},
			CreatedAt: time.Now().UTC(),
		})
		return resp, err
	}
}
