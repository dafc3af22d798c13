package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"matterguard/authcore/internal/auth"
)

// Authenticator verifies the authorization header and the session behind
// it. Satisfied by *auth.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization, ip, userAgent string) (*auth.Authorization, error)
}

// AuthUnary returns a unary server interceptor that authenticates the
// Bearer (access) token from gRPC metadata, validates the bound session,
// and sets the identity in context for protected RPCs. publicMethods is
// the set of full method names served without credentials (e.g.
// BeginSession, RefreshTokens, the health checks); on those a missing or
// failing credential falls through to the handler unauthenticated. All
// rejections use one generic message.
func AuthUnary(authn Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		header := authorizationHeader(ctx)
		public := publicMethods[info.FullMethod]

		if header == "" || authn == nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		authz, err := authn.Authenticate(ctx, header, ClientIP(ctx), userAgent(ctx))
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		ctx = WithIdentity(ctx, Identity{
			UserID:      authz.UserID,
			OrgID:       authz.OrgID,
			SessionID:   authz.SessionID,
			Roles:       authz.Roles,
			MFAVerified: authz.MFAVerified,
		})
		return handler(ctx, req)
	}
}

// authorizationHeader returns the raw authorization metadata value, or
// "" if missing.
func authorizationHeader(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// userAgent returns the client user-agent from gRPC metadata, or "".
func userAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("user-agent")
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
