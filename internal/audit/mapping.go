package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full
// method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Auth method overrides: these RPCs audit under the security event
// names the auth flows use, not the generic verb mapping.
const (
	authBeginSession = "/matterguard.auth.v1.AuthService/BeginSession"
	authCompleteMFA  = "/matterguard.auth.v1.AuthService/CompleteMFA"
	authRefresh      = "/matterguard.auth.v1.AuthService/RefreshTokens"
	authLogout       = "/matterguard.auth.v1.AuthService/Logout"
)

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /matterguard.auth.v1.SessionService/ListSessions). Action is a
// verb: get, list, create, update, delete, revoke, check, or the
// lowercase method name for others. Resource is derived from the
// service name (SessionService -> session).
func ParseFullMethod(fullMethod string) ActionResource {
	switch fullMethod {
	case authBeginSession:
		return ActionResource{Action: ActionSessionCreated, Resource: "session"}
	case authCompleteMFA:
		return ActionResource{Action: ActionMFACompleted, Resource: "session"}
	case authRefresh:
		return ActionResource{Action: ActionTokenRefreshed, Resource: "token"}
	case authLogout:
		return ActionResource{Action: ActionLogout, Resource: "session"}
	}
	// fullMethod format: /matterguard.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	serviceName := beforeSlash[dot+1:]
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(serviceName)}
}

func serviceToResource(serviceName string) string {
	// SessionService -> session, PolicyService -> policy
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Create"):
		return "create"
	case strings.HasPrefix(method, "Update"):
		return "update"
	case strings.HasPrefix(method, "Delete"):
		return "delete"
	case strings.HasPrefix(method, "Revoke"):
		return "revoke"
	case strings.HasPrefix(method, "Check"):
		return "check"
	case strings.HasPrefix(method, "Enroll"):
		return "enroll"
	default:
		return strings.ToLower(method)
	}
}
