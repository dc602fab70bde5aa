package audit

import (
	"strings"
	"unicode"
)

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// EventName returns the audit event recorded for the call, e.g. rpc.session.revoke.
func (a ActionResource) EventName() string {
	return "rpc." + a.Resource + "." + a.Action
}

// Mutating reports whether the call changes state. Reads are not audited.
func (a ActionResource) Mutating() bool {
	return a.Action != "read" && a.Action != "unknown"
}

// Method overrides: impersonation RPCs live on AuthService but act on the impersonation resource.
var methodOverrides = map[string]ActionResource{
	"/saas.auth.v1.AuthService/StartImpersonation": {Action: "start", Resource: "impersonation"},
	"/saas.auth.v1.AuthService/EndImpersonation":   {Action: "end", Resource: "impersonation"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /saas.session.v1.SessionService/RevokeSession).
// Action is a verb: read (Get*, List*), create, update, delete, revoke, start, end, or the snake_case method name for others.
// Resource is derived from the service name (e.g. SessionService -> session).
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /saas.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: snakeCase(method), Resource: "unknown"}
	}
	serviceName := beforeSlash[dot+1:]
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(serviceName)}
}

func serviceToResource(serviceName string) string {
	// SessionService -> session, AuditLogService -> audit_log
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return snakeCase(s)
}

func methodToAction(method string) string {
	prefixes := []struct {
		prefix, action string
	}{
		{"Get", "read"},
		{"List", "read"},
		{"Create", "create"},
		{"Update", "update"},
		{"Delete", "delete"},
		{"Invite", "invite"},
		{"Remove", "remove"},
		{"Revoke", "revoke"},
		{"Start", "start"},
		{"End", "end"},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(method, p.prefix) && method != p.prefix {
			return p.action
		}
	}
	return snakeCase(method)
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
