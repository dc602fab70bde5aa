package audit

import (
	"testing"
)

func TestParseFullMethod(t *testing.T) {
	testCases := []struct {
		fullMethod string
		action     string
		resource   string
		mutating   bool
	}{
		{"/saas.session.v1.SessionService/ListSessions", "read", "session", false},
		{"/saas.tenant.v1.WorkspaceService/GetWorkspace", "read", "workspace", false},
		{"/saas.session.v1.SessionService/RevokeSession", "revoke", "session", true},
		{"/saas.session.v1.SessionService/RevokeOtherSessions", "revoke", "session", true},
		{"/saas.tenant.v1.WorkspaceService/CreateWorkspace", "create", "workspace", true},
		{"/saas.tenant.v1.WorkspaceService/UpdateWorkspace", "update", "workspace", true},
		{"/saas.tenant.v1.WorkspaceService/DeleteWorkspace", "delete", "workspace", true},
		{"/saas.audit.v1.AuditLogService/ListAuditLogs", "read", "audit_log", false},
		{"/saas.auth.v1.AuthService/StartImpersonation", "start", "impersonation", true},
		{"/saas.auth.v1.AuthService/EndImpersonation", "end", "impersonation", true},
		{"/saas.auth.v1.AuthService/SignIn", "sign_in", "auth", true},
		{"/saas.auth.v1.AuthService/LogoutAll", "logout_all", "auth", true},
	}
	for _, tc := range testCases {
		t.Run(tc.fullMethod, func(t *testing.T) {
			ar := ParseFullMethod(tc.fullMethod)
			if ar.Action != tc.action {
				t.Errorf("action = %q, want %q", ar.Action, tc.action)
			}
			if ar.Resource != tc.resource {
				t.Errorf("resource = %q, want %q", ar.Resource, tc.resource)
			}
			if ar.Mutating() != tc.mutating {
				t.Errorf("Mutating() = %v, want %v", ar.Mutating(), tc.mutating)
			}
		})
	}
}

func TestParseFullMethod_Malformed(t *testing.T) {
	ar := ParseFullMethod("no-slash")
	if ar.Action != "unknown" || ar.Resource != "unknown" {
		t.Errorf("got %+v, want unknown/unknown", ar)
	}
	if ar.Mutating() {
		t.Error("unknown method should not be treated as mutating")
	}

	ar = ParseFullMethod("Service/DoThing")
	if ar.Action != "do_thing" || ar.Resource != "unknown" {
		t.Errorf("got %+v, want do_thing/unknown", ar)
	}
}

func TestParseFullMethod_PrefixOnlyMethod(t *testing.T) {
	ar := ParseFullMethod("/saas.x.v1.ThingService/Get")
	if ar.Action != "get" {
		t.Errorf("action = %q, want %q", ar.Action, "get")
	}
}

func TestActionResource_EventName(t *testing.T) {
	ar := ParseFullMethod("/saas.session.v1.SessionService/RevokeSession")
	if got := ar.EventName(); got != "rpc.session.revoke" {
		t.Errorf("EventName = %q, want %q", got, "rpc.session.revoke")
	}
}
