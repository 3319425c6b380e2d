package api

import "testing"

func TestIdentityLookup(t *testing.T) {
	id := NewIdentity(map[string]string{
		"view-token":  "viewer",
		"admin-token": "admin",
		"bad-role":    "owner",
	})

	tests := []struct {
		token string
		want  Role
		ok    bool
	}{
		{"view-token", RoleViewer, true},
		{"admin-token", RoleAdmin, true},
		{"admin-toke", RoleNone, false},
		{"admin-token-x", RoleNone, false},
		{"bad-role", RoleNone, false},
		{"", RoleNone, false},
	}
	for _, tt := range tests {
		role, ok := id.lookup(tt.token)
		if role != tt.want || ok != tt.ok {
			t.Errorf("lookup(%q) = %v, %v; want %v, %v", tt.token, role, ok, tt.want, tt.ok)
		}
	}
}
