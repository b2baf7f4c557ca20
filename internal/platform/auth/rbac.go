package auth

import (
	"net/http"
	"strings"
)

const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// roleOrder lists roles lowest first; each role grants what the earlier ones do.
var roleOrder = []string{RoleViewer, RoleEditor, RoleAdmin}

// syncActions are POST actions that only pull platform state into the ledger.
var syncActions = []string{":refresh"}

func rank(role string) int {
	role = strings.ToLower(strings.TrimSpace(role))
	for i, r := range roleOrder {
		if r == role {
			return i + 1
		}
	}
	return 0
}

// Allows reports whether the identity holds required or a higher role.
// Unknown roles grant nothing.
func (id Identity) Allows(required string) bool {
	need := rank(required)
	if need == 0 {
		return false
	}
	for _, role := range id.Roles {
		if rank(role) >= need {
			return true
		}
	}
	return false
}

// RequiredRole maps a request to the least role allowed to make it: reads and
// sync actions need viewer, launching and cancelling need editor.
func RequiredRole(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	}
	for _, action := range syncActions {
		if strings.HasSuffix(r.URL.Path, action) {
			return RoleViewer
		}
	}
	return RoleEditor
}
