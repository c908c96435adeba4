package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/ingest/internal/core"
)

// Identity headers set by the upstream identity collaborator.
const (
	HeaderUserID     = "X-User-ID"
	HeaderDeptID     = "X-Dept-ID"
	HeaderScopeDepts = "X-Data-Scope-Depts"
)

// RequireActor reads the caller's identity from the identity headers and
// stores it with core.ContextWithActor. Requests without a valid user and
// department id are rejected with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := parseActor(r.Header)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "missing or invalid identity", "AUTH_IDENTITY")
			return
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), actor)))
	})
}

func parseActor(h http.Header) (core.Actor, bool) {
	userID, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderUserID)), 10, 64)
	if err != nil {
		return core.Actor{}, false
	}
	deptID, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderDeptID)), 10, 64)
	if err != nil {
		return core.Actor{}, false
	}

	actor := core.Actor{UserID: userID, DeptID: deptID}
	if raw := h.Get(HeaderScopeDepts); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return core.Actor{}, false
			}
			actor.ScopeDepts = append(actor.ScopeDepts, id)
		}
	}
	return actor, true
}
