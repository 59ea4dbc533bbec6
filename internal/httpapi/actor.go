package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// Actor is the authenticated caller as asserted by the API gateway in front
// of this service. The gateway terminates sessions; we only trust its
// identity headers.
type Actor struct {
	ID   string
	Role string
}

const (
	RolePatient = "patient"
	RoleNurse   = "nurse"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

type actorContextKey struct{}

func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		actor := Actor{
			ID:   strings.TrimSpace(r.Header.Get("X-Actor-ID")),
			Role: strings.ToLower(strings.TrimSpace(r.Header.Get("X-Actor-Role"))),
		}
		if actor.ID == "" || !isKnownRole(actor.Role) {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing or invalid actor identity")
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (Actor, bool) {
	value := ctx.Value(actorContextKey{})
	if value == nil {
		return Actor{}, false
	}
	actor, ok := value.(Actor)
	return actor, ok
}

func requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing actor identity")
		return Actor{}, false
	}
	return actor, true
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return Actor{}, false
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, true
		}
	}
	writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "role not allowed for this action")
	return Actor{}, false
}

func isKnownRole(role string) bool {
	switch role {
	case RolePatient, RoleNurse, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/availability":
		return r.Method == http.MethodGet
	default:
		return r.Method == http.MethodOptions
	}
}
