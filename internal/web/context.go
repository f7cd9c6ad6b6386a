package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/psm/internal/core"
	"github.com/JonMunkholm/psm/internal/logging"
)

type ctxKey int

const orchestratorKey ctxKey = iota

// withSession resolves the session cookie to an Orchestrator, creating a
// session (and cookie) for new or expired visitors. The session ID is added
// to the request's log context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := s.cfg.Session.CookieName

		var current string
		if c, err := r.Cookie(name); err == nil {
			current = c.Value
		}

		id, o, err := s.service.SessionOrCreate(current)
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}

		if id != current {
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(s.cfg.Session.TTL.Seconds()),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := logging.WithSessionID(r.Context(), id)
		ctx = context.WithValue(ctx, orchestratorKey, o)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// orchestratorFrom returns the session attached by withSession.
func orchestratorFrom(ctx context.Context) (*core.Orchestrator, error) {
	o, ok := ctx.Value(orchestratorKey).(*core.Orchestrator)
	if !ok {
		return nil, errors.New("session not found in request context")
	}
	return o, nil
}
