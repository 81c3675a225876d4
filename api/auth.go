package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/govtrack/backend/internal/identity"
	"github.com/govtrack/backend/internal/models"
)

type identityKey struct{}

func withIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// callerFrom returns the authenticated caller, or nil for anonymous requests.
func callerFrom(ctx context.Context) *models.Identity {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	if !ok {
		return nil
	}
	return &id
}

// requireAuth verifies the bearer token. A missing token is 401, a token that
// fails verification is 403.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token, hasBearer := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)

		if id, ok := identity.DevBypass(s.emulator, token); ok {
			s.log.InfoContext(ctx, "dev identity bypass in emulator", slog.String("uid", id.UID))
			next.ServeHTTP(w, r.WithContext(withIdentity(ctx, id)))
			return
		}

		if !hasBearer || token == "" {
			s.log.WarnContext(ctx, "no bearer token in request",
				slog.String("request_id", middleware.GetReqID(ctx)),
			)
			sendError(w, "Unauthorized: No token provided", http.StatusUnauthorized)
			return
		}

		id, err := s.verifier.Verify(ctx, token)
		if err != nil {
			if errors.Is(err, identity.ErrMissingToken) {
				sendError(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}
			s.log.WarnContext(ctx, "token verification failed",
				slog.Any("err", err),
				slog.String("request_id", middleware.GetReqID(ctx)),
			)
			sendError(w, "Unauthorized: Invalid token", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(ctx, id)))
	})
}

// requireAdmin lets through only the configured admin identity.
func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerFrom(r.Context())
		if !s.policy.IsAdmin(caller) {
			uid := ""
			if caller != nil {
				uid = caller.UID
			}
			s.log.WarnContext(r.Context(), "admin route denied", slog.String("uid", uid))
			sendError(w, "Forbidden: admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
