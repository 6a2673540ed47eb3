package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/logging"
)

type ctxKey string

const principalKey ctxKey = "principal"

// principal is the caller as described by the session token.
type principal struct {
	AccountID string
	Verified  bool
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey).(principal)
	return p, ok && p.AccountID != ""
}

// accountIDFrom returns the session subject stored by authenticate.
func accountIDFrom(ctx context.Context) (string, bool) {
	p, ok := principalFrom(ctx)
	return p.AccountID, ok
}

// authenticate requires a valid "Authorization: Bearer <session token>".
func authenticate(sessions SessionParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeaderName)
			if len(header) <= len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
				writeError(w, common.ErrorUnauthorized)
				return
			}

			claims, err := sessions.ParseSession(header[len(common.BearerPrefix):])
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal{
				AccountID: claims.Subject,
				Verified:  claims.Verified,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireVerified rejects sessions issued before the email was verified.
// It must run after authenticate.
func requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			writeError(w, common.ErrorUnauthorized)
			return
		}
		if !p.Verified {
			writeError(w, common.ErrNotVerified)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one line per request.
func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
