package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-tours/models"
	"go-tours/services"
	"go-tours/utils"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// CookieName is the cookie carrying the session token.
const CookieName = "jwt"

// AuthedHandler is a handler that only runs for an authenticated user.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, me *models.User) error

// Authed lets a plain handler sit behind Protect and RestrictTo.
func Authed(h Handler) AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *models.User) error {
		return h(w, r)
	}
}

// TokenAuthenticator resolves a session token to its user.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Authenticator guards handlers behind a valid session token.
type Authenticator struct {
	auth TokenAuthenticator
}

func NewAuthenticator(auth TokenAuthenticator) *Authenticator {
	return &Authenticator{auth: auth}
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}

// Protect authenticates the request and passes the user on to next. The user
// is also attached to the request context for Identity.
func (a *Authenticator) Protect(next AuthedHandler) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		me, err := a.auth.Authenticate(r.Context(), TokenFromRequest(r))
		if err != nil {
			return err
		}
		ctx := context.WithValue(r.Context(), UserContextKey, me)
		return next(w, r.WithContext(ctx), me)
	}
}

// Identify attaches the user to the context when the request carries a valid
// token and carries on anonymously otherwise.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token != "" {
			if me, err := a.auth.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), UserContextKey, me))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Identity returns the user attached by Protect or Identify, if any.
func Identity(r *http.Request) (*models.User, bool) {
	me, ok := r.Context().Value(UserContextKey).(*models.User)
	return me, ok && me != nil
}

// RestrictTo only lets users with one of roles through.
func RestrictTo(roles ...string) func(AuthedHandler) AuthedHandler {
	return func(next AuthedHandler) AuthedHandler {
		return func(w http.ResponseWriter, r *http.Request, me *models.User) error {
			if me == nil {
				return utils.Unauthorized(services.MsgNotLoggedIn)
			}
			if !me.HasRole(roles...) {
				return utils.Forbidden(services.MsgForbidden)
			}
			return next(w, r, me)
		}
	}
}
