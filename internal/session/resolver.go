package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/clinica-central/helpdesk/internal/shared"
)

// DefaultCookieName is the cookie holding the session token.
const DefaultCookieName = "helpdesk_session"

// Resolver bridges the session cookie to a Principal.
type Resolver struct {
	codec      *Codec
	cookieName string
	secure     bool
	logger     *slog.Logger
}

// NewResolver constructs a Resolver. secure marks cookies Secure (production).
func NewResolver(codec *Codec, cookieName string, secure bool, logger *slog.Logger) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{codec: codec, cookieName: cookieName, secure: secure, logger: logger}
}

// CookieName returns the cookie name.
func (r *Resolver) CookieName() string { return r.cookieName }

// Codec returns the underlying codec.
func (r *Resolver) Codec() *Codec { return r.codec }

// Resolve returns the principal of the request's session cookie. A missing,
// malformed or expired token yields false, never an error.
func (r *Resolver) Resolve(req *http.Request) (shared.Principal, bool) {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return shared.Principal{}, false
	}
	p, err := r.codec.Verify(cookie.Value)
	if err != nil {
		if r.logger != nil {
			r.logger.Debug("session rejected", slog.Any("error", err))
		}
		return shared.Principal{}, false
	}
	return p, true
}

// Middleware stores the resolved principal, when any, in the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if p, ok := r.Resolve(req); ok {
			req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
		}
		next.ServeHTTP(w, req)
	})
}

// SetCookie issues a token for p and writes it as the session cookie.
func (r *Resolver) SetCookie(w http.ResponseWriter, p shared.Principal) error {
	token, err := r.codec.Issue(p)
	if err != nil {
		return err
	}
	http.SetCookie(w, r.cookie(token, int(r.codec.TTL()/time.Second)))
	return nil
}

// ClearCookie expires the session cookie.
func (r *Resolver) ClearCookie(w http.ResponseWriter) {
	c := r.cookie("", 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (r *Resolver) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     r.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
