package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

// CookieName carries the session token issued by the login handler.
const CookieName = "authenticated"

// Auth guards the viewer API with a single shared password. Browsers log in
// once and get a session cookie; scripts may use HTTP basic auth instead.
type Auth struct {
	password string
	token    string
}

// NewAuth creates a guard. An empty password disables authentication.
func NewAuth(password string) *Auth {
	return &Auth{password: password, token: uuid.NewString()}
}

func (a *Auth) Enabled() bool {
	return a.password != ""
}

// Check reports whether password is the configured one.
func (a *Auth) Check(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

// Token is the session value stored in the login cookie. It changes on every
// process start, which logs every viewer out.
func (a *Auth) Token() string {
	return a.token
}

// Middleware rejects requests that carry neither a valid session cookie nor
// valid basic-auth credentials.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || a.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="facewatch"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (a *Auth) authorized(r *http.Request) bool {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(a.token)) == 1 {
			return true
		}
	}
	if _, password, ok := r.BasicAuth(); ok && a.Check(password) {
		return true
	}
	return false
}
