package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"audioserve/internal/collection"
	"audioserve/internal/logging"
	"audioserve/internal/metrics"
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = 30 * 24 * time.Hour

// Authenticator guards the request-handling surface. Check reports whether
// the request carries valid credentials; handlers behind the gate are only
// reached when it does.
type Authenticator interface {
	// Check validates the request's credentials without writing a response.
	Check(r *http.Request) bool
	// Mode names the scheme for logging and the /version endpoint.
	Mode() string
}

// NoAuth accepts every request. Used when the server is deployed behind
// a trusted reverse proxy that handles authentication itself.
type NoAuth struct{}

func (NoAuth) Check(*http.Request) bool { return true }
func (NoAuth) Mode() string             { return "none" }

// TokenAuth accepts a single static bearer token, passed either in the
// Authorization header or as a "token" query parameter (needed by audio
// elements and other clients that cannot set headers).
type TokenAuth struct {
	token string
}

// NewTokenAuth builds a static-token authenticator.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

func (a *TokenAuth) Mode() string { return "token" }

func (a *TokenAuth) Check(r *http.Request) bool {
	ok := requestToken(r) == a.token
	if ok {
		metrics.AuthAttemptsTotal.WithLabelValues("token", "success").Inc()
	} else {
		metrics.AuthAttemptsTotal.WithLabelValues("token", "failure").Inc()
	}
	return ok
}

// SharedSecret exchanges a shared secret for an opaque session token over
// POST /authenticate; subsequent requests present the session token. Failed
// secret checks are rate limited to slow down guessing.
type SharedSecret struct {
	hash     []byte
	store    *collection.Store
	failures *rate.Limiter
}

// NewSharedSecret builds a shared-secret authenticator. hash is the bcrypt
// hash of the secret, store keeps the issued sessions.
func NewSharedSecret(hash []byte, store *collection.Store) *SharedSecret {
	return &SharedSecret{
		hash:  hash,
		store: store,
		// One failed attempt per second with a small burst keeps
		// online guessing impractical without locking out typos.
		failures: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (a *SharedSecret) Mode() string { return "shared-secret" }

func (a *SharedSecret) Check(r *http.Request) bool {
	token := requestToken(r)
	if token == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("session", "failure").Inc()
		return false
	}
	ok, err := a.store.ValidateSession(r.Context(), token)
	if err != nil {
		logging.Error("session validation failed: %v", err)
		return false
	}
	if ok {
		metrics.AuthAttemptsTotal.WithLabelValues("session", "success").Inc()
	} else {
		metrics.AuthAttemptsTotal.WithLabelValues("session", "failure").Inc()
	}
	return ok
}

// Login verifies the shared secret and, on success, issues a session token.
// A wrong secret consumes a rate-limiter slot; once exhausted, further
// attempts fail immediately until the limiter refills.
func (a *SharedSecret) Login(ctx context.Context, secret string) (string, time.Time, bool) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(secret)); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("secret", "failure").Inc()
		if !a.failures.Allow() {
			logging.Warn("authentication rate limit hit")
		}
		return "", time.Time{}, false
	}
	token, expires, err := a.store.CreateSession(ctx, SessionTTL)
	if err != nil {
		logging.Error("failed to create session: %v", err)
		return "", time.Time{}, false
	}
	metrics.AuthAttemptsTotal.WithLabelValues("secret", "success").Inc()
	return token, expires, true
}

// Throttled reports whether failed logins have exhausted the rate budget.
// Callers should reject login attempts without checking the secret while
// this is true.
func (a *SharedSecret) Throttled() bool {
	return a.failures.Tokens() < 1
}

// requestToken extracts the presented credential: Authorization bearer
// header first, "token" query parameter as fallback.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	return r.URL.Query().Get("token")
}

// HashSecret produces a bcrypt hash of the shared secret, suitable for
// storing in the secret file.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
