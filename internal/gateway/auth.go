package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/funnelbot/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the admin token guarding the mutating routes.
type ResolvedAuth struct {
	Token string
}

// Enabled reports whether a token is required.
func (a ResolvedAuth) Enabled() bool {
	return a.Token != ""
}

// ResolveAuth resolves the admin token from config. Environment overrides
// are applied by the config loader.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	return ResolvedAuth{Token: strings.TrimSpace(cfg.Token)}
}

// Authorize checks a presented token against the server's.
func Authorize(serverAuth ResolvedAuth, presented string) AuthResult {
	if !serverAuth.Enabled() {
		return AuthResult{OK: true}
	}
	if presented == "" {
		return AuthResult{Reason: "token required"}
	}
	if !safeEqual(presented, serverAuth.Token) {
		return AuthResult{Reason: "token_mismatch"}
	}
	return AuthResult{OK: true}
}

// presentedToken extracts a bearer token from the Authorization header, or
// from the token query parameter when allowQuery is set. Browsers cannot
// set headers on WebSocket upgrades, hence the query form.
func presentedToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// safeEqual performs a constant-time string comparison. It avoids an early
// return on length mismatch so the secret's length does not leak.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// authRateLimiter tracks failed auth attempts per IP.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}

// recent drops failures older than the window and returns what is left.
// Must be called with mu held.
func (l *authRateLimiter) recent(host string) []time.Time {
	cutoff := l.now().Add(-authRateWindow)
	kept := l.failures[host][:0]
	for _, t := range l.failures[host] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = kept
	return kept
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent(clientHost(remoteAddr))) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := clientHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, tracked := l.failures[host]; !tracked && len(l.failures) >= authRateMaxIPs {
		l.evictOldest()
	}
	l.failures[host] = append(l.failures[host], l.now())
}

// evictOldest forgets the host with the oldest first failure. Must be
// called with mu held.
func (l *authRateLimiter) evictOldest() {
	var (
		oldestHost string
		oldestTime time.Time
	)
	for host, times := range l.failures {
		if len(times) > 0 && (oldestHost == "" || times[0].Before(oldestTime)) {
			oldestHost, oldestTime = host, times[0]
		}
	}
	delete(l.failures, oldestHost)
}
