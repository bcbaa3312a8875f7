package loadbalancer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Affinity pins a signaling client to one instance behind a cookie-aware
// load balancer. Reconnects must land on the instance that still holds
// the client's transports, so the affinity token is derived once per
// client and signed against tampering.
type Affinity struct {
	secret     []byte
	cookieName string
	maxAge     int
}

func NewAffinity(secret, cookieName string, maxAge int) *Affinity {
	return &Affinity{
		secret:     []byte(secret),
		cookieName: cookieName,
		maxAge:     maxAge,
	}
}

// Token returns the affinity token for the request, minting a new one
// when the cookie is absent or its signature does not verify.
func (a *Affinity) Token(r *http.Request) string {
	cookie, err := r.Cookie(a.cookieName)
	if err == nil && cookie.Value != "" {
		if token, ok := a.verify(cookie.Value); ok {
			return token
		}
	}
	return a.mint(r)
}

// StampHandler wraps an HTTP handler so every response carries a signed
// affinity cookie. The cookie must be written before the websocket
// upgrade hijacks the connection.
func (a *Affinity) StampHandler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := a.Token(r)
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName,
			Value:    a.sign(token),
			Path:     "/",
			MaxAge:   a.maxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		next(w, r)
	}
}

func (a *Affinity) mint(r *http.Request) string {
	data := clientIP(r) + ":" + r.Header.Get("User-Agent")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:16])
}

func (a *Affinity) sign(token string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(token))
	return token + "." + hex.EncodeToString(mac.Sum(nil))
}

func (a *Affinity) verify(signed string) (string, bool) {
	idx := strings.IndexByte(signed, '.')
	if idx <= 0 {
		return "", false
	}
	token := signed[:idx]
	if !hmac.Equal([]byte(signed), []byte(a.sign(token))) {
		return "", false
	}
	return token, true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// InstanceRing maps affinity tokens onto signal instances. An external
// balancer consults the same mapping so websocket reconnects route to
// the instance holding the client's media state.
type InstanceRing struct {
	instances []string
}

func NewInstanceRing(instances []string) *InstanceRing {
	return &InstanceRing{instances: instances}
}

func (ring *InstanceRing) InstanceFor(token string) string {
	if len(ring.instances) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return ring.instances[v%uint64(len(ring.instances))]
}
