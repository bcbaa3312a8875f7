package loadbalancer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStableAcrossRequests(t *testing.T) {
	aff := NewAffinity("secret", "sc_affinity", 3600)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("User-Agent", "client/1.0")

	first := aff.Token(req)
	second := aff.Token(req)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestStampHandlerSetsVerifiableCookie(t *testing.T) {
	aff := NewAffinity("secret", "sc_affinity", 3600)

	handler := aff.StampHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sc_affinity", cookies[0].Name)

	// A follow-up request carrying the cookie keeps the same token.
	token := aff.Token(req)
	followup := httptest.NewRequest(http.MethodGet, "/ws", nil)
	followup.RemoteAddr = "10.0.0.2:6000"
	followup.AddCookie(cookies[0])
	assert.Equal(t, token, aff.Token(followup))
}

func TestTamperedCookieIsRejected(t *testing.T) {
	aff := NewAffinity("secret", "sc_affinity", 3600)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.AddCookie(&http.Cookie{Name: "sc_affinity", Value: "forged.deadbeef"})

	// Falls back to a freshly minted token instead of trusting the value.
	assert.NotEqual(t, "forged", aff.Token(req))
}

func TestInstanceRingIsDeterministic(t *testing.T) {
	ring := NewInstanceRing([]string{"signal-0", "signal-1", "signal-2"})

	a := ring.InstanceFor("token-a")
	assert.Equal(t, a, ring.InstanceFor("token-a"))
	assert.Contains(t, []string{"signal-0", "signal-1", "signal-2"}, a)

	assert.Empty(t, NewInstanceRing(nil).InstanceFor("token-a"))
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
