package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func extractIP(t *testing.T, remoteAddr, xff string, hops int) string {
	t.Helper()
	var got string
	h := ClientIPWithOptions(ClientIPOptions{TrustedHops: hops})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = ClientIPFromContext(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIPDirectConnection(t *testing.T) {
	if got := extractIP(t, "203.0.113.7:1234", "", 0); got != "203.0.113.7" {
		t.Errorf("got %q", got)
	}
}

func TestClientIPIgnoresXFFFromPublicPeer(t *testing.T) {
	if got := extractIP(t, "203.0.113.7:1234", "10.0.0.9", 1); got != "203.0.113.7" {
		t.Errorf("public peer must not spoof via XFF, got %q", got)
	}
}

func TestClientIPIgnoresXFFWithZeroHops(t *testing.T) {
	if got := extractIP(t, "10.0.0.5:1234", "203.0.113.99", 0); got != "10.0.0.5" {
		t.Errorf("got %q", got)
	}
}

func TestClientIPTrustsSingleHop(t *testing.T) {
	if got := extractIP(t, "10.0.0.5:1234", "203.0.113.99", 1); got != "203.0.113.99" {
		t.Errorf("got %q", got)
	}
}

func TestClientIPMultiHopPicksNthFromEnd(t *testing.T) {
	if got := extractIP(t, "10.0.0.5:1234", "198.51.100.1, 203.0.113.99, 10.0.0.2", 2); got != "203.0.113.99" {
		t.Errorf("got %q", got)
	}
}

func TestClientIPFailsClosedOnShortChain(t *testing.T) {
	if got := extractIP(t, "10.0.0.5:1234", "203.0.113.99", 3); got != "10.0.0.5" {
		t.Errorf("short XFF chain must fail closed, got %q", got)
	}
}

func TestClientIPStripsHeadersWhenUntrusted(t *testing.T) {
	var sawXFF string
	h := ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawXFF = r.Header.Get("X-Forwarded-For")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if sawXFF != "" {
		t.Errorf("XFF should be stripped for untrusted peers, got %q", sawXFF)
	}
}
