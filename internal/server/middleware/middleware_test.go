package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/cache/local"
	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitKeysBySigner(t *testing.T) {
	h := RateLimit(local.NewRateLimiter(), 2, time.Minute, discard)(ok())

	send := func(signer, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = ip + ":1234"
		if signer != "" {
			req.Header.Set(HeaderSigner, signer)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("", "10.0.0.2"))
	assert.Equal(t, http.StatusOK, send("signer-a", "10.0.0.1"), "signed traffic has its own bucket")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok())

	req := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), HeaderSignature)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSignatureSetsSigner(t *testing.T) {
	kp, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := SignerFrom(r.Context())
		require.True(t, ok)
		seen = a.String()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"x":1}`, string(body), "body is restored for the handler")
	})
	h := Signature(SignatureConfig{Now: func() time.Time { return now }}, discard)(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(`{"x":1}`))
	req.Header.Set(HeaderSigner, kp.Address().String())
	req.Header.Set(HeaderTimestamp, "1700000100")
	req.Header.Set(HeaderSignature, kp.SignRequest(http.MethodPost, "/api/x", 1700000100, []byte(`{"x":1}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, kp.Address().String(), seen)
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var id string
	h := Logging(discard, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "client-id", id)
}
