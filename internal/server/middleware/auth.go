package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Request signing headers.
const (
	HeaderSigner    = "X-Signer"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

const maxSignedBody = 1 << 20

type signerKey struct{}

// WithSigner returns ctx carrying the authenticated signer.
func WithSigner(ctx context.Context, signer domain.Address) context.Context {
	return context.WithValue(ctx, signerKey{}, signer)
}

// SignerFrom returns the signer authenticated by Signature.
func SignerFrom(ctx context.Context) (domain.Address, bool) {
	a, ok := ctx.Value(signerKey{}).(domain.Address)
	return a, ok
}

// SignatureConfig configures request signature checks.
type SignatureConfig struct {
	// MaxSkew bounds the distance between X-Timestamp and the server clock.
	MaxSkew time.Duration
	// Guard rejects a signature it has already seen. Nil disables replay
	// protection.
	Guard domain.ReplayGuard
	// Now defaults to time.Now.
	Now func() time.Time
}

// Signature authenticates every request that may mutate state. The client
// signs METHOD, path, X-Timestamp and the body hash with its ed25519 key and
// sends the public key as X-Signer. Safe methods pass through untouched.
func Signature(cfg SignatureConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			signer, err := domain.ParseAddress(r.Header.Get(HeaderSigner))
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, "missing or malformed "+HeaderSigner, domain.KindAuthorization)
				return
			}
			ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, "missing or malformed "+HeaderTimestamp, domain.KindAuthorization)
				return
			}
			if skew := cfg.Now().Sub(time.Unix(ts, 0)); skew > cfg.MaxSkew || skew < -cfg.MaxSkew {
				writeFailure(w, http.StatusUnauthorized, "request timestamp outside allowed window", domain.KindAuthorization)
				return
			}
			sig := r.Header.Get(HeaderSignature)
			if sig == "" {
				writeFailure(w, http.StatusUnauthorized, "missing "+HeaderSignature, domain.KindAuthorization)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBody))
			if errBodyTooLarge(err) {
				writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large", domain.KindInvalidInput)
				return
			}
			if err != nil {
				writeFailure(w, http.StatusBadRequest, "unreadable request body", domain.KindInvalidInput)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if err := crypto.VerifyRequest(signer, sig, r.Method, r.URL.Path, ts, body); err != nil {
				logger.WarnContext(r.Context(), "middleware: signature rejected",
					slog.String("signer", signer.String()),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeFailure(w, http.StatusUnauthorized, "invalid request signature", domain.KindAuthorization)
				return
			}

			if cfg.Guard != nil {
				fresh, err := cfg.Guard.FirstSeen(r.Context(), sig)
				if err != nil {
					logger.ErrorContext(r.Context(), "middleware: replay guard failed", slog.String("error", err.Error()))
					writeFailure(w, http.StatusServiceUnavailable, "replay guard unavailable", domain.KindInternal)
					return
				}
				if !fresh {
					writeFailure(w, http.StatusConflict, "request already processed", domain.KindDoubleAction)
					return
				}
			}

			if info := infoFrom(r.Context()); info != nil {
				info.signer = signer.String()
			}
			next.ServeHTTP(w, r.WithContext(WithSigner(r.Context(), signer)))
		})
	}
}

// writeFailure sends the API error envelope.
func writeFailure(w http.ResponseWriter, status int, msg string, kind domain.ErrorKind) {
	data, err := json.Marshal(map[string]string{"error": msg, "kind": string(kind)})
	if err != nil {
		data = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// errBodyTooLarge reports whether err came from http.MaxBytesReader.
func errBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
