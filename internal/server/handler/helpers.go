package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/middleware"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}

// writeJSON marshals v and writes it with status. Marshal failures fall back
// to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error","kind":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeBadRequest reports malformed input.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: domain.KindInvalidInput})
}

// statusFor maps an error kind to the HTTP status returned for it.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindContentIntegrity, domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateIncompatibility, domain.KindDoubleAction, domain.KindOutcomeMismatch, domain.KindConflict:
		return http.StatusConflict
	case domain.KindArithmetic, domain.KindCustody:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError classifies err and writes it. Internal errors are logged
// and their text is not returned to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	kind := domain.KindOf(err)
	if errors.Is(err, domain.ErrRateLimited) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error(), Kind: kind})
		return
	}
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, errorResponse{Error: op + " failed", Kind: kind})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// decodeJSON reads a JSON body into v and rejects unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// signer returns the authenticated caller. The signature middleware runs on
// every mutating route, so a missing signer is a wiring fault.
func signer(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	a, ok := middleware.SignerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "request is not signed", Kind: domain.KindAuthorization})
	}
	return a, ok
}

// pathAddress parses the named path parameter as an address.
func pathAddress(w http.ResponseWriter, r *http.Request, name string) (domain.Address, bool) {
	a, err := domain.ParseAddress(r.PathValue(name))
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid %s address", name))
		return domain.Address{}, false
	}
	return a, true
}

// queryAddress parses the named query parameter as an address.
func queryAddress(w http.ResponseWriter, r *http.Request, name string) (domain.Address, bool) {
	a, err := domain.ParseAddress(r.URL.Query().Get(name))
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid or missing %s", name))
		return domain.Address{}, false
	}
	return a, true
}

// parseListOpts reads limit, offset, since and until (RFC 3339). Defaults:
// limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}
	return opts
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
