package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/otp"
	"india-blood-connect/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// bearerToken session token from Authorization: Bearer or X-Session-Token.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Session-Token"))
}

// writeError maps err onto the envelope. Missing sessions get HTTP 401,
// everything else HTTP 200 with a failure result. Hosted service failures
// keep the service's own message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var backendErr *store.BackendError
	switch {
	case errors.Is(err, domain.ErrNoSession):
		writeJSON(w, http.StatusUnauthorized, expired(err.Error()))
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrOTPMismatch),
		errors.Is(err, otp.ErrResendTooSoon):
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	case errors.As(err, &backendErr):
		logger.Warn("hosted store failure", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("internal error, please try again"))
	}
}

func badBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, Fail("invalid request body"))
}
