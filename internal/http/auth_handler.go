package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/session"
)

type AuthHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewAuthHandler(sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: logger}
}

// identify resolves the caller; a missing token is domain.ErrNoSession.
func identify(ctx context.Context, sessions *session.Manager, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}
	return sessions.Current(ctx, token)
}

// optionalIdentity is identify for endpoints that also serve anonymous callers.
func optionalIdentity(r *http.Request, sessions *session.Manager) *domain.Identity {
	who, err := identify(r.Context(), sessions, bearerToken(r))
	if err != nil {
		return nil
	}
	return who
}

type sendOTPRequest struct {
	Mobile string `json:"mobile"`
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		badBody(w)
		return
	}
	if err := h.sessions.SendOTP(r.Context(), req.Mobile); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"sent": true}))
}

func (h *AuthHandler) RegisterDonor(w http.ResponseWriter, r *http.Request) {
	var in session.RegisterDonorInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		badBody(w)
		return
	}
	s, err := h.sessions.RegisterDonor(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

func (h *AuthHandler) RegisterBank(w http.ResponseWriter, r *http.Request) {
	var in session.RegisterBankInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		badBody(w)
		return
	}
	s, err := h.sessions.RegisterBank(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

type loginRequest struct {
	Role   domain.Role `json:"role"`
	Mobile string      `json:"mobile"`
	OTP    string      `json:"otp"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		badBody(w)
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleDonor
	}
	s, err := h.sessions.Login(r.Context(), req.Role, req.Mobile, req.OTP)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"loggedOut": true}))
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	who, err := identify(r.Context(), h.sessions, bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(who))
}
