package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"india-blood-connect/internal/service"
	"india-blood-connect/internal/session"
)

type RequestHandler struct {
	requests *service.RequestService
	sessions *session.Manager
	logger   *zap.Logger
}

func NewRequestHandler(requests *service.RequestService, sessions *session.Manager, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, sessions: sessions, logger: logger}
}

func (h *RequestHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	who, err := identify(r.Context(), h.sessions, bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var in service.BroadcastInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		badBody(w)
		return
	}
	req, err := h.requests.Broadcast(r.Context(), who, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(req))
}

func (h *RequestHandler) Mine(w http.ResponseWriter, r *http.Request) {
	who, err := identify(r.Context(), h.sessions, bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.requests.Mine(r.Context(), who)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	who, err := identify(r.Context(), h.sessions, bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.requests.Cancel(r.Context(), who, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id, "cancelled": true}))
}
