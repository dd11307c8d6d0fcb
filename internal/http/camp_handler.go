package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"india-blood-connect/internal/service"
	"india-blood-connect/internal/session"
)

type CampHandler struct {
	camps    *service.CampService
	sessions *session.Manager
	logger   *zap.Logger
}

func NewCampHandler(camps *service.CampService, sessions *session.Manager, logger *zap.Logger) *CampHandler {
	return &CampHandler{camps: camps, sessions: sessions, logger: logger}
}

// List camps in scope; a logged-in donor also sees which ones they joined.
func (h *CampHandler) List(w http.ResponseWriter, r *http.Request) {
	camps, err := h.camps.List(r.Context(), scopeParams(r), optionalIdentity(r, h.sessions))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(camps))
}

func (h *CampHandler) Create(w http.ResponseWriter, r *http.Request) {
	who, err := identify(r.Context(), h.sessions, bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var in service.CreateCampInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		badBody(w)
		return
	}
	camp, err := h.camps.Create(r.Context(), who, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(camp))
}

func (h *CampHandler) Register(w http.ResponseWriter, r *http.Request) {
	who, err := identify(r.Context(), h.sessions, bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	campID := mux.Vars(r)["id"]
	if err := h.camps.Register(r.Context(), who, campID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"campId": campID, "registered": true}))
}
