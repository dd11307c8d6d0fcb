package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/service"
	"india-blood-connect/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DirectoryHandler donor search and blood bank directory.
type DirectoryHandler struct {
	donors   *service.DonorService
	banks    *service.BankService
	sessions *session.Manager
	logger   *zap.Logger
}

func NewDirectoryHandler(donors *service.DonorService, banks *service.BankService, sessions *session.Manager, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{donors: donors, banks: banks, sessions: sessions, logger: logger}
}

// groupParam reads a blood group query parameter. An unencoded "+" arrives
// as a space, so "A " is read back as "A+". Empty means any group.
func groupParam(r *http.Request, name string) (domain.BloodGroup, error) {
	raw := r.URL.Query().Get(name)
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	g, ok := domain.ParseBloodGroup(strings.ReplaceAll(raw, " ", "+"))
	if !ok {
		return "", fmt.Errorf("unknown blood group %q: %w", raw, domain.ErrInvalidInput)
	}
	return g, nil
}

func scopeParams(r *http.Request) domain.Scope {
	q := r.URL.Query()
	return domain.Scope{
		State:    q.Get("state"),
		District: q.Get("district"),
		City:     q.Get("city"),
	}
}

func (h *DirectoryHandler) SearchDonors(w http.ResponseWriter, r *http.Request) {
	group, err := groupParam(r, "group")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	donors, err := h.donors.Search(r.Context(), domain.DonorFilter{Group: group, Scope: scopeParams(r)})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(donors))
}

func (h *DirectoryHandler) SearchBanks(w http.ResponseWriter, r *http.Request) {
	group, err := groupParam(r, "group")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	banks, err := h.banks.Search(r.Context(), domain.BankFilter{Text: r.URL.Query().Get("q"), Group: group})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(banks))
}

type stockRequest struct {
	Group string `json:"group"`
	Level string `json:"level"`
}

// UpdateStock changes one level on the caller's bank and refreshes the session.
func (h *DirectoryHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	who, err := identify(r.Context(), h.sessions, token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req stockRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		badBody(w)
		return
	}
	bank, err := h.banks.UpdateStock(r.Context(), who, req.Group, req.Level)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.sessions.Refresh(r.Context(), token); err != nil {
		h.logger.Warn("failed to refresh session after stock update", zap.String("bank_id", bank.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, Ok(bank))
}

func (h *DirectoryHandler) ExportStock(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.banks.ExportStock(r.Context(), &buf); err != nil {
		writeError(w, h.logger, err)
		return
	}
	name := fmt.Sprintf("blood-stock-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
