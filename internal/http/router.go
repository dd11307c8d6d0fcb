package httpapi

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router gorilla/mux routes grouped per area, one Register*Routes per handler.
type Router struct {
	mux    *mux.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{mux: mux.NewRouter(), logger: logger}
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	}).Methods(http.MethodGet)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	s := r.mux.PathPrefix("/auth/api/v1").Subrouter()
	s.HandleFunc("/otp/send", h.SendOTP).Methods(http.MethodPost)
	s.HandleFunc("/register/donor", h.RegisterDonor).Methods(http.MethodPost)
	s.HandleFunc("/register/bank", h.RegisterBank).Methods(http.MethodPost)
	s.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	s.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	s.HandleFunc("/session", h.Session).Methods(http.MethodGet)
}

func (r *Router) RegisterDirectoryRoutes(h *DirectoryHandler) {
	s := r.mux.PathPrefix("/directory/api/v1").Subrouter()
	s.HandleFunc("/donors", h.SearchDonors).Methods(http.MethodGet)
	s.HandleFunc("/banks", h.SearchBanks).Methods(http.MethodGet)
	s.HandleFunc("/banks/stock", h.UpdateStock).Methods(http.MethodPut)
	s.HandleFunc("/banks/export", h.ExportStock).Methods(http.MethodGet)
}

func (r *Router) RegisterCampRoutes(h *CampHandler) {
	s := r.mux.PathPrefix("/camps/api/v1").Subrouter()
	s.HandleFunc("/camps", h.List).Methods(http.MethodGet)
	s.HandleFunc("/camps", h.Create).Methods(http.MethodPost)
	s.HandleFunc("/camps/{id}/register", h.Register).Methods(http.MethodPost)
}

func (r *Router) RegisterRequestRoutes(h *RequestHandler) {
	s := r.mux.PathPrefix("/requests/api/v1").Subrouter()
	s.HandleFunc("/requests", h.Broadcast).Methods(http.MethodPost)
	s.HandleFunc("/requests/mine", h.Mine).Methods(http.MethodGet)
	s.HandleFunc("/requests/{id}", h.Cancel).Methods(http.MethodDelete)
}

func (r *Router) RegisterAlertRoutes(h *AlertsHandler) {
	s := r.mux.PathPrefix("/alerts/api/v1").Subrouter()
	s.HandleFunc("/alerts", h.Current).Methods(http.MethodGet)
	s.HandleFunc("/alerts/ws", h.Stream).Methods(http.MethodGet)
}

// Handler wraps the routes with CORS and a combined-format access log
// written through zap.
func (r *Router) Handler(origins []string) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Session-Token"}),
	)
	access := zap.NewStdLog(r.logger.Named("access")).Writer()
	return handlers.CombinedLoggingHandler(access, cors(r))
}
