package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/service"
	"india-blood-connect/internal/session"
)

const (
	wsWriteWait = 10 * time.Second
	// closeSessionEnded private-range close code sent once the session is gone.
	closeSessionEnded = 4001
)

// AlertsHandler live alerts for the logged-in identity.
type AlertsHandler struct {
	requests *service.RequestService
	sessions *session.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewAlertsHandler(requests *service.RequestService, sessions *session.Manager, origins []string, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{
		requests: requests,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		logger: logger,
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(origins, "*") {
			return true
		}
		return slices.ContainsFunc(origins, func(o string) bool { return strings.EqualFold(o, origin) })
	}
}

// Current one-shot snapshot; anonymous callers get an empty one.
func (h *AlertsHandler) Current(w http.ResponseWriter, r *http.Request) {
	snap, err := h.requests.Alerts(r.Context(), optionalIdentity(r, h.sessions))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// Stream upgrades to a websocket and pushes a snapshot whenever the matched
// request set changes. The session is checked again before each snapshot and
// the socket is closed with closeSessionEnded once it is gone. Browsers
// cannot set headers on the handshake, so the token may also come as ?token=.
func (h *AlertsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	who, err := identify(r.Context(), h.sessions, token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// reader: only there to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last string
	sent := false
	closeCode, closeText := websocket.CloseNormalClosure, ""
	for snap := range h.requests.Watch(ctx, who) {
		if _, err := h.sessions.Current(ctx, token); errors.Is(err, domain.ErrNoSession) {
			closeCode, closeText = closeSessionEnded, "session ended"
			h.logger.Debug("alerts stream session ended", zap.String("viewer_id", who.ID))
			break
		} else if err != nil && ctx.Err() == nil {
			h.logger.Warn("failed to recheck session", zap.String("viewer_id", who.ID), zap.Error(err))
		}
		key := strings.Join(snap.IDs(), ",")
		if sent && key == last {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(Ok(snap)); err != nil {
			h.logger.Debug("alerts stream closed", zap.String("viewer_id", who.ID), zap.Error(err))
			return
		}
		last, sent = key, true
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, closeText),
		time.Now().Add(time.Second))
}
