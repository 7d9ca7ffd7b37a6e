package sessions

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/handlers/response"
)

type PresenceResponse struct {
	UserID            int64 `json:"user_id"`
	OnlineConnections int64 `json:"online_connections"`
	LocalConnections  int   `json:"local_connections"`
}

// SessionHandler exposes push session presence
type SessionHandler struct {
	sessionService session.ISessionService
	logger         primary.Logger
}

func NewSessionHandler(sessionService session.ISessionService, logger primary.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger,
	}
}

func (h *SessionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/users/{userId}/presence", h.GetPresence).Methods("GET")
}

// GetPresence reports how many live push sessions a user has
func (h *SessionHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userIDStr := mux.Vars(r)["userId"]
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		response.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	online, err := h.sessionService.OnlineCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count sessions", "userId", userID, "error", err)
		response.Error(w, "Failed to get presence", http.StatusInternalServerError)
		return
	}

	response.WriteSuccess(w, PresenceResponse{
		UserID:            userID,
		OnlineConnections: online,
		LocalConnections:  h.sessionService.LocalCount(userID),
	})
}
