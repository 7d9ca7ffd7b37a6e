package health

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/codepractice.net/internal/handlers/response"
)

// RegistryStats is satisfied by the session registry
type RegistryStats interface {
	Len() int
	Users() int
}

type StatusResponse struct {
	Service     string `json:"service"`
	Listener    string `json:"listener"`
	Connections int    `json:"connections"`
	Users       int    `json:"users"`
}

// Handler serves the liveness endpoint
type Handler struct {
	serviceName string
	listener    func() string
	stats       RegistryStats
}

func NewHandler(serviceName string, listenerState func() string, stats RegistryStats) *Handler {
	return &Handler{
		serviceName: serviceName,
		listener:    listenerState,
		stats:       stats,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Health).Methods("GET")
}

// Health always answers 200; a listener that is not consuming is reported,
// not treated as fatal
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.WriteSuccess(w, StatusResponse{
		Service:     h.serviceName,
		Listener:    h.listener(),
		Connections: h.stats.Len(),
		Users:       h.stats.Users(),
	})
}
