package submissions

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/submission"
	"gitlab.com/codepractice.net/internal/handlers"
	"gitlab.com/codepractice.net/internal/handlers/response"
	"gitlab.com/codepractice.net/internal/static/errs"
)

// SubmissionHandler handles submission API requests
type SubmissionHandler struct {
	submissionService submission.ISubmissionService
	logger            primary.Logger
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(submissionService submission.ISubmissionService, logger primary.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the API routes behind the auth middleware
func (h *SubmissionHandler) RegisterRoutes(router *mux.Router, auth *handlers.MiddlewareProvider) {
	router.Handle("/api/submissions", auth.JWTMiddleware(http.HandlerFunc(h.CreateSubmission))).Methods("POST")
}

// CreateSubmission accepts code for asynchronous execution
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, errs.ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}

	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		response.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	sub, err := h.submissionService.Submit(r.Context(), userID, submission.SubmitRequest{
		TaskID:   req.TaskID.Int64(),
		Code:     req.Code,
		Language: req.Language,
	})
	if err != nil {
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.logger.Error("Failed to accept submission", "userId", userID, "taskId", req.TaskID.Int64(), "error", err)
		}
		response.Error(w, msg, code)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, CreateSubmissionResponse{
		Msg:          "Submission accepted",
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrTaskRequired),
		errors.Is(err, errs.ErrCodeRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrUnsupportedLanguage):
		return http.StatusBadRequest, errs.ErrUnsupportedLanguage.Error()
	case errors.Is(err, errs.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, errs.ErrTaskNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrDispatchUnavailable):
		return http.StatusServiceUnavailable, errs.ErrDispatchUnavailable.Error()
	default:
		return http.StatusInternalServerError, errs.InternalError.Error()
	}
}
