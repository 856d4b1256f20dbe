// Package api provides the HTTP and WebSocket surface of the peerchat server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

// HistoryCounter is incremented for each history fetch served.
type HistoryCounter interface {
	Inc()
}

// Handler holds dependencies for API handlers.
type Handler struct {
	gateway *peerchat.Gateway
	history *peerchat.HistoryService
	pinger  peerchat.Pinger
	logger  peerchat.Logger
	counter HistoryCounter
}

// NewHandler creates a new API handler. pinger and counter may be nil.
func NewHandler(
	gateway *peerchat.Gateway,
	history *peerchat.HistoryService,
	pinger peerchat.Pinger,
	counter HistoryCounter,
	logger peerchat.Logger,
) *Handler {
	return &Handler{
		gateway: gateway,
		history: history,
		pinger:  pinger,
		counter: counter,
		logger:  logger,
	}
}

// SendRequest represents a send message request.
type SendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Validate checks the request shape. Text length is enforced by the store.
func (r SendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.To, validation.Required, validation.Length(1, model.MaxUserIDLength)),
		validation.Field(&r.Text, validation.Required),
	)
}

// HistoryResponse is the payload of a history fetch.
type HistoryResponse struct {
	Messages []model.Message `json:"messages"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleSend handles POST /api/v1/chat/send
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, peerchat.NewErrorWithCause(peerchat.ErrCodeValidation, "Invalid JSON", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, peerchat.NewErrorWithCause(peerchat.ErrCodeValidation, err.Error(), err))
		return
	}

	msg, err := h.gateway.Send(r.Context(), UserID(r.Context()), req.To, req.Text)
	if err != nil {
		if !peerchat.IsValidation(err) {
			h.logger.Errorf("send failed: %v", err)
		}
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, msg, "")
}

// HandleHistory handles GET /api/v1/chat/history/{peerId}
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, peerchat.NewErrorWithCause(peerchat.ErrCodeValidation, "since must be RFC3339", err))
			return
		}
		since = &ts
	}

	msgs, err := h.history.GetHistorySince(r.Context(), UserID(r.Context()), chi.URLParam(r, "peerId"), since)
	if err != nil {
		respondError(w, err)
		return
	}
	if h.counter != nil {
		h.counter.Inc()
	}

	respondSuccess(w, http.StatusOK, HistoryResponse{Messages: msgs}, "")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Warnf("health check: store unreachable: %v", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	respondSuccess(w, code, map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"connections": h.gateway.ConnectionCount(),
	}, "")
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	switch peerchat.CodeOf(err) {
	case peerchat.ErrCodeAuthenticationMissing:
		return http.StatusUnauthorized
	case peerchat.ErrCodeValidation:
		return http.StatusBadRequest
	case peerchat.ErrCodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, err error) {
	code, message := peerchat.ErrCodeInternal, "Internal error"
	var pe *peerchat.Error
	if errors.As(err, &pe) {
		code, message = pe.Code, pe.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
