package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the API error body for AppErrors and unknown errors
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ErrorHandler maps errors to HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
	}
}

// Handle writes the response for err
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := requestIDOf(r)
	traceID := r.Header.Get("X-Amzn-Trace-Id")

	if domainErr := GetDomainError(err); domainErr != nil {
		status := domainErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		h.log(r, status, domainErr.Message, string(domainErr.Type), domainErr.Code, domainErr.Cause)
		h.sendJSON(w, status, NewDomainErrorResponse(domainErr, requestID))
		return
	}

	response := ErrorResponse{
		Error:     true,
		RequestID: requestID,
		TraceID:   traceID,
		Timestamp: timeNow().UTC().Format(time.RFC3339),
	}

	status := http.StatusInternalServerError
	if appErr := GetAppError(err); appErr != nil {
		if appErr.HTTPStatus != 0 {
			status = appErr.HTTPStatus
		}
		response.Type = string(appErr.Type)
		response.Code = appErr.Code
		response.Message = appErr.Message
		response.Details = appErr.Details
		if status >= http.StatusInternalServerError && !h.debug {
			response.Message = "An internal error occurred"
			response.Details = nil
		}
		if h.debug && appErr.StackTrace != "" {
			if response.Details == nil {
				response.Details = make(map[string]interface{})
			}
			response.Details["stack_trace"] = appErr.StackTrace
		}
		h.log(r, status, appErr.Message, string(appErr.Type), appErr.Code, appErr.Cause)
	} else {
		response.Type = string(ErrorTypeInternal)
		response.Code = CodeInternal
		response.Message = "An internal error occurred"
		if h.debug {
			response.Message = err.Error()
		}
		h.log(r, status, "Unhandled error", string(ErrorTypeInternal), CodeInternal, err)
	}

	h.sendJSON(w, status, response)
}

// requestIDOf prefers the ID chi assigned over a client supplied header
func requestIDOf(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

func (h *ErrorHandler) log(r *http.Request, status int, message, errType, code string, cause error) {
	fields := []zap.Field{
		zap.String("errorType", errType),
		zap.String("errorCode", code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("requestID", requestIDOf(r)),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}

	switch {
	case status >= 500:
		h.logger.Error(message, fields...)
	case status >= 400:
		h.logger.Warn(message, fields...)
	default:
		h.logger.Info(message, fields...)
	}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Middleware recovers panics and renders them as internal errors
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
