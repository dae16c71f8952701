package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/bookinghub/internal/booking"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondServiceError maps booking errors onto the envelope. Anything it
// does not recognise is logged and reported as a 500 with fallback.
func RespondServiceError(ctx *gin.Context, err error, fallback string) {
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		RespondError(ctx, http.StatusBadRequest, ve.Reason, ve.Message, nil)
		return
	}

	var ae *booking.AuthorizationError
	if errors.As(err, &ae) {
		RespondUnauthorized(ctx, ae.Reason, ae.Message)
		return
	}

	if errors.Is(err, booking.ErrNotFound) {
		RespondNotFound(ctx, "Appointment not found")
		return
	}

	slog.Default().ErrorContext(ctx.Request.Context(), fallback,
		"err", err,
		"route", ctx.FullPath(),
		"request_id", requestIDFrom(ctx),
	)
	RespondInternal(ctx, fallback)
}
