package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/geocoder89/bookinghub/internal/domain/notification"
	"github.com/geocoder89/bookinghub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// NotificationsPageSize caps how many notifications a provider sees at once.
const NotificationsPageSize = 20

type NotificationStore interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (notification.Notification, error)
}

type NotificationsHandler struct {
	repo NotificationStore
}

func NewNotificationsHandler(repo NotificationStore) *NotificationsHandler {
	return &NotificationsHandler{repo: repo}
}

func (h *NotificationsHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	items, err := h.repo.ListByUser(ctx.Request.Context(), userID, NotificationsPageSize)
	if err != nil {
		RespondServiceError(ctx, err, "Could not list notifications")
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}

	ctx.JSON(http.StatusOK, items)
}

func (h *NotificationsHandler) MarkRead(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid notification id", nil)
		return
	}

	n, err := h.repo.MarkRead(ctx.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			RespondNotFound(ctx, "Notification not found")
			return
		}
		RespondServiceError(ctx, err, "Could not update notification")
		return
	}

	ctx.JSON(http.StatusOK, n)
}
