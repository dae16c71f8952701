package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/geocoder89/bookinghub/internal/booking"
	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AppointmentBooker interface {
	CreateAppointment(ctx context.Context, in booking.CreateInput) (appointment.Appointment, error)
	CancelAppointment(ctx context.Context, requesterID, appointmentID int64) (appointment.Detail, error)
	ListAppointments(ctx context.Context, requesterID int64, page int) ([]appointment.ListItem, error)
}

type AppointmentsHandler struct {
	booker AppointmentBooker
}

func NewAppointmentsHandler(booker AppointmentBooker) *AppointmentsHandler {
	return &AppointmentsHandler{booker: booker}
}

func (h *AppointmentsHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	page := 1
	if raw := ctx.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			n = 0
		}
		page = n
	}

	items, err := h.booker.ListAppointments(ctx.Request.Context(), userID, page)
	if err != nil {
		RespondServiceError(ctx, err, "Could not list appointments")
		return
	}

	ctx.JSON(http.StatusOK, items)
}

func (h *AppointmentsHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req appointment.CreateAppointmentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	created, err := h.booker.CreateAppointment(ctx.Request.Context(), booking.CreateInput{
		RequesterID: userID,
		ProviderID:  req.ProviderID,
		Date:        req.Date,
	})
	if err != nil {
		RespondServiceError(ctx, err, "Could not create appointment")
		return
	}

	ctx.JSON(http.StatusOK, created)
}

func (h *AppointmentsHandler) Cancel(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid appointment id", nil)
		return
	}

	detail, err := h.booker.CancelAppointment(ctx.Request.Context(), userID, id)
	if err != nil {
		RespondServiceError(ctx, err, "Could not cancel appointment")
		return
	}

	ctx.JSON(http.StatusOK, detail)
}
