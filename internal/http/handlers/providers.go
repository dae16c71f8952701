package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/geocoder89/bookinghub/internal/booking"
	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type ProviderLister interface {
	ListProviders(ctx context.Context) ([]user.User, error)
}

type AvailabilityReader interface {
	DayAvailability(ctx context.Context, providerID int64, day string) ([]booking.Slot, error)
}

type ProvidersHandler struct {
	users        ProviderLister
	availability AvailabilityReader
}

func NewProvidersHandler(users ProviderLister, availability AvailabilityReader) *ProvidersHandler {
	return &ProvidersHandler{users: users, availability: availability}
}

func (h *ProvidersHandler) List(ctx *gin.Context) {
	providers, err := h.users.ListProviders(ctx.Request.Context())
	if err != nil {
		RespondServiceError(ctx, err, "Could not list providers")
		return
	}
	if providers == nil {
		providers = []user.User{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, providers)
}

func (h *ProvidersHandler) Available(ctx *gin.Context) {
	providerID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || providerID <= 0 {
		RespondBadRequest(ctx, "Invalid provider id", nil)
		return
	}

	day := ctx.Query("date")
	if day == "" {
		RespondBadRequest(ctx, "Invalid date", gin.H{"fields": []FieldError{{
			Field: "date", Rule: "required", Message: validationMessage("required", ""),
		}}})
		return
	}

	slots, err := h.availability.DayAvailability(ctx.Request.Context(), providerID, day)
	if err != nil {
		RespondServiceError(ctx, err, "Could not load availability")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, slots)
}
