package handlers

import (
	"errors"
	"net/http"
	"time"

	"beacon/models"
	"beacon/services/preference"
	"beacon/utils"

	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	Resolver preference.Resolver
}

func NewPreferenceHandler(r preference.Resolver) *PreferenceHandler {
	return &PreferenceHandler{Resolver: r}
}

func (h *PreferenceHandler) GetPreferenceHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	p, err := h.Resolver.Resolve(c.Request.Context(), userID)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load preferences", err.Error())
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PreferenceHandler) UpdatePreferenceHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var p models.Preference
	if err := c.ShouldBindJSON(&p); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	// Clients send their zone so quiet hours follow the user's clock without asking.
	if p.QuietHours.Timezone == "" {
		if tz := c.GetHeader("X-Timezone"); tz != "" {
			if _, err := time.LoadLocation(tz); err == nil {
				p.QuietHours.Timezone = tz
			}
		}
	}
	updated, err := h.Resolver.Update(c.Request.Context(), userID, &p)
	if errors.Is(err, preference.ErrInvalidPreference) {
		utils.JSONError(c, http.StatusBadRequest, "Invalid preferences", err.Error())
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to save preferences", err.Error())
		return
	}
	c.JSON(http.StatusOK, updated)
}
