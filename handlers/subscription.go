package handlers

import (
	"errors"
	"net/http"

	"beacon/models"
	"beacon/services/subscription"
	"beacon/utils"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	Service subscription.SubscriptionService
}

func NewSubscriptionHandler(svc subscription.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{Service: svc}
}

func (h *SubscriptionHandler) VAPIDPublicKeyHandler(c *gin.Context) {
	key := h.Service.VAPIDPublicKey()
	if key == "" {
		utils.JSONError(c, http.StatusServiceUnavailable, "Web push is not configured", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": key})
}

func (h *SubscriptionHandler) SubscribeHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var in models.SubscribeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if in.UserAgent == "" {
		in.UserAgent = c.Request.UserAgent()
	}

	sub, err := h.Service.Subscribe(c.Request.Context(), userID, in)
	if errors.Is(err, subscription.ErrInvalidSubscription) {
		utils.JSONError(c, http.StatusBadRequest, "Invalid push subscription", err.Error())
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to register push subscription", err.Error())
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *SubscriptionHandler) UnsubscribeHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var body struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	err := h.Service.Unsubscribe(c.Request.Context(), userID, body.Endpoint)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		utils.JSONError(c, http.StatusNotFound, "Push subscription not found", "")
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to remove push subscription", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Push subscription removed"})
}
