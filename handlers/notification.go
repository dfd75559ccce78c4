package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"beacon/models"
	"beacon/services/notification"
	"beacon/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	Service notification.NotificationService
}

func NewNotificationHandler(svc notification.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: svc}
}

// notificationError maps service sentinels onto HTTP statuses.
func notificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, notification.ErrUnauthenticated):
		utils.JSONError(c, http.StatusUnauthorized, "Insufficient authorization", err.Error())
	case errors.Is(err, notification.ErrInvalidCategory), errors.Is(err, notification.ErrInvalidRequest):
		utils.JSONError(c, http.StatusBadRequest, "Invalid notification", err.Error())
	case errors.Is(err, notification.ErrIdempotencyConflict):
		utils.JSONError(c, http.StatusConflict, "Idempotency key already used", err.Error())
	case errors.Is(err, notification.ErrNotificationNotFound):
		utils.JSONError(c, http.StatusNotFound, "Notification not found", "")
	default:
		utils.JSONError(c, http.StatusInternalServerError, "Notification request failed", err.Error())
	}
}

// CreateNotificationHandler records a notification and delivers it. The caller's token is the
// actor; an Idempotency-Key header makes retries return the original record.
func (h *NotificationHandler) CreateNotificationHandler(c *gin.Context) {
	actor, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req.CreatedBy = actor
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.ClientID = key
	}

	n, err := h.Service.CreateNotification(c.Request.Context(), req)
	if err != nil {
		notificationError(c, err)
		return
	}
	getLogger(c).Debug("Notification created via API", zap.String("notificationID", n.ID), zap.String("actor", actor))
	c.JSON(http.StatusCreated, n)
}

func (h *NotificationHandler) ListNotificationsHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter := models.ListFilter{}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid limit", err.Error())
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid offset", err.Error())
			return
		}
		filter.Offset = offset
	}
	filter.UnreadOnly = c.Query("unread") == "true"

	list, err := h.Service.ListNotifications(c.Request.Context(), userID, filter)
	if err != nil {
		notificationError(c, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) UnreadCountHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	count, err := h.Service.CountUnread(c.Request.Context(), userID)
	if err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *NotificationHandler) GetNotificationHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := h.Service.GetNotification(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) MarkReadHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.Service.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllReadHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	changed, err := h.Service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": changed})
}

func (h *NotificationHandler) DeleteNotificationHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteNotification(c.Request.Context(), userID, c.Param("id")); err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

func (h *NotificationHandler) ClickNotificationHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	out, err := h.Service.HandleClick(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
