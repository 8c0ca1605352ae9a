package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/service/notification"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service notification.NotificationUseCase
}

type notificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	BookingID string `json:"booking_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

func NewNotificationHandler(service notification.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.PATCH("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var unreadOnly bool
	if raw := c.Query("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, domain.NewValidationError("unread", "must be a boolean"))
			return
		}
		unreadOnly = v
	}

	list, err := h.service.List(c.Request.Context(), actor, unreadOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]notificationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toNotificationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NotificationHandler) markRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	n, err := h.service.MarkRead(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNotificationResponse(n))
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Message:   n.Message,
		IsRead:    n.IsRead,
		BookingID: n.BookingID,
		PaymentID: n.PaymentID,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
