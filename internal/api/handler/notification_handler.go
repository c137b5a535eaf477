package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// OutboxReader is the read side of the notification outbox.
type OutboxReader interface {
	NotificationsAfter(after int64) []domain.Notification
}

// NotificationHandler lets dashboards poll the append-only outbox.
type NotificationHandler struct {
	outbox OutboxReader
}

func NewNotificationHandler(outbox OutboxReader) *NotificationHandler {
	return &NotificationHandler{outbox: outbox}
}

// List handles GET /v1/notifications?after=<seq> — everything the ledger
// emitted after the given sequence number, oldest first. Observers resume
// from the returned next cursor; a missed poll loses nothing.
//
// @Summary      Poll ledger notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        after  query     int  false  "Return notifications with seq greater than this"  default(0)
// @Success      200    {object}  notificationListResponse
// @Failure      400    {object}  errorResponse
// @Router       /v1/notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	after := int64(0)
	if raw := c.QueryParam("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid after cursor")
		}
		after = parsed
	}

	notes := h.outbox.NotificationsAfter(after)
	resp := notificationListResponse{Data: make([]notificationResponse, len(notes)), Next: after}
	for i, n := range notes {
		resp.Data[i] = toNotificationResponse(n)
		if n.Seq > resp.Next {
			resp.Next = n.Seq
		}
	}
	return c.JSON(http.StatusOK, resp)
}
