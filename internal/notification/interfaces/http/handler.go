// Package http 通知记录的管理端 HTTP 接口
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pantry/internal/notification/application"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/middleware"
	"github.com/wyfcoding/pantry/pkg/response"
)

// NotificationHandler 通知 HTTP 处理器
type NotificationHandler struct {
	query *application.NotificationQueryService
}

// NewNotificationHandler 创建 HTTP 处理器实例
func NewNotificationHandler(query *application.NotificationQueryService) *NotificationHandler {
	return &NotificationHandler{query: query}
}

// RegisterRoutes 注册路由，router 需已挂载鉴权中间件
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/orders/:id/notifications", middleware.AdminOnly(), h.ListByOrder)
}

// NotificationResponse 通知记录
type NotificationResponse struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Target       string     `json:"target"`
	Subject      string     `json:"subject"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ListByOrder 查看订单的通知投递情况
func (h *NotificationHandler) ListByOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation_error", "id must be a positive integer")
		return
	}

	list, err := h.query.ListByOrder(c.Request.Context(), uint(orderID))
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list notifications", "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	items := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		items = append(items, NotificationResponse{
			ID:           n.NotificationID,
			Kind:         string(n.Kind),
			Target:       n.Target,
			Subject:      n.Subject,
			Status:       string(n.Status),
			ErrorMessage: n.ErrorMessage,
			SentAt:       n.SentAt,
			CreatedAt:    n.CreatedAt,
		})
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}
