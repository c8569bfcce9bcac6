// Package http 订单 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pantry/internal/order/application"
	"github.com/wyfcoding/pantry/internal/order/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/middleware"
	"github.com/wyfcoding/pantry/pkg/response"
)

// OrderHandler HTTP 处理器
// 负责处理与订单相关的 HTTP 请求
type OrderHandler struct {
	cmd   *application.OrderCommandService
	query *application.OrderQueryService
}

// NewOrderHandler 创建 HTTP 处理器实例
func NewOrderHandler(cmd *application.OrderCommandService, query *application.OrderQueryService) *OrderHandler {
	return &OrderHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由，router 需已挂载鉴权中间件
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/orders")
	{
		api.POST("", h.CreateOrder)
		api.GET("", h.ListOrders)
		api.GET("/:id", h.GetOrder)
		api.PUT("/:id", middleware.AdminOnly(), h.UpdateStatus)
		api.DELETE("/:id", middleware.AdminOnly(), h.DeleteOrder)
	}
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Items []CartItem `json:"items"`
}

// CartItem 购物车行
type CartItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// UpdateStatusRequest 修改状态请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// LineItemResponse 订单行
type LineItemResponse struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// OrderResponse 订单
type OrderResponse struct {
	ID              uint               `json:"id"`
	CustomerID      uint               `json:"customerId"`
	Status          string             `json:"status"`
	TotalPrice      decimal.Decimal    `json:"totalPrice"`
	PaymentIntentID string             `json:"paymentIntentId,omitempty"`
	Items           []LineItemResponse `json:"items"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	CreatedBy       uint               `json:"createdBy"`
	UpdatedBy       uint               `json:"updatedBy"`
}

func toResponse(o *domain.Order) OrderResponse {
	items := make([]LineItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return OrderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		TotalPrice:      o.TotalPrice,
		PaymentIntentID: o.PaymentIntentID,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		CreatedBy:       o.CreatedBy,
		UpdatedBy:       o.UpdatedBy,
	}
}

// CreateOrder 创建订单，部分行不可履约时仍然成功，并在 unavailableItems 中列出
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, domain.CodeValidation, err.Error())
		return
	}

	lines := make([]domain.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		// 非正数 ID 统一按 0 处理，由 ValidateCart 报告
		pid := uint(0)
		if it.ProductID > 0 {
			pid = uint(it.ProductID)
		}
		lines = append(lines, domain.LineRequest{ProductID: pid, Quantity: it.Quantity})
	}

	result, err := h.cmd.PlaceOrder(c.Request.Context(), application.PlaceOrderCommand{
		CustomerID: id.UserID,
		Items:      lines,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"order": toResponse(result.Order)}
	if len(result.Unavailable) > 0 {
		body["unavailableItems"] = result.Unavailable
	}
	response.Success(c, http.StatusCreated, body)
}

// ListOrders 列出订单
func (h *OrderHandler) ListOrders(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	orders, pagination, err := h.query.ListOrders(c.Request.Context(), viewer(id), c.Query("status"), page, size)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toResponse(o))
	}
	response.Success(c, http.StatusOK, gin.H{"items": items, "pagination": pagination})
}

// GetOrder 获取订单
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.query.GetOrder(c.Request.Context(), viewer(id), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResponse(order))
}

// UpdateStatus 修改订单状态
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, domain.CodeValidation, err.Error())
		return
	}

	order, err := h.cmd.UpdateStatus(c.Request.Context(), application.UpdateStatusCommand{
		OrderID: orderID,
		Status:  req.Status,
		ActorID: id.UserID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResponse(order))
}

// DeleteOrder 删除订单
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.cmd.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		noItems    *domain.NoFulfillableItemsError
		race       *domain.InsufficientStockAtCommitError
	)
	switch {
	case errors.As(err, &validation):
		response.ErrorWithStatus(c, http.StatusBadRequest, domain.CodeValidation, err.Error(), gin.H{"problems": validation.Problems})
	case errors.As(err, &noItems):
		response.ErrorWithStatus(c, http.StatusBadRequest, domain.CodeNoFulfillableItems, err.Error(), gin.H{"unavailableItems": noItems.Unavailable})
	case errors.As(err, &race):
		response.ErrorWithStatus(c, http.StatusConflict, domain.CodeInsufficientStockAtCommit, err.Error(), gin.H{"productId": race.ProductID, "requested": race.Requested})
	case errors.Is(err, domain.ErrUnknownStatus):
		response.ErrorWithStatus(c, http.StatusBadRequest, domain.CodeUnknownStatus, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, domain.CodeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.ErrorWithStatus(c, http.StatusForbidden, domain.CodeForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		response.ErrorWithStatus(c, http.StatusConflict, domain.CodeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		response.ErrorWithStatus(c, http.StatusConflict, domain.CodeConcurrentUpdate, err.Error())
	default:
		logger.Error(c.Request.Context(), "Order request failed", "path", c.FullPath(), "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, domain.CodePersistence, "failed to process order")
	}
}

func identity(c *gin.Context) (middleware.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return id, ok
}

func viewer(id middleware.Identity) application.Viewer {
	return application.Viewer{UserID: id.UserID, IsAdmin: id.IsAdmin()}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, domain.CodeValidation, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
