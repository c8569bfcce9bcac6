// Package http 商品目录 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pantry/internal/catalog/application"
	"github.com/wyfcoding/pantry/internal/catalog/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/middleware"
	"github.com/wyfcoding/pantry/pkg/response"
)

// CatalogHandler 商品目录 HTTP 处理器
type CatalogHandler struct {
	cmd   *application.CatalogCommandService
	query *application.CatalogQueryService
}

// NewCatalogHandler 创建 HTTP 处理器实例
func NewCatalogHandler(cmd *application.CatalogCommandService, query *application.CatalogQueryService) *CatalogHandler {
	return &CatalogHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由，router 需已挂载鉴权中间件
func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/products")
	{
		api.GET("", h.ListProducts)
		api.GET("/:id", h.GetProduct)
		api.POST("", middleware.AdminOnly(), h.CreateProduct)
		api.PUT("/:id", middleware.AdminOnly(), h.UpdateProduct)
		api.DELETE("/:id", middleware.AdminOnly(), h.DeleteProduct)
	}
}

// ProductResponse 商品响应
type ProductResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StockOnHand int             `json:"stockOnHand"`
	CategoryID  uint            `json:"categoryId"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		StockOnHand: p.Stock,
		CategoryID:  p.CategoryID,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StockOnHand int             `json:"stockOnHand" binding:"gte=0"`
	CategoryID  uint            `json:"categoryId"`
}

// UpdateProductRequest 编辑商品请求
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	StockOnHand *int             `json:"stockOnHand"`
	CategoryID  *uint            `json:"categoryId"`
}

// ListProducts 列出商品
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 64)

	products, pagination, err := h.query.ListProducts(c.Request.Context(), uint(categoryID), page, size)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toResponse(p))
	}
	response.Success(c, http.StatusOK, gin.H{"items": items, "pagination": pagination})
}

// GetProduct 获取商品
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.query.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResponse(p))
}

// CreateProduct 创建商品
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	p, err := h.cmd.CreateProduct(c.Request.Context(), application.CreateProductCommand{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.StockOnHand,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toResponse(p))
}

// UpdateProduct 编辑商品
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	p, err := h.cmd.UpdateProduct(c.Request.Context(), application.UpdateProductCommand{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.StockOnHand,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResponse(p))
}

// DeleteProduct 删除商品
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.cmd.DeleteProduct(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidProduct):
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation_error", err.Error())
	default:
		logger.Error(c.Request.Context(), "Catalog request failed", "path", c.FullPath(), "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation_error", "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
