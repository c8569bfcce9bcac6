// Package domain 商品目录领域模型
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidProduct 商品字段不合法
	ErrInvalidProduct = errors.New("invalid product")
)

// PriceScale 价格保留的小数位数，与 decimal(12,2) 列一致
const PriceScale = 2

// Product 商品，库存只会被下单扣减与管理员编辑修改
type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	Name        string          `gorm:"column:name;type:varchar(255);not null"`
	Description string          `gorm:"column:description;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0;check:chk_products_stock,stock >= 0"`
	CategoryID  uint            `gorm:"column:category_id;index"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

// TableName 指定表名
func (Product) TableName() string { return "products" }

// Validate 校验商品字段
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.Join(ErrInvalidProduct, errors.New("name is required"))
	case p.Price.IsNegative():
		return errors.Join(ErrInvalidProduct, errors.New("price must not be negative"))
	case !p.Price.Equal(p.Price.Truncate(PriceScale)):
		return errors.Join(ErrInvalidProduct, errors.New("price must have at most two decimal places"))
	case p.Stock < 0:
		return errors.Join(ErrInvalidProduct, errors.New("stock must not be negative"))
	}
	return nil
}
