package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity 单个商品在一次下单中的数量上限（合并后）
const MaxLineQuantity = 1_000_000

// LineRequest 购物车中的一行
type LineRequest struct {
	ProductID uint
	Quantity  int
}

// StockSnapshot 一次读取得到的商品库存与价格
type StockSnapshot struct {
	ProductID uint
	Name      string
	Price     decimal.Decimal
	Stock     int
}

// PlannedLine 可履约的订单行，单价取自快照
type PlannedLine struct {
	ProductID   uint
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal 行小计
func (l PlannedLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UnavailableReason 不可履约原因
type UnavailableReason string

const (
	ReasonNotFound          UnavailableReason = "not_found"
	ReasonInsufficientStock UnavailableReason = "insufficient_stock"
)

// UnavailableLine 不可履约的行
type UnavailableLine struct {
	ProductID uint              `json:"productId"`
	Requested int               `json:"requested"`
	Available int               `json:"available"`
	Reason    UnavailableReason `json:"reason"`
}

// Plan 下单计划
type Plan struct {
	Fulfillable []PlannedLine
	Unavailable []UnavailableLine
	TotalPrice  decimal.Decimal
}

// ProductIDs 计划涉及的商品 ID，按行顺序
func (p *Plan) ProductIDs() []uint {
	ids := make([]uint, 0, len(p.Fulfillable))
	for _, l := range p.Fulfillable {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// ValidateCart 校验购物车格式，不访问存储
func ValidateCart(lines []LineRequest) error {
	if len(lines) == 0 {
		return &ValidationError{Problems: []string{"items must not be empty"}}
	}

	var problems []string
	totals := make(map[uint]int, len(lines))
	for i, l := range lines {
		if l.ProductID == 0 {
			problems = append(problems, fmt.Sprintf("items[%d].productId must be a positive integer", i))
		}
		switch {
		case l.Quantity <= 0:
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be a positive integer", i))
		case l.Quantity > MaxLineQuantity:
			problems = append(problems, fmt.Sprintf("items[%d].quantity must not exceed %d", i, MaxLineQuantity))
		case l.ProductID != 0:
			totals[l.ProductID] += l.Quantity
			if totals[l.ProductID] > MaxLineQuantity && totals[l.ProductID]-l.Quantity <= MaxLineQuantity {
				problems = append(problems, fmt.Sprintf("total quantity for productId %d must not exceed %d", l.ProductID, MaxLineQuantity))
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// MergeLines 合并相同商品的行，数量相加，保持首次出现的顺序。
// 数量之和溢出时饱和为 math.MaxInt，之后会被判为库存不足。
func MergeLines(lines []LineRequest) []LineRequest {
	index := make(map[uint]int, len(lines))
	merged := make([]LineRequest, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			if l.Quantity > math.MaxInt-merged[i].Quantity {
				merged[i].Quantity = math.MaxInt
			} else {
				merged[i].Quantity += l.Quantity
			}
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

// BuildPlan 按快照把每行分为可履约与不可履约，并用快照价格计算总价。
// 没有可履约行时返回 NoFulfillableItemsError。相同输入总是得到相同结果。
func BuildPlan(lines []LineRequest, snapshot map[uint]StockSnapshot) (*Plan, error) {
	plan := &Plan{TotalPrice: decimal.Zero}

	for _, l := range lines {
		s, ok := snapshot[l.ProductID]
		switch {
		case !ok:
			plan.Unavailable = append(plan.Unavailable, UnavailableLine{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: 0,
				Reason:    ReasonNotFound,
			})
		case l.Quantity > s.Stock:
			plan.Unavailable = append(plan.Unavailable, UnavailableLine{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: max(s.Stock, 0),
				Reason:    ReasonInsufficientStock,
			})
		default:
			line := PlannedLine{
				ProductID:   l.ProductID,
				ProductName: s.Name,
				Quantity:    l.Quantity,
				UnitPrice:   s.Price,
			}
			plan.Fulfillable = append(plan.Fulfillable, line)
			plan.TotalPrice = plan.TotalPrice.Add(line.Subtotal())
		}
	}

	if len(plan.Fulfillable) == 0 {
		return nil, &NoFulfillableItemsError{Unavailable: plan.Unavailable}
	}
	return plan, nil
}
