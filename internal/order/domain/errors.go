package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error 带错误码的领域错误
type Error struct {
	Code    string
	Message string
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// NewError 创建新的错误
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 错误码
const (
	CodeValidation                = "validation_error"
	CodeNoFulfillableItems        = "no_fulfillable_items"
	CodeInsufficientStockAtCommit = "insufficient_stock_at_commit"
	CodePersistence               = "persistence_failure"
	CodeOrderNotFound             = "order_not_found"
	CodeInvalidTransition         = "invalid_status_transition"
	CodeUnknownStatus             = "unknown_status"
	CodeForbidden                 = "forbidden"
	CodeConcurrentUpdate          = "concurrent_update"
)

var (
	ErrValidation                = NewError(CodeValidation, "invalid cart")
	ErrNoFulfillableItems        = NewError(CodeNoFulfillableItems, "no requested item can be fulfilled")
	ErrInsufficientStockAtCommit = NewError(CodeInsufficientStockAtCommit, "stock changed while the order was being placed")
	ErrPersistence               = NewError(CodePersistence, "failed to persist order")
	ErrOrderNotFound             = NewError(CodeOrderNotFound, "order not found")
	ErrInvalidTransition         = NewError(CodeInvalidTransition, "invalid status transition")
	ErrUnknownStatus             = NewError(CodeUnknownStatus, "unknown order status")
	ErrForbidden                 = NewError(CodeForbidden, "not allowed to access this order")
	ErrConcurrentUpdate          = NewError(CodeConcurrentUpdate, "order was modified concurrently")
)

// ValidationError 购物车格式错误，Problems 按行列出原因
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid cart: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NoFulfillableItemsError 所有行都不可履约
type NoFulfillableItemsError struct {
	Unavailable []UnavailableLine
}

func (e *NoFulfillableItemsError) Error() string {
	return fmt.Sprintf("none of the %d requested items can be fulfilled", len(e.Unavailable))
}

func (e *NoFulfillableItemsError) Is(target error) bool { return target == ErrNoFulfillableItems }

// InsufficientStockAtCommitError 提交时条件扣减失败，说明在检查之后库存被其他请求消耗
type InsufficientStockAtCommitError struct {
	ProductID uint
	Requested int
}

func (e *InsufficientStockAtCommitError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d at commit (requested %d)", e.ProductID, e.Requested)
}

func (e *InsufficientStockAtCommitError) Is(target error) bool {
	return target == ErrInsufficientStockAtCommit
}

// PersistenceError 存储层错误，对外只暴露 ErrPersistence
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// TransitionError 不允许的状态迁移
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// AsPersistence 将非领域错误包装为 PersistenceError，领域错误原样返回
func AsPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) ||
		errors.Is(err, ErrInsufficientStockAtCommit) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
