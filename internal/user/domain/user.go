// Package domain 用户领域模型，订单服务只读取联系方式与角色
package domain

import (
	"errors"
	"time"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User 用户
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(100)"`
	Email     string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	Role      string    `gorm:"column:role;type:varchar(20);index;not null;default:customer"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
