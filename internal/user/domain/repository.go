package domain

import "context"

type UserRepository interface {
	Save(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uint) (*User, error)
	// ListAdmins 返回所有启用的管理员
	ListAdmins(ctx context.Context) ([]*User, error)
}
