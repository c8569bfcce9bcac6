// Package application 用户联系方式查询，为订单通知提供接收人
package application

import (
	"context"
	"fmt"
	"strings"

	notifdomain "github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/internal/user/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// ContactDirectory 从用户表解析顾客与管理员联系方式。
// 用户表中没有启用的管理员时使用配置的 fallbackAdmins。
type ContactDirectory struct {
	repo           domain.UserRepository
	fallbackAdmins []string
}

// NewContactDirectory 创建联系人目录
func NewContactDirectory(repo domain.UserRepository, fallbackAdmins []string) *ContactDirectory {
	emails := make([]string, 0, len(fallbackAdmins))
	for _, e := range fallbackAdmins {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	return &ContactDirectory{repo: repo, fallbackAdmins: emails}
}

var _ notifdomain.ContactDirectory = (*ContactDirectory)(nil)

// Customer 顾客联系方式
func (d *ContactDirectory) Customer(ctx context.Context, userID uint) (notifdomain.Recipient, error) {
	u, err := d.repo.GetByID(ctx, userID)
	if err != nil {
		return notifdomain.Recipient{}, fmt.Errorf("customer %d: %w", userID, err)
	}
	if !u.IsActive {
		logger.Warn(ctx, "Notifying inactive customer", "user_id", userID)
	}
	return toRecipient(u), nil
}

// Admins 管理员联系方式
func (d *ContactDirectory) Admins(ctx context.Context) ([]notifdomain.Recipient, error) {
	users, err := d.repo.ListAdmins(ctx)
	if err != nil {
		if len(d.fallbackAdmins) == 0 {
			return nil, err
		}
		logger.Warn(ctx, "Admin lookup failed, using configured admin emails", "error", err)
		return d.fallback(), nil
	}

	if len(users) == 0 {
		return d.fallback(), nil
	}

	out := make([]notifdomain.Recipient, 0, len(users))
	for _, u := range users {
		out = append(out, toRecipient(u))
	}
	return out, nil
}

func (d *ContactDirectory) fallback() []notifdomain.Recipient {
	out := make([]notifdomain.Recipient, 0, len(d.fallbackAdmins))
	for _, e := range d.fallbackAdmins {
		out = append(out, notifdomain.Recipient{Name: "Admin", Email: e})
	}
	return out
}

func toRecipient(u *domain.User) notifdomain.Recipient {
	return notifdomain.Recipient{UserID: u.ID, Name: u.Name, Email: u.Email}
}
