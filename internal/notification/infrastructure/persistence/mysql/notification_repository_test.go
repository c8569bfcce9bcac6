package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/db"
)

func TestNotificationRepository_SaveAndList(t *testing.T) {
	database, err := db.Init(db.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&domain.Notification{}))
	t.Cleanup(func() { _ = database.Close() })

	repo := NewNotificationRepository(database)
	ctx := context.Background()

	sent := &domain.Notification{NotificationID: "n-1", Kind: domain.KindOrderConfirmation, OrderID: 9, Target: "ann@example.com", Status: domain.StatusPending}
	require.NoError(t, repo.Save(ctx, sent))
	require.NotZero(t, sent.ID)
	sent.MarkSent(time.Now())
	require.NoError(t, repo.Save(ctx, sent))

	failed := &domain.Notification{NotificationID: "n-2", Kind: domain.KindNewOrderAlert, OrderID: 9, Target: "ops@example.com", Status: domain.StatusPending}
	failed.MarkFailed(errors.New("mailbox full"))
	require.NoError(t, repo.Save(ctx, failed))

	other := &domain.Notification{NotificationID: "n-3", Kind: domain.KindLowStockAlert, Target: "ops@example.com", Status: domain.StatusPending}
	require.NoError(t, repo.Save(ctx, other))

	list, err := repo.ListByOrder(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.StatusSent, list[0].Status)
	assert.NotNil(t, list[0].SentAt)
	assert.Equal(t, domain.StatusFailed, list[1].Status)
	assert.Equal(t, "mailbox full", list[1].ErrorMessage)

	none, err := repo.ListByOrder(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, none)
}
