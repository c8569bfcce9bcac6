package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pantry/internal/notification/domain"
)

type sentMessage struct {
	target, subject, content string
}

type recordingSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
}

func (s *recordingSender) Send(_ context.Context, target, subject, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[target]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{target, subject, content})
	return nil
}

func (s *recordingSender) bySubject(subject string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.sent {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type memoryRepo struct {
	mu   sync.Mutex
	rows []domain.Notification
	err  error
}

func (r *memoryRepo) Save(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *n)
	return nil
}

func (r *memoryRepo) ListByOrder(_ context.Context, orderID uint) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for i := range r.rows {
		if r.rows[i].OrderID == orderID {
			out = append(out, &r.rows[i])
		}
	}
	return out, nil
}

func sampleOrder() domain.OrderSnapshot {
	return domain.OrderSnapshot{
		OrderID:    17,
		CustomerID: 3,
		Status:     "pending",
		TotalPrice: decimal.RequireFromString("20"),
		Lines: []domain.OrderLine{
			{ProductID: 1, ProductName: "Flour", Quantity: 4, UnitPrice: decimal.RequireFromString("5")},
		},
		CreatedAt: time.Now(),
	}
}

func TestMessageNotifier_OrderConfirmation(t *testing.T) {
	sender := &recordingSender{}
	repo := &memoryRepo{}
	m := newMetrics(t)
	n := NewMessageNotifier(sender, repo, m)

	err := n.SendOrderConfirmation(context.Background(), domain.Recipient{UserID: 3, Name: "Ann", Email: "ann@example.com"}, sampleOrder())
	require.NoError(t, err)

	msgs := sender.bySubject("Order Confirmation")
	require.Len(t, msgs, 1)
	assert.Equal(t, "ann@example.com", msgs[0].target)
	assert.Contains(t, msgs[0].content, "Dear Ann")
	assert.Contains(t, msgs[0].content, "#17")
	assert.Contains(t, msgs[0].content, "Flour x 4 @ 5.00")
	assert.Contains(t, msgs[0].content, "Total: 20.00")

	require.Len(t, repo.rows, 1)
	assert.Equal(t, domain.StatusSent, repo.rows[0].Status)
	assert.NotNil(t, repo.rows[0].SentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(string(domain.KindOrderConfirmation), "sent")))
}

func TestMessageNotifier_FailureIsRecorded(t *testing.T) {
	sender := &recordingSender{failFor: map[string]error{"bad@example.com": errors.New("mailbox unavailable")}}
	repo := &memoryRepo{}
	n := NewMessageNotifier(sender, repo, nil)

	admins := []domain.Recipient{{Email: "bad@example.com"}, {Email: "ok@example.com"}, {UserID: 9}}
	err := n.SendNewOrderAlert(context.Background(), admins, sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")
	assert.Contains(t, err.Error(), "no email address")

	assert.Len(t, sender.bySubject("New Order Received"), 1, "other admins still receive the alert")

	require.Len(t, repo.rows, 3)
	assert.Equal(t, domain.StatusFailed, repo.rows[0].Status)
	assert.Equal(t, "mailbox unavailable", repo.rows[0].ErrorMessage)
	assert.Equal(t, domain.StatusSent, repo.rows[1].Status)
	assert.Equal(t, domain.StatusFailed, repo.rows[2].Status)
}

func TestMessageNotifier_RepoFailureDoesNotFailDelivery(t *testing.T) {
	sender := &recordingSender{}
	n := NewMessageNotifier(sender, &memoryRepo{err: errors.New("db down")}, nil)

	err := n.SendStatusUpdate(context.Background(), []domain.Recipient{{Email: "ann@example.com"}}, sampleOrder(), "shipped")
	require.NoError(t, err)

	msgs := sender.bySubject("Order #17 Status Update")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Order #17 status has been updated to: shipped\n", msgs[0].content)
}

func TestMessageNotifier_NoRecipients(t *testing.T) {
	n := NewMessageNotifier(&recordingSender{}, nil, nil)
	err := n.SendNewOrderAlert(context.Background(), nil, sampleOrder())
	assert.ErrorIs(t, err, domain.ErrNoRecipients)
}

func TestMessageNotifier_LowStockIsOneMessage(t *testing.T) {
	sender := &recordingSender{}
	n := NewMessageNotifier(sender, nil, nil)

	items := []domain.StockItem{{ProductID: 1, Name: "Flour", Stock: 2}, {ProductID: 2, Stock: 0}}
	require.NoError(t, n.SendLowStockAlert(context.Background(), []domain.Recipient{{Email: "ops@example.com"}}, items))

	msgs := sender.bySubject("Low Stock Alert")
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, strings.Count(msgs[0].content, "Current stock:"))
	assert.Contains(t, msgs[0].content, "- Flour - Current stock: 2")
	assert.Contains(t, msgs[0].content, "- Product #2 - Current stock: 0")

	require.NoError(t, n.SendLowStockAlert(context.Background(), nil, nil))
}
