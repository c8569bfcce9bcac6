package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyLimit(t *testing.T) {
	l := Policy{QPS: 50, Burst: 100}.limit()
	assert.Equal(t, 50, l.Rate)
	assert.Equal(t, time.Second, l.Period)
	assert.Equal(t, 100, l.Burst)

	// 突发容量不小于速率，速率至少为 1
	l = Policy{QPS: 20, Burst: 5}.limit()
	assert.Equal(t, 20, l.Burst)
	l = Policy{}.limit()
	assert.Equal(t, 1, l.Rate)
	assert.Equal(t, 1, l.Burst)
}
