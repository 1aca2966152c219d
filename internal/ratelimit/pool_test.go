package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolPerKeyBurst(t *testing.T) {
	p := NewPool(0.001, 2)

	assert.True(t, p.Allow("alice"))
	assert.True(t, p.Allow("alice"))
	assert.False(t, p.Allow("alice"), "burst exhausted")

	assert.True(t, p.Allow("bob"), "keys do not share buckets")
}
