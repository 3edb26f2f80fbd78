package notion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewClient_DefaultRateLimit(t *testing.T) {
	t.Parallel()

	c := NewClient("token").(*notionClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(3), c.limiter.Limit())
}

func TestWithRateLimit(t *testing.T) {
	t.Parallel()

	c := NewClient("token", WithRateLimit(10)).(*notionClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(10), c.limiter.Limit())
	assert.Equal(t, 10, c.limiter.Burst())
}

func TestWithRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	c := NewClient("token", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
}
