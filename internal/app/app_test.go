package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterload/internal/config"
)

func TestProgressSinks_NoneConfigured(t *testing.T) {
	sinks, closers, err := progressSinks(context.Background(), config.ProgressConfig{})
	require.NoError(t, err)
	assert.Empty(t, sinks)
	assert.Empty(t, closers)
}

func TestProgressSinks_InvalidRedisURL(t *testing.T) {
	_, closers, err := progressSinks(context.Background(), config.ProgressConfig{RedisURL: "://nope"})
	require.Error(t, err)
	assert.Empty(t, closers)
}

func TestClose_ReverseOrder(t *testing.T) {
	var order []int
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return nil },
	}}

	a.Close()
	a.Close()

	assert.Equal(t, []int{2, 1}, order)
}
