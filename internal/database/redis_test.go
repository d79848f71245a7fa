package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/supabros/bookstore/internal/config"
)

func TestInitRedis(t *testing.T) {
	t.Run("no host", func(t *testing.T) {
		assert.Nil(t, InitRedis(config.RedisConfig{}))
	})

	t.Run("unreachable server", func(t *testing.T) {
		// Port 1 is reserved and never has a Redis listening.
		assert.Nil(t, InitRedis(config.RedisConfig{Host: "127.0.0.1", Port: "1"}))
	})
}
