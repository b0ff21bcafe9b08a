package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	switch strings.ToLower(c.Store.Type) {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return errors.New("store.path must be set for the file store")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlitePath must be set for the sqlite store")
		}
	case "redis":
		if c.Store.Redis.Address == "" {
			return errors.New("store.redis.address must be set for the redis store")
		}
	default:
		return fmt.Errorf("invalid store type: %s. Must be 'file', 'memory', 'sqlite' or 'redis'", c.Store.Type)
	}

	if c.WebSocket.MaxMessageSize < 1 {
		return errors.New("websocket.maxMessageSize must be positive")
	}
	if c.WebSocket.SendBuffer < 1 {
		return errors.New("websocket.sendBuffer must be positive")
	}
	if c.WebSocket.WriteWait <= 0 || c.WebSocket.PongWait <= 0 {
		return errors.New("websocket write and pong waits must be positive")
	}
	if c.WebSocket.MessagesPerSecond < 0 {
		return errors.New("websocket.messagesPerSecond cannot be negative")
	}
	if c.WebSocket.MessagesPerSecond > 0 && c.WebSocket.Burst < 1 {
		return errors.New("websocket.burst must be at least 1 when rate limiting is enabled")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with '/'")
	}

	if strings.TrimSpace(c.Messages.Fired) == "" {
		return errors.New("messages.fired cannot be empty")
	}

	return nil
}

func bindEnvVars(v *viper.Viper) {
	// PORT is honoured as well, like most hosting platforms expect.
	v.BindEnv("server.port", "REMINDER_PORT", "PORT")

	v.BindEnv("store.type", "REMINDER_STORE")
	v.BindEnv("store.path", "REMINDER_STORE_PATH")
	v.BindEnv("store.sqlitePath", "REMINDER_SQLITE_PATH", "DB_PATH")
	v.BindEnv("store.redis.address", "REMINDER_REDIS_ADDRESS")
	v.BindEnv("store.redis.password", "REMINDER_REDIS_PASSWORD")

	v.BindEnv("log.level", "REMINDER_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("log.format", "REMINDER_LOG_FORMAT")
}
