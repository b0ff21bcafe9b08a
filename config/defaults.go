package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdownTimeout", "5s")

	// Store
	v.SetDefault("store.type", "file")
	v.SetDefault("store.path", "./_reminders")
	v.SetDefault("store.sqlitePath", "./reminders.db")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key", "reminders")

	// WebSocket
	v.SetDefault("websocket.maxMessageSize", 8*1024)
	v.SetDefault("websocket.sendBuffer", 256)
	v.SetDefault("websocket.writeWait", "10s")
	v.SetDefault("websocket.pongWait", "60s")
	v.SetDefault("websocket.messagesPerSecond", 20)
	v.SetDefault("websocket.burst", 40)

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Messages
	v.SetDefault("messages.fired", "We are reminding you from this event: {{name}}")
}
