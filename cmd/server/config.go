package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	CommandBufferSize    int           `env:"COMMAND_BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=100ms"`
	LimitMessages        int           `env:"LIMIT_MESSAGES,default=500"`
	// Comma-separated; the default lives in run() because the env tag
	// syntax reserves commas.
	DefaultRooms         string        `env:"DEFAULT_ROOMS"`
	EnableRoomCreation   bool          `env:"ENABLE_ROOM_CREATION,default=true"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=true"`
	CharReplacement      string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}
