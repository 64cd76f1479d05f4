// internal/workers/ai-conversation/answer-assistant-query/config.go
package answerassistantquery

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
