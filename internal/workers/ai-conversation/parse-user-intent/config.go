// internal/workers/ai-conversation/parse-user-intent/config.go
package parseuserintent

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
