// internal/workers/listings/extract-listing-query/config.go
package extractlistingquery

import "time"

type Config struct {
	Timeout time.Duration
	// MaxUtteranceLength mirrors the HTTP assistant request limit.
	MaxUtteranceLength int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            30 * time.Second,
		MaxUtteranceLength: 500,
	}
}
