// internal/workers/listings/summarize-listing-results/config.go
package summarizelistingresults

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
