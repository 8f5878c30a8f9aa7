package config

import (
	"github.com/tendant/simple-ums/pkg/ratelimit"
)

// RateLimitConfig limits requests per client IP. The default of 1.67 per
// second is roughly 100 requests per minute.
type RateLimitConfig struct {
	Enabled           bool    `env:"RATELIMIT_ENABLED" env-default:"true"`
	RequestsPerSecond float64 `env:"RATELIMIT_REQUESTS_PER_SECOND" env-default:"1.67"`
	Burst             int     `env:"RATELIMIT_BURST" env-default:"20"`
	BucketTTL         string  `env:"RATELIMIT_BUCKET_TTL" env-default:"PT1H"`
	IncludeHeaders    bool    `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}

func (r RateLimitConfig) ToConfig() ratelimit.Config {
	defaults := ratelimit.DefaultConfig()
	return ratelimit.Config{
		Enabled:           r.Enabled,
		RequestsPerSecond: r.RequestsPerSecond,
		Burst:             r.Burst,
		BucketTTL:         mustDuration(r.BucketTTL, defaults.BucketTTL),
		IncludeHeaders:    r.IncludeHeaders,
	}
}
