package ratelimit

import "context"

// RateLimiter throttles outbound sends per transport driver.
type RateLimiter interface {
	Allow(ctx context.Context, driver string) (bool, error)
	Wait(ctx context.Context, driver string) error
}
