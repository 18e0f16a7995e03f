package resilience

import "time"

// RetryFromSettings builds a RetryConfig from config values. Zero values keep
// the defaults.
func RetryFromSettings(maxAttempts int, initialBackoff, maxBackoff time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoff > 0 {
		cfg.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		cfg.MaxBackoff = maxBackoff
	}
	return cfg
}

// BreakerFromSettings builds a BreakerConfig from config values. Zero values
// keep the defaults.
func BreakerFromSettings(failureThreshold int, cooldown time.Duration) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if cooldown > 0 {
		cfg.Cooldown = cooldown
	}
	return cfg
}
