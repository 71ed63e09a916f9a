package resilience

import "time"

// FromRetryConfig builds a RetryConfig from configured attempt and backoff
// values. Zero values keep the defaults.
func FromRetryConfig(maxAttempts, backoffMs int, multiplier float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if backoffMs > 0 {
		cfg.InitialBackoff = time.Duration(backoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	return cfg
}

// FromCircuitConfig builds a CircuitConfig from configured values.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitConfig {
	cfg := DefaultCircuitConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
