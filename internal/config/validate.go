package config

import "fmt"

// Validate enforces value ranges the pipeline depends on.
func Validate(cfg *Config) error {
	if cfg.KDefault < 1 || cfg.KDefault > 50 {
		return fmt.Errorf("CONFIG_INVALID: k_default must be in [1,50], got %d", cfg.KDefault)
	}
	if cfg.HybridAlpha < 0 || cfg.HybridAlpha > 1 {
		return fmt.Errorf("CONFIG_INVALID: hybrid_alpha must be in [0,1], got %g", cfg.HybridAlpha)
	}
	if cfg.HybridKRRF < 1 {
		return fmt.Errorf("CONFIG_INVALID: hybrid_k_rrf must be >= 1, got %d", cfg.HybridKRRF)
	}
	switch cfg.LowConfMode {
	case "strict", "balanced", "lenient":
	default:
		return fmt.Errorf("CONFIG_INVALID: lowconf_mode must be strict|balanced|lenient, got %q", cfg.LowConfMode)
	}
	switch cfg.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CONFIG_INVALID: session_backend must be memory|redis, got %q", cfg.SessionBackend)
	}
	if cfg.SessionMaxTurns < 1 {
		return fmt.Errorf("CONFIG_INVALID: session_max_turns must be >= 1, got %d", cfg.SessionMaxTurns)
	}
	if cfg.RequestTimeoutSec < 1 {
		return fmt.Errorf("CONFIG_INVALID: request_timeout_sec must be >= 1, got %d", cfg.RequestTimeoutSec)
	}
	return nil
}
