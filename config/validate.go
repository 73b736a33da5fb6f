package config

import (
	"time"

	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
)

// validate checks configuration invariants before the timer core is
// constructed.
func validate(cfg *App) error {
	if cfg.WorkSeconds <= 0 {
		return apperr.Validationf(
			"work duration must be greater than zero, got %d",
			cfg.WorkSeconds,
		)
	}

	if cfg.RestSeconds < 0 {
		return apperr.Validationf(
			"rest duration cannot be negative, got %d", cfg.RestSeconds,
		)
	}

	if cfg.TickInterval <= 0 || cfg.TickInterval > time.Second {
		return apperr.Validationf(
			"tick interval must be within (0s, 1s], got %v", cfg.TickInterval,
		)
	}

	if cfg.ProgressInterval < 1 {
		return apperr.Validationf(
			"progress interval must be at least 1 tick, got %d",
			cfg.ProgressInterval,
		)
	}

	if cfg.MaxActiveSessions < 1 {
		return apperr.Validationf(
			"max active sessions must be at least 1, got %d",
			cfg.MaxActiveSessions,
		)
	}

	return nil
}
