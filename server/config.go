package server

import (
	"time"

	"gitlab.com/efronlicht/enve"

	"github.com/chazu/intcode/vm"
)

// Config holds the network settings of a MachineServer.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Sessions unused for SessionTTL are closed; the sweep runs every
	// SweepInterval.
	SessionTTL    time.Duration
	SweepInterval time.Duration

	// Limits applied to every engine the service creates. Zero disables a
	// limit.
	MaxSteps  int64
	MaxMemory int64
}

// ConfigFromEnv returns the defaults, overridden by INTCODE_* environment
// variables.
func ConfigFromEnv() Config {
	return Config{
		Addr:          enve.StringOr("INTCODE_ADDR", ":8420"),
		ReadTimeout:   enve.DurationOr("INTCODE_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:  enve.DurationOr("INTCODE_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:   enve.DurationOr("INTCODE_IDLE_TIMEOUT", time.Minute),
		SessionTTL:    enve.DurationOr("INTCODE_SESSION_TTL", 30*time.Minute),
		SweepInterval: enve.DurationOr("INTCODE_SWEEP_INTERVAL", 5*time.Minute),
		MaxSteps:      int64(enve.IntOr("INTCODE_MAX_STEPS", 50_000_000)),
		MaxMemory:     int64(enve.IntOr("INTCODE_MAX_MEMORY", 1<<20)),
	}
}

func (c Config) engineOptions() []vm.Option {
	var opts []vm.Option
	if c.MaxSteps > 0 {
		opts = append(opts, vm.WithStepLimit(c.MaxSteps))
	}
	if c.MaxMemory > 0 {
		opts = append(opts, vm.WithMemoryLimit(c.MaxMemory))
	}
	return opts
}
