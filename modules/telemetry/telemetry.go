// Package telemetry periodically reports cycle statistics through the
// application logger, on a cron schedule running outside the control loop.
package telemetry

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/looper"
)

// DefaultSchedule reports once a minute.
const DefaultSchedule = "@every 1m"

// Module installs the stats reporter.
type Module struct {
	// Schedule is a cron expression; DefaultSchedule when empty.
	Schedule string
}

// Install implements looper.Module.
func (m Module) Install(b *looper.Builder) error {
	schedule := m.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	logger := b.Logger()

	b.AddStartupSystem("telemetry-start", func(storage *looper.Storage) error {
		c := cron.New()
		_, err := c.AddFunc(schedule, func() {
			report(storage, logger)
		})
		if err != nil {
			return fmt.Errorf("telemetry: invalid schedule %q: %w", schedule, err)
		}
		c.Start()
		logger.Debug("Telemetry reporter started", "schedule", schedule)
		return nil
	})
	return nil
}

func report(storage *looper.Storage, logger looper.Logger) {
	err := looper.ReadResource(storage, func(stats *looper.CycleStats) {
		logger.Info("Cycle statistics",
			"cycles", stats.Cycles,
			"lastCycle", stats.LastCycle,
			"maxCycle", stats.MaxCycle)
	})
	if err != nil {
		logger.Error("Telemetry report failed", "error", err)
	}
}
