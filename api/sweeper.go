/*
sweeper.go - Scheduled daily sweep

PURPOSE:
  Runs the ledger's daily sweep on a cron schedule: overdue
  reclassification plus supplemental alerts (document expiry, battery
  health/charge, missing packs).

SCHEDULING:
  robfig/cron with a standard 5-field spec, evaluated in UTC. The
  default "0 2 * * *" runs at 02:00 UTC daily. The sweep is idempotent,
  so an extra manual trigger via /api/admin/sweep never double-counts.
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapgo/rental-engine/ledger"
	"github.com/zapgo/rental-engine/logger"
)

// Sweeper owns the cron runner for the daily sweep.
type Sweeper struct {
	service *ledger.Service
	spec    string
	cron    *cron.Cron
}

// NewSweeper prepares (but does not start) a sweeper with the given
// 5-field cron spec.
func NewSweeper(svc *ledger.Service, spec string) *Sweeper {
	return &Sweeper{
		service: svc,
		spec:    spec,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		result, err := s.service.RunDailySweep(ctx)
		if err != nil {
			logger.Error("daily sweep failed", "error", err)
			return
		}
		logger.Info("daily sweep finished",
			"overdueRentals", result.OverdueRentals,
			"overdueBatteryRentals", result.OverdueBatteryRentals,
			"alertsCreated", result.AlertsCreated)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("sweeper started", "spec", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("sweeper stopped")
}
