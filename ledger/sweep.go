/*
sweep.go - Daily overdue/alert sweep

PURPOSE:
  One idempotent pass, invoked on demand or by the server's daily cron:

  1. ongoing rentals past expectedReturnDate become overdue
  2. one "Overdue Rental" alert per overdue rental (never duplicated)
  3. battery rentals get the same treatment
  4. advisory alerts: expiring rider documents, low battery health,
     low battery charge, vehicles with an assigned battery reported
     missing on inspection

  In seed mode only the reclassification happens; no alerts are created
  for synthetic data. Every alert insertion checks for an existing alert
  of the same type/relatedId first, so repeated sweeps are no-ops. This
  is the only component that advances time-dependent state.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/zapgo/rental-engine/logger"
)

// documentExpiryWarning is how far ahead the sweep warns about rider
// documents running out.
const documentExpiryWarning = 30 * 24 * time.Hour

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	OverdueRentals        int `json:"overdueRentals"`
	OverdueBatteryRentals int `json:"overdueBatteryRentals"`
	AlertsCreated         int `json:"alertsCreated"`
}

// RunDailySweep executes one sweep and persists the outcome.
func (s *Service) RunDailySweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	err := s.store.update(ctx, func(d *Data) error {
		res = s.sweep(d, false)
		return nil
	})
	if err == nil {
		logger.Info("daily sweep complete",
			"overdue_rentals", res.OverdueRentals,
			"overdue_battery_rentals", res.OverdueBatteryRentals,
			"alerts_created", res.AlertsCreated)
	}
	return res, err
}

// sweep runs inside the store lock. Seeding skips alert creation.
func (s *Service) sweep(d *Data, seeding bool) SweepResult {
	now := s.now()
	var res SweepResult

	for i := range d.Rentals {
		r := &d.Rentals[i]
		if r.Status == RentalOngoing && r.ExpectedReturnDate.Before(now) {
			r.Status = RentalOverdue
			r.UpdatedAt = now
			res.OverdueRentals++
		}
	}
	for i := range d.BatteryRentals {
		br := &d.BatteryRentals[i]
		if br.Status == BatteryRentalOngoing && br.ExpectedReturnDate != nil && br.ExpectedReturnDate.Before(now) {
			br.Status = BatteryRentalOverdue
			br.UpdatedAt = now
			res.OverdueBatteryRentals++
		}
	}

	if seeding {
		return res
	}

	for i := range d.Rentals {
		r := &d.Rentals[i]
		if r.Status == RentalOverdue {
			res.AlertsCreated += s.raiseAlert(d, AlertOverdueRental, r.ID,
				fmt.Sprintf("Rental #%s is overdue.", shortID(r.ID)), r.ExpectedReturnDate, now)
		}
	}

	for i := range d.BatteryRentals {
		br := &d.BatteryRentals[i]
		if br.Status == BatteryRentalOverdue {
			due := now
			if br.ExpectedReturnDate != nil {
				due = *br.ExpectedReturnDate
			}
			res.AlertsCreated += s.raiseAlert(d, AlertBatteryRentalOverdue, br.ID,
				fmt.Sprintf("Battery rental #%s is overdue.", shortID(br.ID)), due, now)
		}
	}

	for i := range d.Riders {
		rider := &d.Riders[i]
		if rider.Status != RiderActive {
			continue
		}
		if rider.DocumentExpiryDate.Before(now.Add(documentExpiryWarning)) {
			res.AlertsCreated += s.raiseAlert(d, AlertDocumentExpiry, rider.ID,
				fmt.Sprintf("%s's %s expires soon.", rider.FullName, rider.IDProofType),
				rider.DocumentExpiryDate, now)
		}
	}

	for i := range d.BatteryPacks {
		pack := &d.BatteryPacks[i]
		switch {
		case pack.Status == BatteryLost:
			res.AlertsCreated += s.raiseAlert(d, AlertBatteryMissing, pack.ID,
				fmt.Sprintf("Battery pack %s is reported lost.", pack.SerialNumber), now, now)
		case pack.HealthPercent < d.Settings.BatteryHealthThresholdWarn:
			res.AlertsCreated += s.raiseAlert(d, AlertBatteryLowHealth, pack.ID,
				fmt.Sprintf("Battery pack %s health is down to %d%%.", pack.SerialNumber, pack.HealthPercent), now, now)
		case pack.Status == BatteryAvailable && pack.ChargePercent < d.Settings.BatteryChargeThresholdWarn:
			res.AlertsCreated += s.raiseAlert(d, AlertBatteryLowCharge, pack.ID,
				fmt.Sprintf("Battery pack %s is at %d%% charge.", pack.SerialNumber, pack.ChargePercent), now, now)
		}
	}

	return res
}

// raiseAlert inserts an alert unless one of the same type/relatedId
// already exists. Returns the number of alerts created (0 or 1).
func (s *Service) raiseAlert(d *Data, typ AlertType, relatedID, message string, due, now time.Time) int {
	if hasAlert(d, typ, relatedID) {
		return 0
	}
	d.Alerts = append([]Alert{{
		ID:        s.newID(),
		Type:      typ,
		RelatedID: relatedID,
		Message:   message,
		DueDate:   due,
		Status:    AlertUnread,
		CreatedAt: now,
		UpdatedAt: now,
	}}, d.Alerts...)
	return 1
}
