/*
lifecycle.go - Asset lifecycle engine

PURPOSE:
  Enforces vehicle/battery availability invariants and rental status
  transitions.

RENTAL STATE MACHINE:
  ongoing -> overdue            (sweep.go, time driven)
  ongoing|overdue -> completed  (return or settlement)
  ongoing -> cancelled          (explicit cancel)
  No transition leaves completed or cancelled.

  Every cross-entity mutation updates both sides of the relationship
  (Rental<->Vehicle, Swap<->BatteryPack) within the same operation, so
  "available" and "assigned" never drift out of sync with the rentals
  and swaps that reference them. Operations validate before mutating;
  a failure leaves no partial state behind.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RENTALS
// =============================================================================

type CreateRentalInput struct {
	RiderID            string
	VehicleID          string
	Plan               Plan
	StartDate          time.Time
	ExpectedReturnDate time.Time
	PayableTotal       decimal.Decimal
}

// CreateRental opens a rental and atomically takes the vehicle out of the
// available pool.
func (s *Service) CreateRental(ctx context.Context, in CreateRentalInput) (Rental, error) {
	if err := s.inject(ctx); err != nil {
		return Rental{}, err
	}

	var created Rental
	err := s.store.update(ctx, func(d *Data) error {
		rider := findRider(d, in.RiderID)
		if rider == nil {
			return &NotFoundError{Entity: "rider", ID: in.RiderID}
		}
		vehicle := findVehicle(d, in.VehicleID)
		if vehicle == nil {
			return &NotFoundError{Entity: "vehicle", ID: in.VehicleID}
		}
		if !vehicle.Available {
			return &AssetError{Kind: "vehicle", ID: vehicle.ID, Problem: ErrAssetUnavailable, Detail: "vehicle is not available"}
		}

		now := s.now()
		created = Rental{
			ID:                 s.newID(),
			RiderID:            in.RiderID,
			VehicleID:          in.VehicleID,
			Plan:               in.Plan,
			StartDate:          in.StartDate,
			ExpectedReturnDate: in.ExpectedReturnDate,
			Status:             RentalOngoing,
			PayableTotal:       in.PayableTotal,
			PaidTotal:          decimal.Zero,
			BalanceDue:         in.PayableTotal,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		d.Rentals = append([]Rental{created}, d.Rentals...)

		vehicle.Available = false
		vehicle.CurrentRentalID = created.ID
		vehicle.UpdatedAt = now
		return nil
	})
	return created, err
}

// ReturnRental is the quick return path without inspection or fees: the
// rental completes, the vehicle is released, and the rider's rental count
// advances.
func (s *Service) ReturnRental(ctx context.Context, id string) (Rental, error) {
	var returned Rental
	err := s.store.update(ctx, func(d *Data) error {
		rental := findRental(d, id)
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: id}
		}
		if !rental.Live() {
			return &PreconditionError{Reason: "rental is already closed"}
		}

		now := s.now()
		rental.ActualReturnDate = &now
		rental.Status = RentalCompleted
		rental.UpdatedAt = now

		releaseVehicle(d, rental.VehicleID, now)

		if rider := findRider(d, rental.RiderID); rider != nil {
			rider.RentalsCount++
			rider.UpdatedAt = now
		}

		returned = *rental
		return nil
	})
	return returned, err
}

// CancelRental mirrors the return path but records no return date and no
// rental count. Only an ongoing rental can be cancelled.
func (s *Service) CancelRental(ctx context.Context, id string) (Rental, error) {
	var cancelled Rental
	err := s.store.update(ctx, func(d *Data) error {
		rental := findRental(d, id)
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: id}
		}
		if rental.Status != RentalOngoing {
			return &PreconditionError{Reason: "only an ongoing rental can be cancelled"}
		}

		now := s.now()
		rental.Status = RentalCancelled
		rental.UpdatedAt = now

		releaseVehicle(d, rental.VehicleID, now)

		cancelled = *rental
		return nil
	})
	return cancelled, err
}

// releaseVehicle returns a vehicle to the available pool.
func releaseVehicle(d *Data, vehicleID string, now time.Time) {
	if vehicle := findVehicle(d, vehicleID); vehicle != nil {
		vehicle.Available = true
		vehicle.CurrentRentalID = ""
		vehicle.UpdatedAt = now
	}
}

// =============================================================================
// BATTERY SWAPS
// =============================================================================

type CreateBatterySwapInput struct {
	OutBatteryID   string // pack going onto the vehicle
	InBatteryID    string // pack coming back to the pool
	VehicleID      string
	RiderID        string
	RentalID       string
	Location       string
	OperatorUserID string
	InSoC          int
	OutSoC         int
	Notes          string
}

// CreateBatterySwap records the swap event and updates pack state on both
// sides. An id that does not resolve is skipped rather than corrupting
// state; a swap naming no pack at all is rejected.
func (s *Service) CreateBatterySwap(ctx context.Context, in CreateBatterySwapInput) (BatterySwap, error) {
	if in.OutBatteryID == "" && in.InBatteryID == "" {
		return BatterySwap{}, &PreconditionError{Reason: "swap must reference an outgoing or incoming battery"}
	}

	var swap BatterySwap
	err := s.store.update(ctx, func(d *Data) error {
		now := s.now()

		if out := findBattery(d, in.OutBatteryID); out != nil {
			out.Status = BatteryAssigned
			out.AssignedVehicleID = in.VehicleID
			out.ChargePercent = in.OutSoC
			out.LastSwapAt = &now
			out.UpdatedAt = now
			if vehicle := findVehicle(d, in.VehicleID); vehicle != nil {
				vehicle.AssignedBatteryID = out.ID
				vehicle.UpdatedAt = now
			}
		}

		if incoming := findBattery(d, in.InBatteryID); incoming != nil {
			// Detach from whichever vehicle held it, not just the one on
			// the swap record.
			for i := range d.Vehicles {
				if d.Vehicles[i].AssignedBatteryID == incoming.ID {
					d.Vehicles[i].AssignedBatteryID = ""
					d.Vehicles[i].UpdatedAt = now
				}
			}
			incoming.Status = BatteryAvailable
			incoming.AssignedVehicleID = ""
			incoming.CycleCount++
			incoming.ChargePercent = in.InSoC
			incoming.LastSwapAt = &now
			incoming.UpdatedAt = now
		}

		swap = BatterySwap{
			ID:             s.newID(),
			OutBatteryID:   in.OutBatteryID,
			InBatteryID:    in.InBatteryID,
			VehicleID:      in.VehicleID,
			RiderID:        in.RiderID,
			RentalID:       in.RentalID,
			SwapAt:         now,
			Location:       in.Location,
			OperatorUserID: in.OperatorUserID,
			InSoC:          in.InSoC,
			OutSoC:         in.OutSoC,
			Notes:          in.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		d.BatterySwaps = append([]BatterySwap{swap}, d.BatterySwaps...)
		return nil
	})
	return swap, err
}

// =============================================================================
// BATTERY RENTALS
// =============================================================================

type CreateBatteryRentalInput struct {
	RiderID            string
	RentalID           string
	BatteryID          string
	Plan               string
	RatePerDay         decimal.Decimal
	RatePerWeek        decimal.Decimal
	PerSwapFee         decimal.Decimal
	StartDate          time.Time
	ExpectedReturnDate *time.Time
	PayableTotal       decimal.Decimal
	Notes              string
}

// CreateBatteryRental rents a pack out independently of a vehicle. The
// pack must be in the available pool and becomes assigned.
func (s *Service) CreateBatteryRental(ctx context.Context, in CreateBatteryRentalInput) (BatteryRental, error) {
	if err := s.inject(ctx); err != nil {
		return BatteryRental{}, err
	}

	var created BatteryRental
	err := s.store.update(ctx, func(d *Data) error {
		rider := findRider(d, in.RiderID)
		if rider == nil {
			return &NotFoundError{Entity: "rider", ID: in.RiderID}
		}
		pack := findBattery(d, in.BatteryID)
		if pack == nil {
			return &NotFoundError{Entity: "battery", ID: in.BatteryID}
		}
		if pack.Status != BatteryAvailable {
			return &AssetError{Kind: "battery", ID: pack.ID, Problem: ErrAssetUnavailable, Detail: "battery pack is not in the available pool"}
		}

		now := s.now()
		created = BatteryRental{
			ID:                 s.newID(),
			RiderID:            in.RiderID,
			RentalID:           in.RentalID,
			BatteryID:          in.BatteryID,
			Plan:               in.Plan,
			RatePerDay:         in.RatePerDay,
			RatePerWeek:        in.RatePerWeek,
			PerSwapFee:         in.PerSwapFee,
			StartDate:          in.StartDate,
			ExpectedReturnDate: in.ExpectedReturnDate,
			Status:             BatteryRentalOngoing,
			PayableTotal:       in.PayableTotal,
			PaidTotal:          decimal.Zero,
			BalanceDue:         in.PayableTotal,
			Notes:              in.Notes,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		d.BatteryRentals = append([]BatteryRental{created}, d.BatteryRentals...)

		pack.Status = BatteryAssigned
		pack.UpdatedAt = now
		return nil
	})
	return created, err
}

// ReturnBatteryRental closes the rental and returns the pack to the pool.
func (s *Service) ReturnBatteryRental(ctx context.Context, id string) (BatteryRental, error) {
	var returned BatteryRental
	err := s.store.update(ctx, func(d *Data) error {
		br := findBatteryRental(d, id)
		if br == nil {
			return &NotFoundError{Entity: "batteryRental", ID: id}
		}
		if br.Status != BatteryRentalOngoing && br.Status != BatteryRentalOverdue {
			return &PreconditionError{Reason: "battery rental is already closed"}
		}

		now := s.now()
		br.ActualReturnDate = &now
		br.Status = BatteryRentalReturned
		br.UpdatedAt = now

		if pack := findBattery(d, br.BatteryID); pack != nil && pack.Status == BatteryAssigned {
			pack.Status = BatteryAvailable
			pack.UpdatedAt = now
		}

		returned = *br
		return nil
	})
	return returned, err
}

// ApplyBatteryRentalPayment records money against a battery rental,
// keeping the same balance rule as vehicle rentals.
func (s *Service) ApplyBatteryRentalPayment(ctx context.Context, id string, amount decimal.Decimal) (BatteryRental, error) {
	if !amount.IsPositive() {
		return BatteryRental{}, &PreconditionError{Reason: "payment amount must be positive"}
	}

	var updated BatteryRental
	err := s.store.update(ctx, func(d *Data) error {
		br := findBatteryRental(d, id)
		if br == nil {
			return &NotFoundError{Entity: "batteryRental", ID: id}
		}

		now := s.now()
		br.PaidTotal = br.PaidTotal.Add(amount)
		br.BalanceDue = br.PayableTotal.Sub(br.PaidTotal)
		if br.BalanceDue.IsNegative() {
			br.BalanceDue = decimal.Zero
		}
		br.UpdatedAt = now

		if rider := findRider(d, br.RiderID); rider != nil {
			rider.TotalSpent = rider.TotalSpent.Add(amount)
			rider.UpdatedAt = now
		}

		updated = *br
		return nil
	})
	return updated, err
}

// =============================================================================
// ASSET GUARDS
// =============================================================================

// SetVehicleAvailability toggles a vehicle in or out of the pool, e.g.
// for maintenance. Either direction conflicts with a live rental.
func (s *Service) SetVehicleAvailability(ctx context.Context, id string, available bool) (Vehicle, error) {
	var updated Vehicle
	err := s.store.update(ctx, func(d *Data) error {
		vehicle := findVehicle(d, id)
		if vehicle == nil {
			return &NotFoundError{Entity: "vehicle", ID: id}
		}
		if vehicle.CurrentRentalID != "" {
			return &AssetError{Kind: "vehicle", ID: id, Problem: ErrAssetInUse, Detail: "vehicle has a live rental"}
		}

		vehicle.Available = available
		vehicle.UpdatedAt = s.now()
		updated = *vehicle
		return nil
	})
	return updated, err
}

// DeleteVehicle removes a vehicle; a vehicle with a live rental can never
// be deleted.
func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	return s.store.update(ctx, func(d *Data) error {
		vehicle := findVehicle(d, id)
		if vehicle == nil {
			return &NotFoundError{Entity: "vehicle", ID: id}
		}
		if vehicle.CurrentRentalID != "" || !vehicle.Available {
			return &AssetError{Kind: "vehicle", ID: id, Problem: ErrAssetInUse, Detail: "vehicle is currently rented out"}
		}

		kept := d.Vehicles[:0]
		for _, v := range d.Vehicles {
			if v.ID != id {
				kept = append(kept, v)
			}
		}
		d.Vehicles = kept
		return nil
	})
}

// DeleteBatteryPack removes a pack; packs outside the pool (assigned,
// charging, service_due) still hold an active assignment.
func (s *Service) DeleteBatteryPack(ctx context.Context, id string) error {
	return s.store.update(ctx, func(d *Data) error {
		pack := findBattery(d, id)
		if pack == nil {
			return &NotFoundError{Entity: "battery", ID: id}
		}
		if !pack.InPool() {
			return &AssetError{Kind: "battery", ID: id, Problem: ErrAssetInUse, Detail: "battery pack has an active assignment"}
		}

		kept := d.BatteryPacks[:0]
		for _, b := range d.BatteryPacks {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		d.BatteryPacks = kept
		return nil
	})
}
