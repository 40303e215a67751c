/*
billing.go - Billing and settlement engine

PURPOSE:
  Computes balances on payment application, and computes/settles final
  amounts on return inspection, including fee composition and tax.

MONEY:
  Everything is decimal.Decimal. taxAmount = subtotal * taxPercent/100,
  finalAmount = subtotal + taxAmount; when a deposit is held, totalDue
  and depositReturn net against it while finalAmount stays gross.

SETTLEMENT:
  settleReturn is idempotent: the second invocation is a no-op returning
  the already-settled inspection. It never applies finalAmount twice and
  never duplicates the "Return Completed" alert.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// =============================================================================
// PAYMENTS
// =============================================================================

type CreatePaymentInput struct {
	RentalID        string
	RiderID         string
	Amount          decimal.Decimal
	Method          PayMethod
	TxnRef          string
	TransactionDate time.Time
}

// ApplyPayment appends an immutable payment record and recomputes the
// rental's running totals. A rental closes here only when it is both
// fully paid and already returned; either condition alone leaves it open.
func (s *Service) ApplyPayment(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	if err := s.inject(ctx); err != nil {
		return Payment{}, err
	}
	if !in.Amount.IsPositive() {
		return Payment{}, &PreconditionError{Reason: "payment amount must be positive"}
	}

	var created Payment
	err := s.store.update(ctx, func(d *Data) error {
		rental := findRental(d, in.RentalID)
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: in.RentalID}
		}
		rider := findRider(d, in.RiderID)
		if rider == nil {
			return &NotFoundError{Entity: "rider", ID: in.RiderID}
		}

		now := s.now()
		txnDate := in.TransactionDate
		if txnDate.IsZero() {
			txnDate = now
		}
		created = Payment{
			ID:              s.newID(),
			RentalID:        in.RentalID,
			RiderID:         in.RiderID,
			Amount:          in.Amount,
			Method:          in.Method,
			TxnRef:          in.TxnRef,
			TransactionDate: txnDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		d.Payments = append([]Payment{created}, d.Payments...)

		rental.PaidTotal = rental.PaidTotal.Add(in.Amount)
		rental.BalanceDue = rental.PayableTotal.Sub(rental.PaidTotal)
		if rental.BalanceDue.IsNegative() {
			rental.BalanceDue = decimal.Zero
		}
		if rental.BalanceDue.IsZero() && rental.ActualReturnDate != nil {
			rental.Status = RentalCompleted
		}
		rental.UpdatedAt = now

		rider.TotalSpent = rider.TotalSpent.Add(in.Amount)
		rider.UpdatedAt = now
		return nil
	})
	return created, err
}

// =============================================================================
// RETURN INSPECTIONS
// =============================================================================

type InspectionInput struct {
	RentalID            string
	OdometerEnd         int
	ChargePercent       int
	DamageNotes         string
	AccessoriesReturned *Accessories
	IsBatteryMissing    bool
	MissingItemsCharge  decimal.Decimal
	LateDays            int
	LateFee             decimal.Decimal
	CleaningFee         decimal.Decimal
	DamageFee           decimal.Decimal
	OtherAdjustments    decimal.Decimal
	TaxPercent          decimal.Decimal
	DepositHeld         decimal.Decimal
	Remarks             string
}

// LateFee computes the default late charge for a rental: days past the
// expected return plus grace, times the configured per-day fee. Staff can
// override the result before it reaches the inspection.
func LateFee(rental Rental, settings Settings, asOf time.Time) (int, decimal.Decimal) {
	if !settings.LateFeeEnabled {
		return 0, decimal.Zero
	}
	due := rental.ExpectedReturnDate.AddDate(0, 0, settings.GraceDays)
	days := int(asOf.Sub(due).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, settings.LateFeePerDay.Mul(decimal.NewFromInt(int64(days)))
}

// computeTotals derives subtotal, tax and the deposit-adjusted amounts.
func computeTotals(insp *ReturnInspection) {
	insp.Subtotal = insp.CleaningFee.
		Add(insp.DamageFee).
		Add(insp.MissingItemsCharge).
		Add(insp.LateFee).
		Add(insp.OtherAdjustments)
	insp.TaxAmount = insp.Subtotal.Mul(insp.TaxPercent).Div(oneHundred)
	insp.FinalAmount = insp.Subtotal.Add(insp.TaxAmount)

	if insp.DepositHeld.IsPositive() {
		insp.DepositReturn = insp.DepositHeld.Sub(insp.FinalAmount)
		if insp.DepositReturn.IsNegative() {
			insp.DepositReturn = decimal.Zero
		}
		insp.TotalDue = insp.FinalAmount.Sub(insp.DepositHeld)
		if insp.TotalDue.IsNegative() {
			insp.TotalDue = decimal.Zero
		}
	} else {
		insp.DepositReturn = decimal.Zero
		insp.TotalDue = insp.FinalAmount
	}
}

// CreateReturnInspection opens the fee sheet for a rental return. At most
// one inspection exists per rental. Late fees arrive precomputed by the
// caller (see LateFee) so staff can override them.
func (s *Service) CreateReturnInspection(ctx context.Context, in InspectionInput) (ReturnInspection, error) {
	var created ReturnInspection
	err := s.store.update(ctx, func(d *Data) error {
		rental := findRental(d, in.RentalID)
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: in.RentalID}
		}
		if rental.Status == RentalCancelled {
			return &PreconditionError{Reason: "a cancelled rental cannot be inspected"}
		}
		for i := range d.ReturnInspections {
			if d.ReturnInspections[i].RentalID == in.RentalID {
				return &PreconditionError{Reason: "rental already has a return inspection"}
			}
		}

		now := s.now()
		created = ReturnInspection{
			ID:                  s.newID(),
			RentalID:            in.RentalID,
			RiderID:             rental.RiderID,
			VehicleID:           rental.VehicleID,
			OdometerEnd:         in.OdometerEnd,
			ChargePercent:       in.ChargePercent,
			DamageNotes:         in.DamageNotes,
			AccessoriesReturned: in.AccessoriesReturned,
			IsBatteryMissing:    in.IsBatteryMissing,
			MissingItemsCharge:  in.MissingItemsCharge,
			LateDays:            in.LateDays,
			LateFee:             in.LateFee,
			CleaningFee:         in.CleaningFee,
			DamageFee:           in.DamageFee,
			OtherAdjustments:    in.OtherAdjustments,
			TaxPercent:          in.TaxPercent,
			DepositHeld:         in.DepositHeld,
			Remarks:             in.Remarks,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		computeTotals(&created)
		d.ReturnInspections = append([]ReturnInspection{created}, d.ReturnInspections...)
		return nil
	})
	return created, err
}

// UpdateReturnInspection revises the fee sheet and recomputes the derived
// totals. A settled inspection is frozen.
func (s *Service) UpdateReturnInspection(ctx context.Context, id string, in InspectionInput) (ReturnInspection, error) {
	var updated ReturnInspection
	err := s.store.update(ctx, func(d *Data) error {
		insp := findInspection(d, id)
		if insp == nil {
			return &NotFoundError{Entity: "returnInspection", ID: id}
		}
		if insp.Settled {
			return &PreconditionError{Reason: "inspection is already settled"}
		}

		insp.OdometerEnd = in.OdometerEnd
		insp.ChargePercent = in.ChargePercent
		insp.DamageNotes = in.DamageNotes
		insp.AccessoriesReturned = in.AccessoriesReturned
		insp.IsBatteryMissing = in.IsBatteryMissing
		insp.MissingItemsCharge = in.MissingItemsCharge
		insp.LateDays = in.LateDays
		insp.LateFee = in.LateFee
		insp.CleaningFee = in.CleaningFee
		insp.DamageFee = in.DamageFee
		insp.OtherAdjustments = in.OtherAdjustments
		insp.TaxPercent = in.TaxPercent
		insp.DepositHeld = in.DepositHeld
		insp.Remarks = in.Remarks
		computeTotals(insp)
		insp.UpdatedAt = s.now()

		updated = *insp
		return nil
	})
	return updated, err
}

// SettleReturn closes the rental's accounting against the inspection.
// Safe to call twice: the second call changes nothing.
func (s *Service) SettleReturn(ctx context.Context, inspectionID string) (ReturnInspection, error) {
	var settled ReturnInspection
	err := s.store.update(ctx, func(d *Data) error {
		insp := findInspection(d, inspectionID)
		if insp == nil {
			return &NotFoundError{Entity: "returnInspection", ID: inspectionID}
		}
		if insp.Settled {
			settled = *insp
			return nil
		}
		rental := findRental(d, insp.RentalID)
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: insp.RentalID}
		}
		if rental.Status == RentalCancelled {
			return &PreconditionError{Reason: "a cancelled rental cannot be settled"}
		}

		now := s.now()
		if rental.ActualReturnDate == nil {
			rental.ActualReturnDate = &now
			if rider := findRider(d, rental.RiderID); rider != nil {
				rider.RentalsCount++
				rider.UpdatedAt = now
			}
		}
		rental.Status = RentalCompleted
		rental.BalanceDue = insp.FinalAmount
		rental.UpdatedAt = now

		releaseVehicle(d, rental.VehicleID, now)

		insp.Settled = true
		insp.SettledAt = &now
		insp.UpdatedAt = now

		if !hasAlert(d, AlertReturnCompleted, rental.ID) {
			d.Alerts = append([]Alert{{
				ID:        s.newID(),
				Type:      AlertReturnCompleted,
				RelatedID: rental.ID,
				Message:   fmt.Sprintf("Rental #%s has been returned and settled.", shortID(rental.ID)),
				DueDate:   now,
				Status:    AlertUnread,
				CreatedAt: now,
				UpdatedAt: now,
			}}, d.Alerts...)
		}

		settled = *insp
		return nil
	})
	return settled, err
}

// =============================================================================
// NOC
// =============================================================================

// GenerateNoc issues the No-Objection Certificate for a settled
// inspection. Calling it again returns the certificate already issued.
func (s *Service) GenerateNoc(ctx context.Context, inspectionID string) (Noc, error) {
	var noc Noc
	err := s.store.update(ctx, func(d *Data) error {
		insp := findInspection(d, inspectionID)
		if insp == nil {
			return &NotFoundError{Entity: "returnInspection", ID: inspectionID}
		}
		if !insp.Settled {
			return &PreconditionError{Reason: "inspection must be settled before issuing a NOC"}
		}
		if insp.NocIssued && insp.NocID != "" {
			if existing := findNoc(d, insp.NocID); existing != nil {
				noc = *existing
				return nil
			}
		}

		now := s.now()
		noc = Noc{
			ID:                 s.newID(),
			RentalID:           insp.RentalID,
			ReturnInspectionID: insp.ID,
			Content:            renderNoc(d, insp, now),
			GeneratedAt:        now,
		}
		d.Nocs = append([]Noc{noc}, d.Nocs...)

		insp.NocIssued = true
		insp.NocID = noc.ID
		insp.UpdatedAt = now
		return nil
	})
	return noc, err
}

// renderNoc substitutes the template placeholders. Presentation beyond
// simple substitution belongs to the caller.
func renderNoc(d *Data, insp *ReturnInspection, now time.Time) string {
	riderName := insp.RiderID
	if rider := findRider(d, insp.RiderID); rider != nil {
		riderName = rider.FullName
	}
	vehicleCode := insp.VehicleID
	if vehicle := findVehicle(d, insp.VehicleID); vehicle != nil {
		vehicleCode = vehicle.Code
	}
	tmpl := d.Settings.NocTemplate
	if tmpl == "" {
		tmpl = DefaultNocTemplate
	}
	return strings.NewReplacer(
		"{{companyName}}", d.Settings.CompanyName,
		"{{riderName}}", riderName,
		"{{vehicleCode}}", vehicleCode,
		"{{rentalId}}", insp.RentalID,
		"{{date}}", now.Format("2006-01-02"),
		"{{finalAmount}}", fmt.Sprintf("%s %s", d.Settings.Currency, insp.FinalAmount.StringFixed(2)),
	).Replace(tmpl)
}

// shortID abbreviates an id for human-facing messages.
func shortID(id string) string {
	if len(id) > 4 {
		return id[:4]
	}
	return id
}
