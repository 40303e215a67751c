package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapgo/rental-engine/ledger"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// =============================================================================
// PAYMENTS
// =============================================================================

func TestApplyPayment_UpdatesBalances(t *testing.T) {
	// GIVEN: A rental owing 3600
	// WHEN: 1200 is paid
	// THEN: PaidTotal/BalanceDue move, rider TotalSpent accumulates, and
	//       the rental stays ongoing

	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "ananya")
	vehicle := createVehicle(t, svc, "101")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 3)

	payment, err := svc.ApplyPayment(ctx, ledger.CreatePaymentInput{
		RentalID: rental.ID,
		RiderID:  rider.ID,
		Amount:   d(1200),
		Method:   ledger.PayUPI,
	})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), payment.TransactionDate)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidTotal.Equal(d(1200)))
	assert.True(t, got.BalanceDue.Equal(d(2400)))
	assert.Equal(t, ledger.RentalOngoing, got.Status)

	gotRider, err := svc.GetRider(ctx, rider.ID)
	require.NoError(t, err)
	assert.True(t, gotRider.TotalSpent.Equal(d(1200)))
}

func TestApplyPayment_NonPositive_Rejected(t *testing.T) {
	svc, clock := newTestService(t)
	rider := createRider(t, svc, "diya")
	vehicle := createVehicle(t, svc, "102")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 1)

	_, err := svc.ApplyPayment(context.Background(), ledger.CreatePaymentInput{
		RentalID: rental.ID,
		RiderID:  rider.ID,
		Amount:   d(0),
	})
	assert.ErrorIs(t, err, ledger.ErrPreconditionFailed)
}

func TestApplyPayment_FullPaymentBeforeReturn_StaysOpen(t *testing.T) {
	// Paying in full does not close a rental whose vehicle is still out.
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "saanvi")
	vehicle := createVehicle(t, svc, "103")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	_, err := svc.ApplyPayment(ctx, ledger.CreatePaymentInput{
		RentalID: rental.ID,
		RiderID:  rider.ID,
		Amount:   rental.PayableTotal,
	})
	require.NoError(t, err)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.True(t, got.BalanceDue.IsZero())
	assert.Equal(t, ledger.RentalOngoing, got.Status)
}

func TestApplyPayment_FullPaymentAfterReturn_Completes(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "myra")
	vehicle := createVehicle(t, svc, "104")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	_, err := svc.ReturnRental(ctx, rental.ID)
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, ledger.CreatePaymentInput{
		RentalID: rental.ID,
		RiderID:  rider.ID,
		Amount:   rental.PayableTotal,
	})
	require.NoError(t, err)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RentalCompleted, got.Status)
	assert.True(t, got.BalanceDue.IsZero())
}

func TestApplyPayment_Overpayment_ClampsBalance(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "aadhya")
	vehicle := createVehicle(t, svc, "105")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 1)

	_, err := svc.ApplyPayment(ctx, ledger.CreatePaymentInput{
		RentalID: rental.ID,
		RiderID:  rider.ID,
		Amount:   rental.PayableTotal.Add(d(500)),
	})
	require.NoError(t, err)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.True(t, got.BalanceDue.IsZero())
}

// =============================================================================
// LATE FEES
// =============================================================================

func TestLateFee_GraceWindow(t *testing.T) {
	settings := ledger.DefaultSettings() // grace 2 days, 500/day
	rental := ledger.Rental{
		ExpectedReturnDate: time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
	}

	// Within grace: no fee.
	days, fee := ledger.LateFee(rental, settings, time.Date(2025, time.June, 11, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, days)
	assert.True(t, fee.IsZero())

	// Three days past grace.
	days, fee = ledger.LateFee(rental, settings, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, days)
	assert.True(t, fee.Equal(d(1500)))

	// Disabled fee.
	settings.LateFeeEnabled = false
	days, fee = ledger.LateFee(rental, settings, time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, days)
	assert.True(t, fee.IsZero())
}

// =============================================================================
// RETURN INSPECTIONS
// =============================================================================

func inspectRental(t *testing.T, svc *ledger.Service, rentalID string, in ledger.InspectionInput) ledger.ReturnInspection {
	t.Helper()
	in.RentalID = rentalID
	insp, err := svc.CreateReturnInspection(context.Background(), in)
	require.NoError(t, err)
	return insp
}

func TestCreateReturnInspection_Totals(t *testing.T) {
	// GIVEN: Cleaning 150, damage 800, late fee 500 at 18% tax
	// THEN: subtotal 1450, tax 261, final 1711; no deposit so
	//       totalDue == finalAmount

	svc, clock := newTestService(t)
	rider := createRider(t, svc, "kiara")
	vehicle := createVehicle(t, svc, "106")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	insp := inspectRental(t, svc, rental.ID, ledger.InspectionInput{
		CleaningFee: d(150),
		DamageFee:   d(800),
		LateFee:     d(500),
		LateDays:    1,
		TaxPercent:  d(18),
	})

	assert.True(t, insp.Subtotal.Equal(d(1450)), "subtotal %s", insp.Subtotal)
	assert.True(t, insp.TaxAmount.Equal(d(261)), "tax %s", insp.TaxAmount)
	assert.True(t, insp.FinalAmount.Equal(d(1711)), "final %s", insp.FinalAmount)
	assert.True(t, insp.TotalDue.Equal(d(1711)))
	assert.True(t, insp.DepositReturn.IsZero())
}

func TestCreateReturnInspection_DepositNetting(t *testing.T) {
	svc, clock := newTestService(t)
	rider := createRider(t, svc, "riya")
	vehicleA := createVehicle(t, svc, "107")
	vehicleB := createVehicle(t, svc, "108")

	// Deposit covers the charges: money goes back to the rider.
	rentalA := openRental(t, svc, clock, rider.ID, vehicleA.ID, 2)
	inspA := inspectRental(t, svc, rentalA.ID, ledger.InspectionInput{
		DamageFee:   d(1000),
		TaxPercent:  d(18),
		DepositHeld: d(5000),
	})
	assert.True(t, inspA.FinalAmount.Equal(d(1180)))
	assert.True(t, inspA.DepositReturn.Equal(d(3820)))
	assert.True(t, inspA.TotalDue.IsZero())

	// Deposit falls short: the rider owes the difference.
	rentalB := openRental(t, svc, clock, rider.ID, vehicleB.ID, 2)
	inspB := inspectRental(t, svc, rentalB.ID, ledger.InspectionInput{
		DamageFee:   d(6000),
		TaxPercent:  d(18),
		DepositHeld: d(5000),
	})
	assert.True(t, inspB.FinalAmount.Equal(d(7080)))
	assert.True(t, inspB.DepositReturn.IsZero())
	assert.True(t, inspB.TotalDue.Equal(d(2080)))
}

func TestCreateReturnInspection_OnePerRental(t *testing.T) {
	svc, clock := newTestService(t)
	rider := createRider(t, svc, "tara")
	vehicle := createVehicle(t, svc, "109")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	inspectRental(t, svc, rental.ID, ledger.InspectionInput{TaxPercent: d(18)})

	_, err := svc.CreateReturnInspection(context.Background(), ledger.InspectionInput{
		RentalID:   rental.ID,
		TaxPercent: d(18),
	})
	assert.ErrorIs(t, err, ledger.ErrPreconditionFailed)
}

func TestUpdateReturnInspection_RecomputesUntilSettled(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "zoya")
	vehicle := createVehicle(t, svc, "110")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	insp := inspectRental(t, svc, rental.ID, ledger.InspectionInput{
		CleaningFee: d(100),
		TaxPercent:  d(18),
	})

	updated, err := svc.UpdateReturnInspection(ctx, insp.ID, ledger.InspectionInput{
		RentalID:    rental.ID,
		CleaningFee: d(100),
		DamageFee:   d(900),
		TaxPercent:  d(18),
	})
	require.NoError(t, err)
	assert.True(t, updated.Subtotal.Equal(d(1000)))
	assert.True(t, updated.FinalAmount.Equal(d(1180)))

	_, err = svc.SettleReturn(ctx, insp.ID)
	require.NoError(t, err)

	_, err = svc.UpdateReturnInspection(ctx, insp.ID, ledger.InspectionInput{
		RentalID:   rental.ID,
		DamageFee:  d(99999),
		TaxPercent: d(18),
	})
	assert.ErrorIs(t, err, ledger.ErrPreconditionFailed)
}

// =============================================================================
// SETTLEMENT
// =============================================================================

func TestSettleReturn_ClosesRentalAndRaisesOneAlert(t *testing.T) {
	// GIVEN: An inspected ongoing rental
	// WHEN: Settled twice
	// THEN: Second call is a no-op; exactly one completion alert exists,
	//       the rider is counted once, and balanceDue carries the final
	//       amount

	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "meera")
	vehicle := createVehicle(t, svc, "111")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	insp := inspectRental(t, svc, rental.ID, ledger.InspectionInput{
		DamageFee:  d(500),
		TaxPercent: d(18),
	})

	settled, err := svc.SettleReturn(ctx, insp.ID)
	require.NoError(t, err)
	assert.True(t, settled.Settled)
	require.NotNil(t, settled.SettledAt)

	again, err := svc.SettleReturn(ctx, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.SettledAt, again.SettledAt)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RentalCompleted, got.Status)
	require.NotNil(t, got.ActualReturnDate)
	assert.True(t, got.BalanceDue.Equal(settled.FinalAmount))

	gotVehicle, err := svc.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.True(t, gotVehicle.Available)

	gotRider, err := svc.GetRider(ctx, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotRider.RentalsCount)

	alerts, err := svc.ListAlerts(ctx, ledger.ListParams{})
	require.NoError(t, err)
	count := 0
	for _, a := range alerts.Rows {
		if a.Type == ledger.AlertReturnCompleted && a.RelatedID == rental.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSettleReturn_AfterQuickReturn_KeepsReturnDate(t *testing.T) {
	// A rental already returned keeps its original return date and is not
	// counted twice on settlement.
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "isha")
	vehicle := createVehicle(t, svc, "112")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	returned, err := svc.ReturnRental(ctx, rental.ID)
	require.NoError(t, err)
	originalReturn := *returned.ActualReturnDate

	insp := inspectRental(t, svc, rental.ID, ledger.InspectionInput{TaxPercent: d(18)})

	clock.Advance(24 * time.Hour)
	_, err = svc.SettleReturn(ctx, insp.ID)
	require.NoError(t, err)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, originalReturn, *got.ActualReturnDate)

	gotRider, err := svc.GetRider(ctx, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotRider.RentalsCount)
}

func TestSettlement_CancelledRentalStaysCancelled(t *testing.T) {
	// GIVEN: Rentals that have been cancelled
	// WHEN: Staff try to inspect one, or settle an inspection opened before
	//       the cancellation
	// THEN: Both are rejected and the rental never leaves cancelled

	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "diya")
	vehicleA := createVehicle(t, svc, "115")
	vehicleB := createVehicle(t, svc, "116")

	// Cancelled first: no inspection may be opened at all.
	rentalA := openRental(t, svc, clock, rider.ID, vehicleA.ID, 2)
	_, err := svc.CancelRental(ctx, rentalA.ID)
	require.NoError(t, err)

	_, err = svc.CreateReturnInspection(ctx, ledger.InspectionInput{
		RentalID:   rentalA.ID,
		TaxPercent: d(18),
	})
	assert.ErrorIs(t, err, ledger.ErrPreconditionFailed)

	// Inspected first, then cancelled: settlement must not resurrect it.
	rentalB := openRental(t, svc, clock, rider.ID, vehicleB.ID, 2)
	insp := inspectRental(t, svc, rentalB.ID, ledger.InspectionInput{
		DamageFee:  d(300),
		TaxPercent: d(18),
	})
	_, err = svc.CancelRental(ctx, rentalB.ID)
	require.NoError(t, err)

	_, err = svc.SettleReturn(ctx, insp.ID)
	assert.ErrorIs(t, err, ledger.ErrPreconditionFailed)

	got, err := svc.GetRental(ctx, rentalB.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RentalCancelled, got.Status)
	assert.Nil(t, got.ActualReturnDate)

	gotInsp, err := svc.GetReturnInspection(ctx, insp.ID)
	require.NoError(t, err)
	assert.False(t, gotInsp.Settled)
}

// =============================================================================
// NOC
// =============================================================================

func TestGenerateNoc_RequiresSettlement(t *testing.T) {
	svc, clock := newTestService(t)
	rider := createRider(t, svc, "nisha")
	vehicle := createVehicle(t, svc, "113")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)
	insp := inspectRental(t, svc, rental.ID, ledger.InspectionInput{TaxPercent: d(18)})

	_, err := svc.GenerateNoc(context.Background(), insp.ID)
	assert.ErrorIs(t, err, ledger.ErrPreconditionFailed)
}

func TestGenerateNoc_RendersTemplateOnce(t *testing.T) {
	// GIVEN: A settled inspection
	// WHEN: NOC is generated twice
	// THEN: The same certificate comes back, with placeholders resolved

	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "priya")
	vehicle := createVehicle(t, svc, "114")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)
	insp := inspectRental(t, svc, rental.ID, ledger.InspectionInput{
		CleaningFee: d(100),
		TaxPercent:  d(18),
	})

	_, err := svc.SettleReturn(ctx, insp.ID)
	require.NoError(t, err)

	noc, err := svc.GenerateNoc(ctx, insp.ID)
	require.NoError(t, err)
	assert.Contains(t, noc.Content, "ZapGo Rentals Pvt. Ltd.")
	assert.Contains(t, noc.Content, "priya")
	assert.Contains(t, noc.Content, vehicle.Code)
	assert.Contains(t, noc.Content, "INR 118.00")
	assert.NotContains(t, noc.Content, "{{")

	again, err := svc.GenerateNoc(ctx, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, noc.ID, again.ID)

	gotInsp, err := svc.GetReturnInspection(ctx, insp.ID)
	require.NoError(t, err)
	assert.True(t, gotInsp.NocIssued)
	assert.Equal(t, noc.ID, gotInsp.NocID)
}
