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

func countAlerts(t *testing.T, svc *ledger.Service, typ ledger.AlertType, relatedID string) int {
	t.Helper()
	alerts, err := svc.ListAlerts(context.Background(), ledger.ListParams{PageSize: 1000})
	require.NoError(t, err)
	n := 0
	for _, a := range alerts.Rows {
		if a.Type == typ && (relatedID == "" || a.RelatedID == relatedID) {
			n++
		}
	}
	return n
}

func TestSweep_MarksOverdueAndAlertsOnce(t *testing.T) {
	// GIVEN: A rental past its expected return date
	// WHEN: The sweep runs twice
	// THEN: The rental flips to overdue once, with exactly one alert

	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "overdue-rider")
	vehicle := createVehicle(t, svc, "201")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 2)

	clock.Advance(5 * 24 * time.Hour)

	first, err := svc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.OverdueRentals)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RentalOverdue, got.Status)

	second, err := svc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.OverdueRentals)
	assert.Equal(t, 0, second.AlertsCreated)

	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertOverdueRental, rental.ID))
}

func TestSweep_OnTimeRental_Untouched(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "timely-rider")
	vehicle := createVehicle(t, svc, "202")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 7)

	clock.Advance(24 * time.Hour)
	_, err := svc.RunDailySweep(ctx)
	require.NoError(t, err)

	got, err := svc.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RentalOngoing, got.Status)
}

func TestSweep_BatteryRentalOverdue(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "pack-rider")
	pack := createBattery(t, svc, "BP-S1")

	due := clock.Now().AddDate(0, 0, 2)
	br, err := svc.CreateBatteryRental(ctx, ledger.CreateBatteryRentalInput{
		RiderID:            rider.ID,
		BatteryID:          pack.ID,
		Plan:               "daily",
		RatePerDay:         decimal.NewFromInt(150),
		StartDate:          clock.Now(),
		ExpectedReturnDate: &due,
		PayableTotal:       decimal.NewFromInt(300),
	})
	require.NoError(t, err)

	clock.Advance(4 * 24 * time.Hour)
	res, err := svc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OverdueBatteryRentals)

	rentals, err := svc.ListBatteryRentals(ctx, ledger.ListParams{})
	require.NoError(t, err)
	require.Len(t, rentals.Rows, 1)
	assert.Equal(t, ledger.BatteryRentalOverdue, rentals.Rows[0].Status)
	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertBatteryRentalOverdue, br.ID))
}

func TestSweep_DocumentExpiryAlert(t *testing.T) {
	// Active riders with documents inside the warning window get an
	// alert; blocked riders do not.
	svc, clock := newTestService(t)
	ctx := context.Background()

	expiring, err := svc.CreateRider(ctx, ledger.CreateRiderInput{
		FullName:           "Expiring Soon",
		Phone:              "9811111111",
		IDProofType:        "DL",
		DocumentExpiryDate: clock.Now().AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	_, err = svc.CreateRider(ctx, ledger.CreateRiderInput{
		FullName:           "Blocked Rider",
		Phone:              "9822222222",
		IDProofType:        "DL",
		DocumentExpiryDate: clock.Now().AddDate(0, 0, 10),
		Status:             ledger.RiderBlocked,
	})
	require.NoError(t, err)

	_, err = svc.CreateRider(ctx, ledger.CreateRiderInput{
		FullName:           "Far Out",
		Phone:              "9833333333",
		IDProofType:        "DL",
		DocumentExpiryDate: clock.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	_, err = svc.RunDailySweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertDocumentExpiry, ""))
	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertDocumentExpiry, expiring.ID))
}

func TestSweep_BatteryAdvisories(t *testing.T) {
	// Lost packs, weak packs and flat packs each raise their own alert
	// type, once.
	svc, _ := newTestService(t)
	ctx := context.Background()

	lost := createBattery(t, svc, "BP-LOST")
	lostStatus := ledger.BatteryLost
	_, err := svc.UpdateBatteryPack(ctx, lost.ID, ledger.BatteryPackPatch{Status: &lostStatus})
	require.NoError(t, err)

	weak := createBattery(t, svc, "BP-WEAK")
	weakHealth := 55 // below the 70% warn threshold
	_, err = svc.UpdateBatteryPack(ctx, weak.ID, ledger.BatteryPackPatch{HealthPercent: &weakHealth})
	require.NoError(t, err)

	flat := createBattery(t, svc, "BP-FLAT")
	flatCharge := 8 // below the 20% warn threshold
	_, err = svc.UpdateBatteryPack(ctx, flat.ID, ledger.BatteryPackPatch{ChargePercent: &flatCharge})
	require.NoError(t, err)

	healthy := createBattery(t, svc, "BP-OK")

	res, err := svc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.AlertsCreated)

	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertBatteryMissing, lost.ID))
	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertBatteryLowHealth, weak.ID))
	assert.Equal(t, 1, countAlerts(t, svc, ledger.AlertBatteryLowCharge, flat.ID))
	assert.Equal(t, 0, countAlerts(t, svc, ledger.AlertBatteryMissing, healthy.ID)+
		countAlerts(t, svc, ledger.AlertBatteryLowHealth, healthy.ID)+
		countAlerts(t, svc, ledger.AlertBatteryLowCharge, healthy.ID))

	// Second pass adds nothing.
	res, err = svc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.AlertsCreated)
}

func TestMarkAlertRead_OneWay(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	rider := createRider(t, svc, "alert-rider")
	vehicle := createVehicle(t, svc, "203")
	rental := openRental(t, svc, clock, rider.ID, vehicle.ID, 1)

	clock.Advance(3 * 24 * time.Hour)
	_, err := svc.RunDailySweep(ctx)
	require.NoError(t, err)

	alerts, err := svc.ListAlerts(ctx, ledger.ListParams{})
	require.NoError(t, err)
	var alertID string
	for _, a := range alerts.Rows {
		if a.Type == ledger.AlertOverdueRental && a.RelatedID == rental.ID {
			alertID = a.ID
		}
	}
	require.NotEmpty(t, alertID)

	read, err := svc.MarkAlertRead(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, ledger.AlertRead, read.Status)

	// Marking again stays read.
	read, err = svc.MarkAlertRead(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, ledger.AlertRead, read.Status)
}
