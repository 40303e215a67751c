package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapgo/rental-engine/ledger"
	"github.com/zapgo/rental-engine/ledger/store"
)

// failingSlot accepts loads but rejects every save.
type failingSlot struct{}

func (failingSlot) Load(context.Context) ([]byte, bool, error) { return nil, false, nil }
func (failingSlot) Save(context.Context, []byte) error         { return errors.New("disk full") }
func (failingSlot) Clear(context.Context) error                { return nil }

func TestStore_SnapshotRoundTrip(t *testing.T) {
	// GIVEN: A store that has persisted a mutation
	// WHEN: A fresh store hydrates from the same slot
	// THEN: The mutation is visible

	ctx := context.Background()
	slot := store.NewMemory()

	first := ledger.NewService(ledger.NewStore(slot))
	rider := createRider(t, first, "durable")

	second := ledger.NewService(ledger.NewStore(slot))
	loaded, err := second.Store().LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, loaded)

	got, err := second.GetRider(ctx, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.FullName)
}

func TestStore_BackfillsOlderSnapshots(t *testing.T) {
	// A snapshot written before the battery-pack era loads cleanly with
	// empty collections and default settings filled in.
	ctx := context.Background()
	slot := store.NewMemory()
	payload := []byte(`{
		"riders": [{"id": "r-1", "fullName": "Legacy Rider", "status": "active"}],
		"vehicles": [],
		"rentals": []
	}`)
	require.NoError(t, slot.Save(ctx, payload))

	svc := ledger.NewService(ledger.NewStore(slot))
	loaded, err := svc.Store().LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, loaded)

	got, err := svc.GetRider(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Legacy Rider", got.FullName)

	packs, err := svc.ListBatteryPacks(ctx, ledger.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, packs.Total)

	settings, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ZapGo Rentals Pvt. Ltd.", settings.CompanyName)
	assert.Equal(t, 2, settings.GraceDays)
}

func TestStore_CorruptSnapshotReportsEmpty(t *testing.T) {
	ctx := context.Background()
	slot := store.NewMemory()
	require.NoError(t, slot.Save(ctx, []byte("{not json")))

	svc := ledger.NewService(ledger.NewStore(slot))
	loaded, err := svc.Store().LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestStore_SaveFailureDoesNotAbortMutation(t *testing.T) {
	// GIVEN: A slot whose writes fail
	// WHEN: A mutation runs
	// THEN: The mutation succeeds in memory and the failure surfaces on
	//       the failure channel

	svc := ledger.NewService(ledger.NewStore(failingSlot{}))
	rider := createRider(t, svc, "unlucky")

	got, err := svc.GetRider(context.Background(), rider.ID)
	require.NoError(t, err)
	assert.Equal(t, "unlucky", got.FullName)

	select {
	case saveErr := <-svc.Store().SaveFailures():
		assert.ErrorContains(t, saveErr, "disk full")
	case <-time.After(time.Second):
		t.Fatal("expected a save failure on the channel")
	}
}

func TestStore_DumpIsValidJSON(t *testing.T) {
	svc, _ := newTestService(t)
	createRider(t, svc, "dumped")

	payload, err := svc.Store().Dump()
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &doc))
	for _, key := range []string{"riders", "vehicles", "rentals", "payments", "settings", "batteryPacks"} {
		assert.Contains(t, doc, key)
	}
}

// =============================================================================
// SEED / RESET
// =============================================================================

func TestLoad_SeedsEmptySlot(t *testing.T) {
	// GIVEN: An empty slot
	// WHEN: The service hydrates
	// THEN: The synthetic dataset appears, past-due records already
	//       reclassified, with no alerts raised for synthetic data

	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	riders, err := svc.ListRiders(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 20, riders.Total)

	vehicles, err := svc.ListVehicles(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 10, vehicles.Total)

	rentals, err := svc.ListRentals(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	var overdue, live int
	for _, r := range rentals.Rows {
		switch r.Status {
		case ledger.RentalOverdue:
			overdue++
			live++
		case ledger.RentalOngoing:
			live++
		}
	}
	assert.Equal(t, 2, overdue)

	// Every live rental holds its vehicle; everything else is pooled.
	unavailable := 0
	for _, v := range vehicles.Rows {
		if !v.Available {
			unavailable++
			assert.NotEmpty(t, v.CurrentRentalID)
		}
	}
	assert.Equal(t, live, unavailable)

	alerts, err := svc.ListAlerts(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 0, alerts.Total)

	staff, err := svc.ListStaff(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, staff.Total)
	for _, u := range staff.Rows {
		assert.NotEmpty(t, u.PasswordHash)
	}
}

func TestLoad_SeededBalancesAreConsistent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	rentals, err := svc.ListRentals(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	for _, r := range rentals.Rows {
		if r.Status == ledger.RentalCompleted {
			continue // settlement may overwrite balanceDue
		}
		want := r.PayableTotal.Sub(r.PaidTotal)
		if want.IsNegative() {
			want = decimal.Zero
		}
		assert.True(t, r.BalanceDue.Equal(want),
			"rental %s: balance %s, want %s", r.ID, r.BalanceDue, want)
	}

	// Inspection sheets carry internally consistent totals.
	inspections, err := svc.ListReturnInspections(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	require.NotEmpty(t, inspections.Rows)
	for _, insp := range inspections.Rows {
		subtotal := insp.CleaningFee.Add(insp.DamageFee).
			Add(insp.MissingItemsCharge).Add(insp.LateFee).Add(insp.OtherAdjustments)
		assert.True(t, insp.Subtotal.Equal(subtotal), "inspection %s subtotal", insp.ID)
		assert.True(t, insp.FinalAmount.Equal(insp.Subtotal.Add(insp.TaxAmount)), "inspection %s final", insp.ID)
	}
}

func TestReseed_ReplacesCurrentContents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	extra := createRider(t, svc, "transient-rider")
	require.NoError(t, svc.Reseed(ctx))

	_, err := svc.GetRider(ctx, extra.ID)
	assert.True(t, ledger.IsNotFound(err))

	riders, err := svc.ListRiders(ctx, ledger.ListParams{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 20, riders.Total)
}

func TestReset_ClearsSlotAndReseeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	extra := createRider(t, svc, "doomed-rider")
	require.NoError(t, svc.Reset(ctx))

	_, err := svc.GetRider(ctx, extra.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestFaultInjector_TransientErrors(t *testing.T) {
	// With a 100% error rate every guarded operation fails with a
	// retryable error and mutates nothing.
	clock := &testClock{now: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)}
	seq := 0
	svc := ledger.NewService(ledger.NewStore(store.NewMemory()),
		ledger.WithClock(clock.Now),
		ledger.WithIDGenerator(func() string { seq++; return fmt.Sprintf("f-%03d", seq) }),
		ledger.WithFaults(ledger.NewFaultInjector(true, 1.0, 0, 0)),
	)

	_, err := svc.ListRiders(context.Background(), ledger.ListParams{})
	require.Error(t, err)
	assert.True(t, ledger.IsRetryable(err))
	assert.ErrorIs(t, err, ledger.ErrTransient)
}
