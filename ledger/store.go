/*
store.go - Entity store and snapshot persistence

PURPOSE:
  Holds every collection and the settings singleton as the single source
  of truth, and persists the whole store as one JSON snapshot after each
  mutation. The store only holds state; the mutation rules live in the
  Service (lifecycle.go, billing.go, crud.go, sweep.go).

SNAPSHOT FORMAT:
  One JSON document, one top-level key per collection plus "settings".
  Loading an older snapshot that lacks newer keys backfills them with
  empty collections / default settings instead of failing.

FAILURE POLICY:
  A snapshot write failure never aborts the in-memory mutation that
  triggered it. It is logged and published on SaveFailures() so callers
  can decide on degraded-mode behavior.
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zapgo/rental-engine/logger"
)

// SnapshotSlot is the durable medium holding one whole-store snapshot.
// Implementations: ledger/store (memory), store/sqlite (durable).
type SnapshotSlot interface {
	// Load returns the stored payload, or ok=false when the slot is empty.
	Load(ctx context.Context) (payload []byte, ok bool, err error)
	// Save overwrites the slot wholesale (last-writer-wins).
	Save(ctx context.Context, payload []byte) error
	// Clear empties the slot.
	Clear(ctx context.Context) error
}

// Data is the full entity catalogue. JSON tags define the snapshot format.
type Data struct {
	Riders            []Rider            `json:"riders"`
	Vehicles          []Vehicle          `json:"vehicles"`
	Rentals           []Rental           `json:"rentals"`
	Payments          []Payment          `json:"payments"`
	Alerts            []Alert            `json:"alerts"`
	Users             []Staff            `json:"users"`
	Settings          Settings           `json:"settings"`
	ReturnInspections []ReturnInspection `json:"returnInspections"`
	BatteryPacks      []BatteryPack      `json:"batteryPacks"`
	BatterySwaps      []BatterySwap      `json:"batterySwaps"`
	BatteryRentals    []BatteryRental    `json:"batteryRentals"`
	Nocs              []Noc              `json:"nocs"`
}

// NewData returns an empty store state with default settings.
func NewData() *Data {
	d := &Data{Settings: DefaultSettings()}
	backfill(d)
	return d
}

// backfill replaces nil collections with empty ones and a zero-valued
// settings object with the defaults, so older snapshots never crash
// current code.
func backfill(d *Data) {
	if d.Riders == nil {
		d.Riders = []Rider{}
	}
	if d.Vehicles == nil {
		d.Vehicles = []Vehicle{}
	}
	if d.Rentals == nil {
		d.Rentals = []Rental{}
	}
	if d.Payments == nil {
		d.Payments = []Payment{}
	}
	if d.Alerts == nil {
		d.Alerts = []Alert{}
	}
	if d.Users == nil {
		d.Users = []Staff{}
	}
	if d.ReturnInspections == nil {
		d.ReturnInspections = []ReturnInspection{}
	}
	if d.BatteryPacks == nil {
		d.BatteryPacks = []BatteryPack{}
	}
	if d.BatterySwaps == nil {
		d.BatterySwaps = []BatterySwap{}
	}
	if d.BatteryRentals == nil {
		d.BatteryRentals = []BatteryRental{}
	}
	if d.Nocs == nil {
		d.Nocs = []Noc{}
	}
	if d.Settings.CompanyName == "" {
		d.Settings = DefaultSettings()
	}
	if d.Settings.NocTemplate == "" {
		d.Settings.NocTemplate = DefaultNocTemplate
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store owns the Data and its persistence. All access goes through
// view/update so that every mutation is followed by exactly one save.
type Store struct {
	mu       sync.RWMutex
	data     Data
	slot     SnapshotSlot
	saveErrs chan error
}

// NewStore creates a store over the given snapshot slot, starting from
// the empty state. Call Service.Load to hydrate or seed it.
func NewStore(slot SnapshotSlot) *Store {
	return &Store{
		data:     *NewData(),
		slot:     slot,
		saveErrs: make(chan error, 16),
	}
}

// SaveFailures exposes snapshot write failures. The channel is buffered
// and never blocks a mutation; when full, failures are dropped (they are
// still logged).
func (s *Store) SaveFailures() <-chan error { return s.saveErrs }

// LoadSnapshot hydrates the store from the slot. It returns false when
// the slot is empty or unreadable, in which case the caller seeds.
func (s *Store) LoadSnapshot(ctx context.Context) (bool, error) {
	payload, ok, err := s.slot.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}

	var d Data
	if err := json.Unmarshal(payload, &d); err != nil {
		logger.Warn("snapshot unreadable, reseeding", "error", err)
		return false, nil
	}
	backfill(&d)

	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	return true, nil
}

// Clear empties both the durable slot and the in-memory state.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	s.mu.Lock()
	s.data = *NewData()
	s.mu.Unlock()
	return nil
}

// Dump returns the full JSON serialization for export/inspection.
func (s *Store) Dump() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.data, "", "  ")
}

// view runs fn under the read lock. fn must not retain references into
// the data after returning; copy what it needs out.
func (s *Store) view(fn func(d *Data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

// update runs fn under the write lock and persists afterwards. When fn
// returns an error nothing is saved; operations therefore validate before
// mutating so a failure leaves no partial state.
func (s *Store) update(ctx context.Context, fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.data); err != nil {
		return err
	}
	s.saveLocked(ctx)
	return nil
}

func (s *Store) saveLocked(ctx context.Context) {
	payload, err := json.Marshal(s.data)
	if err == nil {
		err = s.slot.Save(ctx, payload)
	}
	if err == nil {
		return
	}

	logger.Error("snapshot save failed", "error", err)
	select {
	case s.saveErrs <- err:
	default:
	}
}

// =============================================================================
// LOOKUPS - pointers into the locked data, valid only inside view/update
// =============================================================================

func findRider(d *Data, id string) *Rider {
	for i := range d.Riders {
		if d.Riders[i].ID == id {
			return &d.Riders[i]
		}
	}
	return nil
}

func findVehicle(d *Data, id string) *Vehicle {
	for i := range d.Vehicles {
		if d.Vehicles[i].ID == id {
			return &d.Vehicles[i]
		}
	}
	return nil
}

func findRental(d *Data, id string) *Rental {
	for i := range d.Rentals {
		if d.Rentals[i].ID == id {
			return &d.Rentals[i]
		}
	}
	return nil
}

func findBattery(d *Data, id string) *BatteryPack {
	for i := range d.BatteryPacks {
		if d.BatteryPacks[i].ID == id {
			return &d.BatteryPacks[i]
		}
	}
	return nil
}

func findBatteryRental(d *Data, id string) *BatteryRental {
	for i := range d.BatteryRentals {
		if d.BatteryRentals[i].ID == id {
			return &d.BatteryRentals[i]
		}
	}
	return nil
}

func findInspection(d *Data, id string) *ReturnInspection {
	for i := range d.ReturnInspections {
		if d.ReturnInspections[i].ID == id {
			return &d.ReturnInspections[i]
		}
	}
	return nil
}

func findAlert(d *Data, id string) *Alert {
	for i := range d.Alerts {
		if d.Alerts[i].ID == id {
			return &d.Alerts[i]
		}
	}
	return nil
}

func findStaff(d *Data, id string) *Staff {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

func findNoc(d *Data, id string) *Noc {
	for i := range d.Nocs {
		if d.Nocs[i].ID == id {
			return &d.Nocs[i]
		}
	}
	return nil
}

// hasAlert reports whether an alert of the given type already references
// relatedID. The sweep uses it to stay idempotent.
func hasAlert(d *Data, typ AlertType, relatedID string) bool {
	for i := range d.Alerts {
		if d.Alerts[i].Type == typ && d.Alerts[i].RelatedID == relatedID {
			return true
		}
	}
	return false
}
