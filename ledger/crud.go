/*
crud.go - Accessor surface consumed by the console UI

PURPOSE:
  List/get/create/update/delete operations for every collection, the
  read-side denormalized projections (a rental's embedded rider/vehicle
  are recomputed on every read, never stored), dashboard counters, staff
  accounts and the settings singleton.

  List operations run through the query layer (query.go) and the fault
  injector; they never mutate.
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// serviceDueAfter is how long a vehicle or pack may go without service
// before being flagged.
const serviceDueAfter = 90 * 24 * time.Hour

// =============================================================================
// PROJECTIONS - denormalized read models
// =============================================================================

// RentalView embeds the rider and vehicle resolved at read time.
type RentalView struct {
	Rental
	Rider   *Rider   `json:"rider,omitempty"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
}

// PaymentView embeds the rider and rental resolved at read time.
type PaymentView struct {
	Payment
	Rider  *Rider  `json:"rider,omitempty"`
	Rental *Rental `json:"rental,omitempty"`
}

func projectRental(d *Data, r Rental) RentalView {
	view := RentalView{Rental: r}
	if rider := findRider(d, r.RiderID); rider != nil {
		copied := *rider
		view.Rider = &copied
	}
	if vehicle := findVehicle(d, r.VehicleID); vehicle != nil {
		copied := *vehicle
		view.Vehicle = &copied
	}
	return view
}

func projectPayment(d *Data, p Payment) PaymentView {
	view := PaymentView{Payment: p}
	if rider := findRider(d, p.RiderID); rider != nil {
		copied := *rider
		view.Rider = &copied
	}
	if rental := findRental(d, p.RentalID); rental != nil {
		copied := *rental
		view.Rental = &copied
	}
	return view
}

// =============================================================================
// RIDERS
// =============================================================================

type CreateRiderInput struct {
	FullName           string
	Phone              string
	Email              string
	City               string
	Address            string
	IDProofType        string
	IDProofNumber      string
	DocumentExpiryDate time.Time
	PhotoURL           string
	Status             RiderStatus
}

// RiderPatch updates the form-editable rider fields; running totals are
// owned by the engines and not patchable.
type RiderPatch struct {
	FullName           *string
	Phone              *string
	Email              *string
	City               *string
	Address            *string
	IDProofType        *string
	IDProofNumber      *string
	DocumentExpiryDate *time.Time
	PhotoURL           *string
	Status             *RiderStatus
}

func (s *Service) ListRiders(ctx context.Context, params ListParams) (Paginated[Rider], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[Rider]{}, err
	}
	var out Paginated[Rider]
	s.store.view(func(d *Data) {
		out = List(d.Riders, params, "fullName", "phone", "email")
	})
	return out, nil
}

func (s *Service) GetRider(ctx context.Context, id string) (Rider, error) {
	if err := s.inject(ctx); err != nil {
		return Rider{}, err
	}
	var rider *Rider
	s.store.view(func(d *Data) {
		if r := findRider(d, id); r != nil {
			copied := *r
			rider = &copied
		}
	})
	if rider == nil {
		return Rider{}, &NotFoundError{Entity: "rider", ID: id}
	}
	return *rider, nil
}

func (s *Service) CreateRider(ctx context.Context, in CreateRiderInput) (Rider, error) {
	var created Rider
	err := s.store.update(ctx, func(d *Data) error {
		now := s.now()
		status := in.Status
		if status == "" {
			status = RiderActive
		}
		created = Rider{
			ID:                 s.newID(),
			FullName:           in.FullName,
			Phone:              in.Phone,
			Email:              strings.ToLower(in.Email),
			City:               in.City,
			Address:            in.Address,
			IDProofType:        in.IDProofType,
			IDProofNumber:      in.IDProofNumber,
			DocumentExpiryDate: in.DocumentExpiryDate,
			PhotoURL:           in.PhotoURL,
			Status:             status,
			TotalSpent:         decimal.Zero,
			KYCDocuments:       []KYCDocument{},
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		d.Riders = append([]Rider{created}, d.Riders...)
		return nil
	})
	return created, err
}

func (s *Service) UpdateRider(ctx context.Context, id string, patch RiderPatch) (Rider, error) {
	var updated Rider
	err := s.store.update(ctx, func(d *Data) error {
		rider := findRider(d, id)
		if rider == nil {
			return &NotFoundError{Entity: "rider", ID: id}
		}
		applyString(&rider.FullName, patch.FullName)
		applyString(&rider.Phone, patch.Phone)
		if patch.Email != nil {
			rider.Email = strings.ToLower(*patch.Email)
		}
		applyString(&rider.City, patch.City)
		applyString(&rider.Address, patch.Address)
		applyString(&rider.IDProofType, patch.IDProofType)
		applyString(&rider.IDProofNumber, patch.IDProofNumber)
		if patch.DocumentExpiryDate != nil {
			rider.DocumentExpiryDate = *patch.DocumentExpiryDate
		}
		applyString(&rider.PhotoURL, patch.PhotoURL)
		if patch.Status != nil {
			rider.Status = *patch.Status
		}
		rider.UpdatedAt = s.now()
		updated = *rider
		return nil
	})
	return updated, err
}

func (s *Service) DeleteRider(ctx context.Context, id string) error {
	return s.store.update(ctx, func(d *Data) error {
		if findRider(d, id) == nil {
			return &NotFoundError{Entity: "rider", ID: id}
		}
		kept := d.Riders[:0]
		for _, r := range d.Riders {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		d.Riders = kept
		return nil
	})
}

// =============================================================================
// VEHICLES
// =============================================================================

type CreateVehicleInput struct {
	Code               string
	Make               string
	Model              string
	Color              string
	RegistrationNumber string
	BatteryHealth      int
	LastServiceDate    time.Time
}

type VehiclePatch struct {
	Code               *string
	Make               *string
	Model              *string
	Color              *string
	RegistrationNumber *string
	BatteryHealth      *int
	LastServiceDate    *time.Time
}

func (s *Service) ListVehicles(ctx context.Context, params ListParams) (Paginated[Vehicle], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[Vehicle]{}, err
	}
	var out Paginated[Vehicle]
	s.store.view(func(d *Data) {
		out = List(d.Vehicles, params, "code", "make", "model", "registrationNumber")
	})
	return out, nil
}

// ListAvailableVehicles returns the vehicles currently in the pool.
func (s *Service) ListAvailableVehicles(ctx context.Context) ([]Vehicle, error) {
	if err := s.inject(ctx); err != nil {
		return nil, err
	}
	var out []Vehicle
	s.store.view(func(d *Data) {
		for _, v := range d.Vehicles {
			if v.Available {
				out = append(out, v)
			}
		}
	})
	return out, nil
}

func (s *Service) GetVehicle(ctx context.Context, id string) (Vehicle, error) {
	if err := s.inject(ctx); err != nil {
		return Vehicle{}, err
	}
	var vehicle *Vehicle
	s.store.view(func(d *Data) {
		if v := findVehicle(d, id); v != nil {
			copied := *v
			vehicle = &copied
		}
	})
	if vehicle == nil {
		return Vehicle{}, &NotFoundError{Entity: "vehicle", ID: id}
	}
	return *vehicle, nil
}

func (s *Service) CreateVehicle(ctx context.Context, in CreateVehicleInput) (Vehicle, error) {
	var created Vehicle
	err := s.store.update(ctx, func(d *Data) error {
		now := s.now()
		created = Vehicle{
			ID:                 s.newID(),
			Code:               in.Code,
			Make:               in.Make,
			Model:              in.Model,
			Color:              in.Color,
			RegistrationNumber: in.RegistrationNumber,
			BatteryHealth:      in.BatteryHealth,
			LastServiceDate:    in.LastServiceDate,
			Available:          true,
			IsServiceDue:       now.Sub(in.LastServiceDate) > serviceDueAfter,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		d.Vehicles = append([]Vehicle{created}, d.Vehicles...)
		return nil
	})
	return created, err
}

func (s *Service) UpdateVehicle(ctx context.Context, id string, patch VehiclePatch) (Vehicle, error) {
	var updated Vehicle
	err := s.store.update(ctx, func(d *Data) error {
		vehicle := findVehicle(d, id)
		if vehicle == nil {
			return &NotFoundError{Entity: "vehicle", ID: id}
		}
		applyString(&vehicle.Code, patch.Code)
		applyString(&vehicle.Make, patch.Make)
		applyString(&vehicle.Model, patch.Model)
		applyString(&vehicle.Color, patch.Color)
		applyString(&vehicle.RegistrationNumber, patch.RegistrationNumber)
		if patch.BatteryHealth != nil {
			vehicle.BatteryHealth = *patch.BatteryHealth
		}
		now := s.now()
		if patch.LastServiceDate != nil {
			vehicle.LastServiceDate = *patch.LastServiceDate
			vehicle.IsServiceDue = now.Sub(*patch.LastServiceDate) > serviceDueAfter
		}
		vehicle.UpdatedAt = now
		updated = *vehicle
		return nil
	})
	return updated, err
}

// =============================================================================
// BATTERY PACKS
// =============================================================================

type CreateBatteryPackInput struct {
	SerialNumber  string
	Type          string
	CapacityWh    int
	HealthPercent int
	ChargePercent int
	LastServiceAt time.Time
	Notes         string
}

type BatteryPackPatch struct {
	SerialNumber  *string
	Type          *string
	CapacityWh    *int
	HealthPercent *int
	ChargePercent *int
	Status        *BatteryStatus
	LastServiceAt *time.Time
	Notes         *string
}

func (s *Service) ListBatteryPacks(ctx context.Context, params ListParams) (Paginated[BatteryPack], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[BatteryPack]{}, err
	}
	var out Paginated[BatteryPack]
	s.store.view(func(d *Data) {
		out = List(d.BatteryPacks, params, "serialNumber", "type")
	})
	return out, nil
}

func (s *Service) GetBatteryPack(ctx context.Context, id string) (BatteryPack, error) {
	if err := s.inject(ctx); err != nil {
		return BatteryPack{}, err
	}
	var pack *BatteryPack
	s.store.view(func(d *Data) {
		if b := findBattery(d, id); b != nil {
			copied := *b
			pack = &copied
		}
	})
	if pack == nil {
		return BatteryPack{}, &NotFoundError{Entity: "battery", ID: id}
	}
	return *pack, nil
}

func (s *Service) CreateBatteryPack(ctx context.Context, in CreateBatteryPackInput) (BatteryPack, error) {
	var created BatteryPack
	err := s.store.update(ctx, func(d *Data) error {
		now := s.now()
		created = BatteryPack{
			ID:            s.newID(),
			SerialNumber:  in.SerialNumber,
			Type:          in.Type,
			CapacityWh:    in.CapacityWh,
			HealthPercent: in.HealthPercent,
			ChargePercent: in.ChargePercent,
			Status:        BatteryAvailable,
			LastServiceAt: in.LastServiceAt,
			Notes:         in.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		d.BatteryPacks = append([]BatteryPack{created}, d.BatteryPacks...)
		return nil
	})
	return created, err
}

// UpdateBatteryPack patches a pack. Status changes are guarded: an
// assigned pack is released only by a swap or battery-rental return, and
// assignment itself only ever happens through those paths.
func (s *Service) UpdateBatteryPack(ctx context.Context, id string, patch BatteryPackPatch) (BatteryPack, error) {
	var updated BatteryPack
	err := s.store.update(ctx, func(d *Data) error {
		pack := findBattery(d, id)
		if pack == nil {
			return &NotFoundError{Entity: "battery", ID: id}
		}
		if patch.Status != nil && *patch.Status != pack.Status {
			if pack.Status == BatteryAssigned {
				return &AssetError{Kind: "battery", ID: id, Problem: ErrAssetInUse, Detail: "battery pack has an active assignment"}
			}
			if *patch.Status == BatteryAssigned {
				return &PreconditionError{Reason: "packs are assigned through swaps or battery rentals"}
			}
			pack.Status = *patch.Status
		}
		applyString(&pack.SerialNumber, patch.SerialNumber)
		applyString(&pack.Type, patch.Type)
		if patch.CapacityWh != nil {
			pack.CapacityWh = *patch.CapacityWh
		}
		if patch.HealthPercent != nil {
			pack.HealthPercent = *patch.HealthPercent
		}
		if patch.ChargePercent != nil {
			pack.ChargePercent = *patch.ChargePercent
		}
		if patch.LastServiceAt != nil {
			pack.LastServiceAt = *patch.LastServiceAt
		}
		applyString(&pack.Notes, patch.Notes)
		pack.UpdatedAt = s.now()
		updated = *pack
		return nil
	})
	return updated, err
}

// =============================================================================
// RENTALS / PAYMENTS / INSPECTIONS / SWAPS - reads
// =============================================================================

func (s *Service) ListRentals(ctx context.Context, params ListParams) (Paginated[RentalView], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[RentalView]{}, err
	}
	var out Paginated[RentalView]
	s.store.view(func(d *Data) {
		page := List(d.Rentals, params)
		views := make([]RentalView, len(page.Rows))
		for i, r := range page.Rows {
			views[i] = projectRental(d, r)
		}
		out = Paginated[RentalView]{Rows: views, Total: page.Total, Page: page.Page, PageSize: page.PageSize}
	})
	return out, nil
}

func (s *Service) GetRental(ctx context.Context, id string) (RentalView, error) {
	if err := s.inject(ctx); err != nil {
		return RentalView{}, err
	}
	var view *RentalView
	s.store.view(func(d *Data) {
		if r := findRental(d, id); r != nil {
			v := projectRental(d, *r)
			view = &v
		}
	})
	if view == nil {
		return RentalView{}, &NotFoundError{Entity: "rental", ID: id}
	}
	return *view, nil
}

func (s *Service) ListPayments(ctx context.Context, params ListParams) (Paginated[PaymentView], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[PaymentView]{}, err
	}
	var out Paginated[PaymentView]
	s.store.view(func(d *Data) {
		page := List(d.Payments, params, "txnRef")
		views := make([]PaymentView, len(page.Rows))
		for i, p := range page.Rows {
			views[i] = projectPayment(d, p)
		}
		out = Paginated[PaymentView]{Rows: views, Total: page.Total, Page: page.Page, PageSize: page.PageSize}
	})
	return out, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (PaymentView, error) {
	if err := s.inject(ctx); err != nil {
		return PaymentView{}, err
	}
	var view *PaymentView
	s.store.view(func(d *Data) {
		for _, p := range d.Payments {
			if p.ID == id {
				v := projectPayment(d, p)
				view = &v
				return
			}
		}
	})
	if view == nil {
		return PaymentView{}, &NotFoundError{Entity: "payment", ID: id}
	}
	return *view, nil
}

func (s *Service) ListReturnInspections(ctx context.Context, params ListParams) (Paginated[ReturnInspection], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[ReturnInspection]{}, err
	}
	var out Paginated[ReturnInspection]
	s.store.view(func(d *Data) {
		out = List(d.ReturnInspections, params, "remarks")
	})
	return out, nil
}

func (s *Service) GetReturnInspection(ctx context.Context, id string) (ReturnInspection, error) {
	if err := s.inject(ctx); err != nil {
		return ReturnInspection{}, err
	}
	var insp *ReturnInspection
	s.store.view(func(d *Data) {
		if r := findInspection(d, id); r != nil {
			copied := *r
			insp = &copied
		}
	})
	if insp == nil {
		return ReturnInspection{}, &NotFoundError{Entity: "returnInspection", ID: id}
	}
	return *insp, nil
}

func (s *Service) ListBatterySwaps(ctx context.Context, params ListParams) (Paginated[BatterySwap], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[BatterySwap]{}, err
	}
	var out Paginated[BatterySwap]
	s.store.view(func(d *Data) {
		out = List(d.BatterySwaps, params, "location", "notes")
	})
	return out, nil
}

func (s *Service) ListBatteryRentals(ctx context.Context, params ListParams) (Paginated[BatteryRental], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[BatteryRental]{}, err
	}
	var out Paginated[BatteryRental]
	s.store.view(func(d *Data) {
		out = List(d.BatteryRentals, params, "notes")
	})
	return out, nil
}

func (s *Service) ListNocs(ctx context.Context, params ListParams) (Paginated[Noc], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[Noc]{}, err
	}
	var out Paginated[Noc]
	s.store.view(func(d *Data) {
		out = List(d.Nocs, params, "content")
	})
	return out, nil
}

func (s *Service) GetNoc(ctx context.Context, id string) (Noc, error) {
	if err := s.inject(ctx); err != nil {
		return Noc{}, err
	}
	var noc *Noc
	s.store.view(func(d *Data) {
		if n := findNoc(d, id); n != nil {
			copied := *n
			noc = &copied
		}
	})
	if noc == nil {
		return Noc{}, &NotFoundError{Entity: "noc", ID: id}
	}
	return *noc, nil
}

// =============================================================================
// ALERTS
// =============================================================================

func (s *Service) ListAlerts(ctx context.Context, params ListParams) (Paginated[Alert], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[Alert]{}, err
	}
	var out Paginated[Alert]
	s.store.view(func(d *Data) {
		out = List(d.Alerts, params, "message")
	})
	return out, nil
}

// MarkAlertRead flips an alert unread->read. Already-read alerts stay
// read.
func (s *Service) MarkAlertRead(ctx context.Context, id string) (Alert, error) {
	var updated Alert
	err := s.store.update(ctx, func(d *Data) error {
		alert := findAlert(d, id)
		if alert == nil {
			return &NotFoundError{Entity: "alert", ID: id}
		}
		if alert.Status != AlertRead {
			alert.Status = AlertRead
			alert.UpdatedAt = s.now()
		}
		updated = *alert
		return nil
	})
	return updated, err
}

// =============================================================================
// STAFF
// =============================================================================

type CreateStaffInput struct {
	Email       string
	DisplayName string
	Role        Role
	Permissions []string
	Password    string
}

type StaffPatch struct {
	DisplayName *string
	Role        *Role
	Permissions *[]string
	Status      *StaffStatus
	Password    *string
}

func (s *Service) ListStaff(ctx context.Context, params ListParams) (Paginated[Staff], error) {
	if err := s.inject(ctx); err != nil {
		return Paginated[Staff]{}, err
	}
	var out Paginated[Staff]
	s.store.view(func(d *Data) {
		out = List(d.Users, params, "displayName", "email")
	})
	return out, nil
}

// CreateStaff adds a console account. Email must be unique; the password
// is stored only as a bcrypt hash.
func (s *Service) CreateStaff(ctx context.Context, in CreateStaffInput) (Staff, error) {
	if err := s.inject(ctx); err != nil {
		return Staff{}, err
	}

	email := strings.ToLower(in.Email)
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Staff{}, err
	}

	var created Staff
	err = s.store.update(ctx, func(d *Data) error {
		for i := range d.Users {
			if strings.EqualFold(d.Users[i].Email, email) {
				return &PreconditionError{Reason: "a user with this email already exists"}
			}
		}

		now := s.now()
		created = Staff{
			ID:           s.newID(),
			Email:        email,
			DisplayName:  in.DisplayName,
			Role:         in.Role,
			Permissions:  in.Permissions,
			Status:       StaffActive,
			PasswordHash: string(hash),
			LastLogin:    now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		d.Users = append([]Staff{created}, d.Users...)
		return nil
	})
	return created, err
}

func (s *Service) UpdateStaff(ctx context.Context, id string, patch StaffPatch) (Staff, error) {
	var updated Staff
	err := s.store.update(ctx, func(d *Data) error {
		user := findStaff(d, id)
		if user == nil {
			return &NotFoundError{Entity: "user", ID: id}
		}
		applyString(&user.DisplayName, patch.DisplayName)
		if patch.Role != nil {
			user.Role = *patch.Role
		}
		if patch.Permissions != nil {
			user.Permissions = *patch.Permissions
		}
		if patch.Status != nil {
			user.Status = *patch.Status
		}
		if patch.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user.PasswordHash = string(hash)
		}
		user.UpdatedAt = s.now()
		updated = *user
		return nil
	})
	return updated, err
}

func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	return s.store.update(ctx, func(d *Data) error {
		if findStaff(d, id) == nil {
			return &NotFoundError{Entity: "user", ID: id}
		}
		kept := d.Users[:0]
		for _, u := range d.Users {
			if u.ID != id {
				kept = append(kept, u)
			}
		}
		d.Users = kept
		return nil
	})
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	if err := s.inject(ctx); err != nil {
		return Settings{}, err
	}
	var out Settings
	s.store.view(func(d *Data) { out = d.Settings })
	return out, nil
}

// UpdateSettings replaces the singleton wholesale; the handler layer is
// responsible for merging partial edits into the current value first.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	var out Settings
	err := s.store.update(ctx, func(d *Data) error {
		if settings.CompanyName == "" {
			return &PreconditionError{Reason: "company name is required"}
		}
		if settings.NocTemplate == "" {
			settings.NocTemplate = d.Settings.NocTemplate
		}
		d.Settings = settings
		out = settings
		return nil
	})
	return out, err
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Counters is the dashboard summary.
type Counters struct {
	EarningsToday     decimal.Decimal `json:"earningsToday"`
	VehiclesAvailable int             `json:"vehiclesAvailable"`
	TotalVehicles     int             `json:"totalVehicles"`
	OngoingRentals    int             `json:"ongoingRentals"`
	OverdueRentals    int             `json:"overdueRentals"`
	UnreadAlerts      int             `json:"unreadAlerts"`
}

func (s *Service) GetCounters(ctx context.Context) (Counters, error) {
	if err := s.inject(ctx); err != nil {
		return Counters{}, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	out := Counters{EarningsToday: decimal.Zero}
	s.store.view(func(d *Data) {
		for _, p := range d.Payments {
			if !p.TransactionDate.Before(startOfDay) {
				out.EarningsToday = out.EarningsToday.Add(p.Amount)
			}
		}
		out.TotalVehicles = len(d.Vehicles)
		for _, v := range d.Vehicles {
			if v.Available {
				out.VehiclesAvailable++
			}
		}
		for _, r := range d.Rentals {
			switch r.Status {
			case RentalOngoing:
				out.OngoingRentals++
			case RentalOverdue:
				out.OverdueRentals++
			}
		}
		for _, a := range d.Alerts {
			if a.Status == AlertUnread {
				out.UnreadAlerts++
			}
		}
	})
	return out, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
