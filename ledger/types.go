/*
Package ledger implements the rental/asset lifecycle ledger for an
electric-vehicle and swappable-battery rental fleet.

PURPOSE:
  This package is the single source of truth for riders, vehicles, battery
  packs, rentals, payments, return inspections, alerts, NOCs, staff and
  settings, together with the mutation rules that keep them consistent:
  vehicle and battery availability, rental status transitions, payment
  application, return-inspection fee computation, settlement, and the
  daily overdue/alert sweep.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entity structs: Rider, Vehicle, BatteryPack, Rental, Payment,
    ReturnInspection, BatterySwap, BatteryRental, Alert, Noc, Staff
  - Settings: process-wide billing configuration singleton
  - Status enums with one-way or guarded transitions

DESIGN PRINCIPLES:
  1. Precision: uses decimal.Decimal for every monetary field
  2. Consistency: cross-entity mutations update both sides of a
     relationship in the same operation (Rental<->Vehicle, Swap<->Battery)
  3. Immutability: payments, swaps and NOCs are never modified once created
  4. Denormalized joins are recomputed on read, never stored

SEE ALSO:
  - store.go:     collection holder + snapshot persistence
  - lifecycle.go: rental/asset state machine
  - billing.go:   payments, inspections, settlement, NOC
  - sweep.go:     daily overdue detection and alerts
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RIDER
// =============================================================================

type RiderStatus string

const (
	RiderActive  RiderStatus = "active"
	RiderBlocked RiderStatus = "blocked"
)

// KYCDocument is an uploaded identity document reference.
type KYCDocument struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Rider is a registered customer. RentalsCount and TotalSpent are running
// totals owned by the lifecycle/billing engines; forms never write them.
type Rider struct {
	ID                 string          `json:"id"`
	FullName           string          `json:"fullName"`
	Phone              string          `json:"phone"`
	Email              string          `json:"email,omitempty"`
	City               string          `json:"city,omitempty"`
	Address            string          `json:"address,omitempty"`
	IDProofType        string          `json:"idProofType"` // Aadhaar | DL | Passport
	IDProofNumber      string          `json:"idProofNumber"`
	DocumentExpiryDate time.Time       `json:"documentExpiryDate"`
	PhotoURL           string          `json:"photoUrl,omitempty"`
	Status             RiderStatus     `json:"status"`
	RentalsCount       int             `json:"rentalsCount"`
	TotalSpent         decimal.Decimal `json:"totalSpent"`
	KYCDocuments       []KYCDocument   `json:"kycDocuments,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// =============================================================================
// VEHICLE
// =============================================================================

// Vehicle is a physical asset. Invariant: Available is false exactly when
// CurrentRentalID points at a live (ongoing/overdue) rental.
type Vehicle struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	Make               string    `json:"make"`
	Model              string    `json:"model"`
	Color              string    `json:"color"`
	RegistrationNumber string    `json:"registrationNumber"`
	BatteryHealth      int       `json:"batteryHealth"` // 0-100
	LastServiceDate    time.Time `json:"lastServiceDate"`
	Available          bool      `json:"available"`
	IsServiceDue       bool      `json:"isServiceDue"`
	CurrentRentalID    string    `json:"currentRentalId,omitempty"`
	AssignedBatteryID  string    `json:"assignedBatteryId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// =============================================================================
// RENTAL
// =============================================================================

type RentalStatus string

const (
	RentalOngoing   RentalStatus = "ongoing"
	RentalOverdue   RentalStatus = "overdue"
	RentalCompleted RentalStatus = "completed"
	RentalCancelled RentalStatus = "cancelled"
)

type Plan string

const (
	PlanDaily  Plan = "daily"
	PlanWeekly Plan = "weekly"
)

// Rental links one Rider and one Vehicle. BalanceDue always equals
// max(0, PayableTotal-PaidTotal), except after settlement where it is
// overwritten by the inspection's FinalAmount.
type Rental struct {
	ID                 string          `json:"id"`
	RiderID            string          `json:"riderId"`
	VehicleID          string          `json:"vehicleId"`
	Plan               Plan            `json:"plan"`
	StartDate          time.Time       `json:"startDate"`
	ExpectedReturnDate time.Time       `json:"expectedReturnDate"`
	ActualReturnDate   *time.Time      `json:"actualReturnDate"`
	Status             RentalStatus    `json:"status"`
	PayableTotal       decimal.Decimal `json:"payableTotal"`
	PaidTotal          decimal.Decimal `json:"paidTotal"`
	BalanceDue         decimal.Decimal `json:"balanceDue"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Live reports whether the rental still holds its vehicle.
func (r Rental) Live() bool {
	return r.Status == RentalOngoing || r.Status == RentalOverdue
}

// =============================================================================
// PAYMENT
// =============================================================================

type PayMethod string

const (
	PayCash   PayMethod = "cash"
	PayUPI    PayMethod = "upi"
	PayCard   PayMethod = "card"
	PayBank   PayMethod = "bank"
	PayOnline PayMethod = "online"
)

// Payment is immutable once created. Applying one is the only way a
// rental's PaidTotal/BalanceDue change outside settlement.
type Payment struct {
	ID              string          `json:"id"`
	RentalID        string          `json:"rentalId"`
	RiderID         string          `json:"riderId"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PayMethod       `json:"method"`
	TxnRef          string          `json:"txnRef,omitempty"`
	TransactionDate time.Time       `json:"transactionDate"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// =============================================================================
// RETURN INSPECTION
// =============================================================================

// Accessories records which rental accessories came back.
type Accessories struct {
	Helmet      bool   `json:"helmet"`
	Charger     bool   `json:"charger"`
	PhoneHolder bool   `json:"phoneHolder"`
	Others      string `json:"others,omitempty"`
}

// ReturnInspection accumulates fee line items for a rental return and
// derives the amounts the rider settles against. Settled and NocIssued
// only ever move false->true.
type ReturnInspection struct {
	ID                  string          `json:"id"`
	RentalID            string          `json:"rentalId"`
	RiderID             string          `json:"riderId"`
	VehicleID           string          `json:"vehicleId"`
	OdometerEnd         int             `json:"odometerEnd,omitempty"`
	ChargePercent       int             `json:"chargePercent,omitempty"`
	DamageNotes         string          `json:"damageNotes,omitempty"`
	AccessoriesReturned *Accessories    `json:"accessoriesReturned,omitempty"`
	IsBatteryMissing    bool            `json:"isBatteryMissing"`
	MissingItemsCharge  decimal.Decimal `json:"missingItemsCharge"`
	LateDays            int             `json:"lateDays"`
	LateFee             decimal.Decimal `json:"lateFee"`
	CleaningFee         decimal.Decimal `json:"cleaningFee"`
	DamageFee           decimal.Decimal `json:"damageFee"`
	OtherAdjustments    decimal.Decimal `json:"otherAdjustments"`
	TaxPercent          decimal.Decimal `json:"taxPercent"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxAmount           decimal.Decimal `json:"taxAmount"`
	TotalDue            decimal.Decimal `json:"totalDue"`
	DepositHeld         decimal.Decimal `json:"depositHeld"`
	DepositReturn       decimal.Decimal `json:"depositReturn"`
	FinalAmount         decimal.Decimal `json:"finalAmount"`
	Remarks             string          `json:"remarks,omitempty"`
	Settled             bool            `json:"settled"`
	SettledAt           *time.Time      `json:"settledAt,omitempty"`
	NocIssued           bool            `json:"nocIssued"`
	NocID               string          `json:"nocId,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// =============================================================================
// BATTERY PACK / SWAP / RENTAL
// =============================================================================

type BatteryStatus string

const (
	BatteryAvailable    BatteryStatus = "available"
	BatteryAssigned     BatteryStatus = "assigned"
	BatteryCharging     BatteryStatus = "charging"
	BatteryOutOfService BatteryStatus = "out_of_service"
	BatteryLost         BatteryStatus = "lost"
	BatteryServiceDue   BatteryStatus = "service_due"
)

// BatteryPack is a swappable battery. AssignedVehicleID is set exactly
// when Status is "assigned". CycleCount increments once per swap-in.
type BatteryPack struct {
	ID                string        `json:"id"`
	SerialNumber      string        `json:"serialNumber"`
	Type              string        `json:"type"` // OEM | Aftermarket
	CapacityWh        int           `json:"capacityWh"`
	HealthPercent     int           `json:"healthPercent"`
	ChargePercent     int           `json:"chargePercent"`
	CycleCount        int           `json:"cycleCount"`
	Status            BatteryStatus `json:"status"`
	AssignedVehicleID string        `json:"assignedVehicleId,omitempty"`
	LastSwapAt        *time.Time    `json:"lastSwapAt,omitempty"`
	LastServiceAt     time.Time     `json:"lastServiceAt"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// InPool reports whether the pack can be deleted or retired without
// breaking an active assignment.
func (b BatteryPack) InPool() bool {
	return b.Status == BatteryAvailable || b.Status == BatteryOutOfService || b.Status == BatteryLost
}

// BatterySwap is an immutable event pairing an outgoing and/or incoming
// pack for a vehicle. Creating one mutates the referenced packs.
type BatterySwap struct {
	ID             string     `json:"id"`
	OutBatteryID   string     `json:"outBatteryId,omitempty"`
	InBatteryID    string     `json:"inBatteryId,omitempty"`
	VehicleID      string     `json:"vehicleId,omitempty"`
	RiderID        string     `json:"riderId,omitempty"`
	RentalID       string     `json:"rentalId,omitempty"`
	SwapAt         time.Time  `json:"swapAt"`
	Location       string     `json:"location,omitempty"`
	OperatorUserID string     `json:"operatorUserId,omitempty"`
	InSoC          int        `json:"inSoC"`
	OutSoC         int        `json:"outSoC"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type BatteryRentalStatus string

const (
	BatteryRentalOngoing   BatteryRentalStatus = "ongoing"
	BatteryRentalReturned  BatteryRentalStatus = "returned"
	BatteryRentalOverdue   BatteryRentalStatus = "overdue"
	BatteryRentalCancelled BatteryRentalStatus = "cancelled"
)

// BatteryRental is the parallel lifecycle to Rental for a pack rented
// independently of a vehicle. Same balance invariant.
type BatteryRental struct {
	ID                 string              `json:"id"`
	RiderID            string              `json:"riderId"`
	RentalID           string              `json:"rentalId,omitempty"`
	BatteryID          string              `json:"batteryId"`
	Plan               string              `json:"plan"` // daily | weekly | per_swap
	RatePerDay         decimal.Decimal     `json:"ratePerDay"`
	RatePerWeek        decimal.Decimal     `json:"ratePerWeek"`
	PerSwapFee         decimal.Decimal     `json:"perSwapFee"`
	StartDate          time.Time           `json:"startDate"`
	ExpectedReturnDate *time.Time          `json:"expectedReturnDate,omitempty"`
	ActualReturnDate   *time.Time          `json:"actualReturnDate,omitempty"`
	Status             BatteryRentalStatus `json:"status"`
	PayableTotal       decimal.Decimal     `json:"payableTotal"`
	PaidTotal          decimal.Decimal     `json:"paidTotal"`
	BalanceDue         decimal.Decimal     `json:"balanceDue"`
	Notes              string              `json:"notes,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// =============================================================================
// ALERT / NOC / STAFF / SETTINGS
// =============================================================================

type AlertType string

const (
	AlertPaymentDue           AlertType = "Payment Due"
	AlertDocumentExpiry       AlertType = "Document Expiry"
	AlertOverdueRental        AlertType = "Overdue Rental"
	AlertReturnCompleted      AlertType = "Return Completed"
	AlertBatteryLowHealth     AlertType = "Battery Low Health"
	AlertBatteryLowCharge     AlertType = "Battery Low Charge"
	AlertBatteryRentalOverdue AlertType = "Battery Rental Overdue"
	AlertBatteryMissing       AlertType = "Battery Missing"
)

type AlertStatus string

const (
	AlertUnread AlertStatus = "unread"
	AlertRead   AlertStatus = "read"
)

// Alert is always system-generated; status only moves unread->read.
type Alert struct {
	ID        string      `json:"id"`
	Type      AlertType   `json:"type"`
	RelatedID string      `json:"relatedId"`
	Message   string      `json:"message"`
	DueDate   time.Time   `json:"dueDate"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Noc is a No-Objection Certificate, generated only after settlement.
// Immutable once created.
type Noc struct {
	ID                 string    `json:"id"`
	RentalID           string    `json:"rentalId"`
	ReturnInspectionID string    `json:"returnInspectionId"`
	Content            string    `json:"content"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

type StaffStatus string

const (
	StaffActive   StaffStatus = "active"
	StaffDisabled StaffStatus = "disabled"
)

// Staff is a console account. The ledger stores only the credential hash;
// authentication itself lives outside this package.
type Staff struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	DisplayName  string      `json:"displayName"`
	Role         Role        `json:"role"`
	Permissions  []string    `json:"permissions,omitempty"`
	Status       StaffStatus `json:"status"`
	PasswordHash string      `json:"passwordHash,omitempty"`
	LastLogin    time.Time   `json:"lastLogin"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Settings is the process-wide billing configuration, read by the billing
// engine and mutated only via UpdateSettings.
type Settings struct {
	CompanyName                string          `json:"companyName"`
	Currency                   string          `json:"currency"`
	GraceDays                  int             `json:"graceDays"`
	DailyRateDefault           decimal.Decimal `json:"dailyRateDefault"`
	WeeklyRateDefault          decimal.Decimal `json:"weeklyRateDefault"`
	LateFeeEnabled             bool            `json:"lateFeeEnabled"`
	LateFeePerDay              decimal.Decimal `json:"lateFeePerDay"`
	TaxPercentDefault          decimal.Decimal `json:"taxPercentDefault"`
	NocTemplate                string          `json:"nocTemplate"`
	BatteryHealthThresholdWarn int             `json:"batteryHealthThresholdWarn"`
	BatteryHealthThresholdCrit int             `json:"batteryHealthThresholdCrit"`
	BatteryChargeThresholdWarn int             `json:"batteryChargeThresholdWarn"`
	ContactAddress             string          `json:"contactAddress,omitempty"`
	ContactPhone               string          `json:"contactPhone,omitempty"`
	ContactEmail               string          `json:"contactEmail,omitempty"`
}

// DefaultNocTemplate is used when settings carry no template of their own.
const DefaultNocTemplate = `{{companyName}} hereby certifies that rental {{rentalId}} ` +
	`taken by {{riderName}} on vehicle {{vehicleCode}} has been returned and settled ` +
	`in full on {{date}} for a final amount of {{finalAmount}}. ` +
	`No objection remains against the rider.`

// DefaultSettings returns the configuration used on first run and to
// backfill snapshots that predate the settings object.
func DefaultSettings() Settings {
	return Settings{
		CompanyName:                "ZapGo Rentals Pvt. Ltd.",
		Currency:                   "INR",
		GraceDays:                  2,
		DailyRateDefault:           decimal.NewFromInt(1200),
		WeeklyRateDefault:          decimal.NewFromInt(7000),
		LateFeeEnabled:             true,
		LateFeePerDay:              decimal.NewFromInt(500),
		TaxPercentDefault:          decimal.NewFromInt(18),
		NocTemplate:                DefaultNocTemplate,
		BatteryHealthThresholdWarn: 70,
		BatteryHealthThresholdCrit: 50,
		BatteryChargeThresholdWarn: 20,
	}
}
