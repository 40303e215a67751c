/*
dto.go - Request/response types and query-string parsing

PURPOSE:
  Defines the JSON structures for API communication plus the list-query
  wire format. DTOs decouple the internal model from the API contract;
  the one place this matters here is Staff, whose credential hash must
  never appear in a response.

LIST QUERIES:
  ?q=...&page=N&pageSize=N&sortBy=field&sortDir=asc|desc
  plus filters as extra query params. A bare param is an equality match;
  operator suffixes select the others:
    status=ongoing        -> status == "ongoing"
    startDate_gte=...     -> startDate >= value
    balanceDue_ne=0       -> balanceDue != 0
    status_in=a,b         -> status in {a, b}

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/query.go: ListParams/Filter semantics
*/
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zapgo/rental-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type RiderRequest struct {
	FullName           string  `json:"fullName"`
	Phone              string  `json:"phone"`
	Email              string  `json:"email"`
	City               string  `json:"city"`
	Address            string  `json:"address"`
	IDProofType        string  `json:"idProofType"`
	IDProofNumber      string  `json:"idProofNumber"`
	DocumentExpiryDate string  `json:"documentExpiryDate"`
	PhotoURL           string  `json:"photoUrl"`
	Status             *string `json:"status,omitempty"`
}

type VehicleRequest struct {
	Code               string `json:"code"`
	Make               string `json:"make"`
	Model              string `json:"model"`
	Color              string `json:"color"`
	RegistrationNumber string `json:"registrationNumber"`
	BatteryHealth      int    `json:"batteryHealth"`
	LastServiceDate    string `json:"lastServiceDate"`
}

type AvailabilityRequest struct {
	Available bool `json:"available"`
}

type BatteryPackRequest struct {
	SerialNumber  string  `json:"serialNumber"`
	Type          string  `json:"type"`
	CapacityWh    int     `json:"capacityWh"`
	HealthPercent int     `json:"healthPercent"`
	ChargePercent int     `json:"chargePercent"`
	Status        *string `json:"status,omitempty"`
	LastServiceAt string  `json:"lastServiceAt"`
	Notes         string  `json:"notes"`
}

type CreateRentalRequest struct {
	RiderID            string           `json:"riderId"`
	VehicleID          string           `json:"vehicleId"`
	Plan               string           `json:"plan"`
	StartDate          string           `json:"startDate"`
	ExpectedReturnDate string           `json:"expectedReturnDate"`
	PayableTotal       *decimal.Decimal `json:"payableTotal,omitempty"`
}

type CreatePaymentRequest struct {
	RentalID        string          `json:"rentalId"`
	RiderID         string          `json:"riderId"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	TxnRef          string          `json:"txnRef"`
	TransactionDate string          `json:"transactionDate"`
}

type InspectionRequest struct {
	RentalID            string              `json:"rentalId"`
	OdometerEnd         int                 `json:"odometerEnd"`
	ChargePercent       int                 `json:"chargePercent"`
	DamageNotes         string              `json:"damageNotes"`
	AccessoriesReturned *ledger.Accessories `json:"accessoriesReturned"`
	IsBatteryMissing    bool                `json:"isBatteryMissing"`
	MissingItemsCharge  decimal.Decimal     `json:"missingItemsCharge"`
	LateDays            *int                `json:"lateDays,omitempty"`
	LateFee             *decimal.Decimal    `json:"lateFee,omitempty"`
	CleaningFee         decimal.Decimal     `json:"cleaningFee"`
	DamageFee           decimal.Decimal     `json:"damageFee"`
	OtherAdjustments    decimal.Decimal     `json:"otherAdjustments"`
	TaxPercent          *decimal.Decimal    `json:"taxPercent,omitempty"`
	DepositHeld         decimal.Decimal     `json:"depositHeld"`
	Remarks             string              `json:"remarks"`
}

type SwapRequest struct {
	OutBatteryID   string `json:"outBatteryId"`
	InBatteryID    string `json:"inBatteryId"`
	VehicleID      string `json:"vehicleId"`
	RiderID        string `json:"riderId"`
	RentalID       string `json:"rentalId"`
	Location       string `json:"location"`
	OperatorUserID string `json:"operatorUserId"`
	InSoC          int    `json:"inSoC"`
	OutSoC         int    `json:"outSoC"`
	Notes          string `json:"notes"`
}

type BatteryRentalRequest struct {
	RiderID            string          `json:"riderId"`
	RentalID           string          `json:"rentalId"`
	BatteryID          string          `json:"batteryId"`
	Plan               string          `json:"plan"`
	RatePerDay         decimal.Decimal `json:"ratePerDay"`
	RatePerWeek        decimal.Decimal `json:"ratePerWeek"`
	PerSwapFee         decimal.Decimal `json:"perSwapFee"`
	StartDate          string          `json:"startDate"`
	ExpectedReturnDate string          `json:"expectedReturnDate"`
	PayableTotal       decimal.Decimal `json:"payableTotal"`
	Notes              string          `json:"notes"`
}

type BatteryPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type StaffRequest struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	Status      *string   `json:"status,omitempty"`
	Password    string    `json:"password"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// StaffDTO is Staff without the credential hash.
type StaffDTO struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	Status      string   `json:"status"`
	LastLogin   string   `json:"lastLogin"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func toStaffDTO(s ledger.Staff) StaffDTO {
	return StaffDTO{
		ID:          s.ID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Role:        string(s.Role),
		Permissions: s.Permissions,
		Status:      string(s.Status),
		LastLogin:   s.LastLogin.Format(time.RFC3339),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// QUERY PARSING
// =============================================================================

// reservedParams are list-query keys that are not filters.
var reservedParams = map[string]bool{
	"q": true, "page": true, "pageSize": true, "sortBy": true, "sortDir": true,
}

// parseListParams converts the query string into ledger.ListParams,
// translating operator-suffixed params into typed filters.
func parseListParams(r *http.Request) ledger.ListParams {
	q := r.URL.Query()

	params := ledger.ListParams{
		Q:      q.Get("q"),
		SortBy: q.Get("sortBy"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		params.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		params.PageSize = v
	}
	if dir := q.Get("sortDir"); dir == "asc" {
		params.SortDir = ledger.SortAsc
	} else if dir == "desc" {
		params.SortDir = ledger.SortDesc
	}

	for key, values := range q {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		field, op := splitFilterKey(key)
		value := values[0]
		if op == ledger.OpIn {
			parts := strings.Split(value, ",")
			in := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					in = append(in, p)
				}
			}
			params.Filters = append(params.Filters, ledger.Filter{Field: field, Op: op, Value: in})
			continue
		}
		params.Filters = append(params.Filters, ledger.Filter{Field: field, Op: op, Value: value})
	}
	return params
}

func splitFilterKey(key string) (string, ledger.FilterOp) {
	switch {
	case strings.HasSuffix(key, "_gte"):
		return strings.TrimSuffix(key, "_gte"), ledger.OpGte
	case strings.HasSuffix(key, "_lte"):
		return strings.TrimSuffix(key, "_lte"), ledger.OpLte
	case strings.HasSuffix(key, "_ne"):
		return strings.TrimSuffix(key, "_ne"), ledger.OpNe
	case strings.HasSuffix(key, "_in"):
		return strings.TrimSuffix(key, "_in"), ledger.OpIn
	default:
		return key, ledger.OpEq
	}
}

// parseDate accepts both date-only and RFC3339 timestamps; the zero time
// signals "not provided" to the caller.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
