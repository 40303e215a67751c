/*
handlers.go - HTTP API handlers for the rental console

PURPOSE:
  Exposes the rental ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Riders:
    GET    /api/riders                 List (q, filters, paging)
    POST   /api/riders                 Create
    GET    /api/riders/{id}            Get
    PUT    /api/riders/{id}            Update
    DELETE /api/riders/{id}            Delete

  Vehicles:
    GET    /api/vehicles               List
    GET    /api/vehicles/available     Vehicles in the pool
    POST   /api/vehicles               Create
    PUT    /api/vehicles/{id}          Update
    POST   /api/vehicles/{id}/availability  Manual pool toggle
    DELETE /api/vehicles/{id}          Delete (guarded)

  Rentals / payments:
    GET/POST /api/rentals, POST /api/rentals/{id}/return|cancel
    GET/POST /api/payments

  Returns / NOC:
    GET/POST /api/returns, PUT /api/returns/{id}
    POST /api/returns/{id}/settle, POST /api/returns/{id}/noc
    GET /api/nocs

  Batteries:
    GET/POST /api/batteries, /api/battery-swaps, /api/battery-rentals
    POST /api/battery-rentals/{id}/return|payments

  Alerts, staff, settings, dashboard, admin:
    GET /api/alerts, POST /api/alerts/{id}/read
    GET/POST/PUT/DELETE /api/staff
    GET/PUT /api/settings
    GET /api/dashboard/counters
    POST /api/admin/{sweep,reset,reseed}, GET /api/admin/dump

ERROR HANDLING:
  Domain errors map to HTTP status by classification:
  - 404: unknown entity id
  - 409: asset unavailable / in use
  - 422: business rule violation
  - 503: injected transient failure
  - 400: malformed request body
  - 500: everything else

SECURITY NOTE:
  No authentication middleware. The console is expected to sit behind a
  private network or reverse-proxy auth.

SEE ALSO:
  - dto.go: Request/response data structures and query parsing
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/zapgo/rental-engine/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
}

// NewHandler creates a new handler backed by the given service.
func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// RIDER HANDLERS
// =============================================================================

func (h *Handler) ListRiders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListRiders(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list riders", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRider(w http.ResponseWriter, r *http.Request) {
	rider, err := h.Service.GetRider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get rider", err)
		return
	}
	writeJSON(w, http.StatusOK, rider)
}

func (h *Handler) CreateRider(w http.ResponseWriter, r *http.Request) {
	var req RiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FullName == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "fullName and phone are required", nil)
		return
	}

	in := ledger.CreateRiderInput{
		FullName:           req.FullName,
		Phone:              req.Phone,
		Email:              req.Email,
		City:               req.City,
		Address:            req.Address,
		IDProofType:        req.IDProofType,
		IDProofNumber:      req.IDProofNumber,
		DocumentExpiryDate: parseDate(req.DocumentExpiryDate),
		PhotoURL:           req.PhotoURL,
	}
	if req.Status != nil {
		in.Status = ledger.RiderStatus(*req.Status)
	}
	rider, err := h.Service.CreateRider(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create rider", err)
		return
	}
	writeJSON(w, http.StatusCreated, rider)
}

func (h *Handler) UpdateRider(w http.ResponseWriter, r *http.Request) {
	var req RiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.RiderPatch{}
	if req.FullName != "" {
		patch.FullName = &req.FullName
	}
	if req.Phone != "" {
		patch.Phone = &req.Phone
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if req.City != "" {
		patch.City = &req.City
	}
	if req.Address != "" {
		patch.Address = &req.Address
	}
	if req.IDProofType != "" {
		patch.IDProofType = &req.IDProofType
	}
	if req.IDProofNumber != "" {
		patch.IDProofNumber = &req.IDProofNumber
	}
	if d := parseDate(req.DocumentExpiryDate); !d.IsZero() {
		patch.DocumentExpiryDate = &d
	}
	if req.PhotoURL != "" {
		patch.PhotoURL = &req.PhotoURL
	}
	if req.Status != nil {
		status := ledger.RiderStatus(*req.Status)
		patch.Status = &status
	}

	rider, err := h.Service.UpdateRider(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, "Failed to update rider", err)
		return
	}
	writeJSON(w, http.StatusOK, rider)
}

func (h *Handler) DeleteRider(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteRider(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete rider", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListVehicles(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list vehicles", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListAvailableVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Service.ListAvailableVehicles(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list available vehicles", err)
		return
	}
	if vehicles == nil {
		vehicles = []ledger.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.Service.GetVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.RegistrationNumber == "" {
		writeError(w, http.StatusBadRequest, "code and registrationNumber are required", nil)
		return
	}

	vehicle, err := h.Service.CreateVehicle(r.Context(), ledger.CreateVehicleInput{
		Code:               req.Code,
		Make:               req.Make,
		Model:              req.Model,
		Color:              req.Color,
		RegistrationNumber: req.RegistrationNumber,
		BatteryHealth:      req.BatteryHealth,
		LastServiceDate:    parseDate(req.LastServiceDate),
	})
	if err != nil {
		writeDomainError(w, "Failed to create vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}

func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.VehiclePatch{}
	if req.Code != "" {
		patch.Code = &req.Code
	}
	if req.Make != "" {
		patch.Make = &req.Make
	}
	if req.Model != "" {
		patch.Model = &req.Model
	}
	if req.Color != "" {
		patch.Color = &req.Color
	}
	if req.RegistrationNumber != "" {
		patch.RegistrationNumber = &req.RegistrationNumber
	}
	if req.BatteryHealth > 0 {
		patch.BatteryHealth = &req.BatteryHealth
	}
	if d := parseDate(req.LastServiceDate); !d.IsZero() {
		patch.LastServiceDate = &d
	}

	vehicle, err := h.Service.UpdateVehicle(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, "Failed to update vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) SetVehicleAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	vehicle, err := h.Service.SetVehicleAvailability(r.Context(), chi.URLParam(r, "id"), req.Available)
	if err != nil {
		writeDomainError(w, "Failed to change vehicle availability", err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteVehicle(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// =============================================================================
// RENTAL HANDLERS
// =============================================================================

func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListRentals(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list rentals", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	rental, err := h.Service.GetRental(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get rental", err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	var req CreateRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RiderID == "" || req.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "riderId and vehicleId are required", nil)
		return
	}
	start := parseDate(req.StartDate)
	expected := parseDate(req.ExpectedReturnDate)
	if start.IsZero() || expected.IsZero() || !expected.After(start) {
		writeError(w, http.StatusBadRequest, "expectedReturnDate must be after startDate", nil)
		return
	}

	payable := decimal.Zero
	if req.PayableTotal != nil {
		payable = *req.PayableTotal
	} else {
		// Derive from the configured plan rates.
		settings, err := h.Service.GetSettings(r.Context())
		if err != nil {
			writeDomainError(w, "Failed to load settings", err)
			return
		}
		days := int(expected.Sub(start).Hours() / 24)
		if days < 1 {
			days = 1
		}
		if ledger.Plan(req.Plan) == ledger.PlanWeekly {
			payable = settings.WeeklyRateDefault.Mul(decimal.NewFromInt(int64((days + 6) / 7)))
		} else {
			payable = settings.DailyRateDefault.Mul(decimal.NewFromInt(int64(days)))
		}
	}

	rental, err := h.Service.CreateRental(r.Context(), ledger.CreateRentalInput{
		RiderID:            req.RiderID,
		VehicleID:          req.VehicleID,
		Plan:               ledger.Plan(req.Plan),
		StartDate:          start,
		ExpectedReturnDate: expected,
		PayableTotal:       payable,
	})
	if err != nil {
		writeDomainError(w, "Failed to create rental", err)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (h *Handler) ReturnRental(w http.ResponseWriter, r *http.Request) {
	rental, err := h.Service.ReturnRental(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to return rental", err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (h *Handler) CancelRental(w http.ResponseWriter, r *http.Request) {
	rental, err := h.Service.CancelRental(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to cancel rental", err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListPayments(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.Service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RentalID == "" || req.RiderID == "" {
		writeError(w, http.StatusBadRequest, "rentalId and riderId are required", nil)
		return
	}

	payment, err := h.Service.ApplyPayment(r.Context(), ledger.CreatePaymentInput{
		RentalID:        req.RentalID,
		RiderID:         req.RiderID,
		Amount:          req.Amount,
		Method:          ledger.PayMethod(req.Method),
		TxnRef:          req.TxnRef,
		TransactionDate: parseDate(req.TransactionDate),
	})
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// =============================================================================
// RETURN INSPECTION / NOC HANDLERS
// =============================================================================

func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListReturnInspections(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list return inspections", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetReturn(w http.ResponseWriter, r *http.Request) {
	insp, err := h.Service.GetReturnInspection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get return inspection", err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// inspectionInput resolves the optional fields of an InspectionRequest:
// tax falls back to settings, late fee to the computed default.
func (h *Handler) inspectionInput(r *http.Request, req InspectionRequest) (ledger.InspectionInput, error) {
	in := ledger.InspectionInput{
		RentalID:            req.RentalID,
		OdometerEnd:         req.OdometerEnd,
		ChargePercent:       req.ChargePercent,
		DamageNotes:         req.DamageNotes,
		AccessoriesReturned: req.AccessoriesReturned,
		IsBatteryMissing:    req.IsBatteryMissing,
		MissingItemsCharge:  req.MissingItemsCharge,
		CleaningFee:         req.CleaningFee,
		DamageFee:           req.DamageFee,
		OtherAdjustments:    req.OtherAdjustments,
		DepositHeld:         req.DepositHeld,
		Remarks:             req.Remarks,
	}

	settings, err := h.Service.GetSettings(r.Context())
	if err != nil {
		return in, err
	}
	if req.TaxPercent != nil {
		in.TaxPercent = *req.TaxPercent
	} else {
		in.TaxPercent = settings.TaxPercentDefault
	}

	if req.LateDays != nil && req.LateFee != nil {
		in.LateDays = *req.LateDays
		in.LateFee = *req.LateFee
		return in, nil
	}
	rental, err := h.Service.GetRental(r.Context(), req.RentalID)
	if err != nil {
		return in, err
	}
	asOf := rental.ExpectedReturnDate
	if rental.ActualReturnDate != nil {
		asOf = *rental.ActualReturnDate
	}
	in.LateDays, in.LateFee = ledger.LateFee(rental.Rental, settings, asOf)
	if req.LateDays != nil {
		in.LateDays = *req.LateDays
	}
	if req.LateFee != nil {
		in.LateFee = *req.LateFee
	}
	return in, nil
}

func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req InspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RentalID == "" {
		writeError(w, http.StatusBadRequest, "rentalId is required", nil)
		return
	}

	in, err := h.inspectionInput(r, req)
	if err != nil {
		writeDomainError(w, "Failed to prepare inspection", err)
		return
	}
	insp, err := h.Service.CreateReturnInspection(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create return inspection", err)
		return
	}
	writeJSON(w, http.StatusCreated, insp)
}

func (h *Handler) UpdateReturn(w http.ResponseWriter, r *http.Request) {
	var req InspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := chi.URLParam(r, "id")
	if req.RentalID == "" {
		existing, err := h.Service.GetReturnInspection(r.Context(), id)
		if err != nil {
			writeDomainError(w, "Failed to get return inspection", err)
			return
		}
		req.RentalID = existing.RentalID
	}

	in, err := h.inspectionInput(r, req)
	if err != nil {
		writeDomainError(w, "Failed to prepare inspection", err)
		return
	}
	insp, err := h.Service.UpdateReturnInspection(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, "Failed to update return inspection", err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *Handler) SettleReturn(w http.ResponseWriter, r *http.Request) {
	insp, err := h.Service.SettleReturn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to settle return", err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *Handler) GenerateNoc(w http.ResponseWriter, r *http.Request) {
	noc, err := h.Service.GenerateNoc(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to generate NOC", err)
		return
	}
	writeJSON(w, http.StatusCreated, noc)
}

func (h *Handler) ListNocs(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListNocs(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list NOCs", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetNoc(w http.ResponseWriter, r *http.Request) {
	noc, err := h.Service.GetNoc(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get NOC", err)
		return
	}
	writeJSON(w, http.StatusOK, noc)
}

// =============================================================================
// BATTERY HANDLERS
// =============================================================================

func (h *Handler) ListBatteries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListBatteryPacks(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list battery packs", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetBattery(w http.ResponseWriter, r *http.Request) {
	pack, err := h.Service.GetBatteryPack(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get battery pack", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

func (h *Handler) CreateBattery(w http.ResponseWriter, r *http.Request) {
	var req BatteryPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SerialNumber == "" {
		writeError(w, http.StatusBadRequest, "serialNumber is required", nil)
		return
	}

	pack, err := h.Service.CreateBatteryPack(r.Context(), ledger.CreateBatteryPackInput{
		SerialNumber:  req.SerialNumber,
		Type:          req.Type,
		CapacityWh:    req.CapacityWh,
		HealthPercent: req.HealthPercent,
		ChargePercent: req.ChargePercent,
		LastServiceAt: parseDate(req.LastServiceAt),
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, "Failed to create battery pack", err)
		return
	}
	writeJSON(w, http.StatusCreated, pack)
}

func (h *Handler) UpdateBattery(w http.ResponseWriter, r *http.Request) {
	var req BatteryPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.BatteryPackPatch{}
	if req.SerialNumber != "" {
		patch.SerialNumber = &req.SerialNumber
	}
	if req.Type != "" {
		patch.Type = &req.Type
	}
	if req.CapacityWh > 0 {
		patch.CapacityWh = &req.CapacityWh
	}
	if req.HealthPercent > 0 {
		patch.HealthPercent = &req.HealthPercent
	}
	if req.ChargePercent > 0 {
		patch.ChargePercent = &req.ChargePercent
	}
	if req.Status != nil {
		status := ledger.BatteryStatus(*req.Status)
		patch.Status = &status
	}
	if d := parseDate(req.LastServiceAt); !d.IsZero() {
		patch.LastServiceAt = &d
	}
	if req.Notes != "" {
		patch.Notes = &req.Notes
	}

	pack, err := h.Service.UpdateBatteryPack(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, "Failed to update battery pack", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

func (h *Handler) DeleteBattery(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteBatteryPack(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete battery pack", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) ListBatterySwaps(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListBatterySwaps(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list battery swaps", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateBatterySwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	swap, err := h.Service.CreateBatterySwap(r.Context(), ledger.CreateBatterySwapInput{
		OutBatteryID:   req.OutBatteryID,
		InBatteryID:    req.InBatteryID,
		VehicleID:      req.VehicleID,
		RiderID:        req.RiderID,
		RentalID:       req.RentalID,
		Location:       req.Location,
		OperatorUserID: req.OperatorUserID,
		InSoC:          req.InSoC,
		OutSoC:         req.OutSoC,
		Notes:          req.Notes,
	})
	if err != nil {
		writeDomainError(w, "Failed to record battery swap", err)
		return
	}
	writeJSON(w, http.StatusCreated, swap)
}

func (h *Handler) ListBatteryRentals(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListBatteryRentals(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list battery rentals", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateBatteryRental(w http.ResponseWriter, r *http.Request) {
	var req BatteryRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RiderID == "" || req.BatteryID == "" {
		writeError(w, http.StatusBadRequest, "riderId and batteryId are required", nil)
		return
	}

	in := ledger.CreateBatteryRentalInput{
		RiderID:      req.RiderID,
		RentalID:     req.RentalID,
		BatteryID:    req.BatteryID,
		Plan:         req.Plan,
		RatePerDay:   req.RatePerDay,
		RatePerWeek:  req.RatePerWeek,
		PerSwapFee:   req.PerSwapFee,
		StartDate:    parseDate(req.StartDate),
		PayableTotal: req.PayableTotal,
		Notes:        req.Notes,
	}
	if d := parseDate(req.ExpectedReturnDate); !d.IsZero() {
		in.ExpectedReturnDate = &d
	}
	br, err := h.Service.CreateBatteryRental(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create battery rental", err)
		return
	}
	writeJSON(w, http.StatusCreated, br)
}

func (h *Handler) ReturnBatteryRental(w http.ResponseWriter, r *http.Request) {
	br, err := h.Service.ReturnBatteryRental(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to return battery rental", err)
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (h *Handler) CreateBatteryRentalPayment(w http.ResponseWriter, r *http.Request) {
	var req BatteryPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	br, err := h.Service.ApplyBatteryRentalPayment(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to record battery rental payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, br)
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListAlerts(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	alert, err := h.Service.MarkAlertRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to mark alert read", err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListStaff(r.Context(), parseListParams(r))
	if err != nil {
		writeDomainError(w, "Failed to list staff", err)
		return
	}
	dtos := make([]StaffDTO, len(out.Rows))
	for i, s := range out.Rows {
		dtos[i] = toStaffDTO(s)
	}
	writeJSON(w, http.StatusOK, ledger.Paginated[StaffDTO]{
		Rows: dtos, Total: out.Total, Page: out.Page, PageSize: out.PageSize,
	})
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required", nil)
		return
	}

	role := ledger.Role(req.Role)
	if role == "" {
		role = ledger.RoleStaff
	}
	staff, err := h.Service.CreateStaff(r.Context(), ledger.CreateStaffInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        role,
		Permissions: req.Permissions,
		Password:    req.Password,
	})
	if err != nil {
		writeDomainError(w, "Failed to create staff user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffDTO(staff))
}

func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.StaffPatch{}
	if req.DisplayName != "" {
		patch.DisplayName = &req.DisplayName
	}
	if req.Role != "" {
		role := ledger.Role(req.Role)
		patch.Role = &role
	}
	if req.Permissions != nil {
		patch.Permissions = &req.Permissions
	}
	if req.Status != nil {
		status := ledger.StaffStatus(*req.Status)
		patch.Status = &status
	}
	if req.Password != "" {
		patch.Password = &req.Password
	}

	staff, err := h.Service.UpdateStaff(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, "Failed to update staff user", err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffDTO(staff))
}

func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteStaff(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete staff user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// =============================================================================
// SETTINGS / DASHBOARD
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.GetSettings(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	// Partial edits merge over the current value.
	settings, err := h.Service.GetSettings(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get settings", err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings, err = h.Service.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeDomainError(w, "Failed to update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) GetCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.Service.GetCounters(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get counters", err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.RunDailySweep(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to run daily sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Reset(r.Context()); err != nil {
		writeDomainError(w, "Failed to reset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (h *Handler) Reseed(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Reseed(r.Context()); err != nil {
		writeDomainError(w, "Failed to reseed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reseeded": true})
}

func (h *Handler) Dump(w http.ResponseWriter, r *http.Request) {
	payload, err := h.Service.Store().Dump()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to dump ledger", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a ledger error to its HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrPreconditionFailed):
		return http.StatusUnprocessableEntity
	case ledger.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
