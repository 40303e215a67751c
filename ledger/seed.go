/*
seed.go - Synthetic dataset for first run and reseed

PURPOSE:
  Builds a believable fleet snapshot: riders in several Indian cities,
  vehicles in and out of the pool, battery packs across the full status
  range, rentals at every lifecycle stage, payments, battery rentals,
  swap events, and return inspections covering each settlement shape
  (clean return, damage, missing battery, overdue goodwill, settled with
  NOC, heavy damage against a deposit).

  Everything derived (balances, running totals, vehicle availability)
  is computed the same way the mutation paths compute it, so a freshly
  seeded ledger already satisfies every invariant. The seed sweep that
  follows (seeding=true) reclassifies the past-due rentals to overdue
  without raising alerts.
*/
package ledger

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	seedNames = []string{
		"Aarav Sharma", "Vihaan Patel", "Aditya Rao", "Sai Krishnan", "Arjun Mehta",
		"Reyansh Gupta", "Ishaan Nair", "Kabir Singh", "Rohan Iyer", "Dhruv Joshi",
		"Ananya Reddy", "Diya Kulkarni", "Saanvi Desai", "Myra Banerjee", "Aadhya Pillai",
		"Kiara Malhotra", "Navya Chauhan", "Riya Menon", "Tara Bhat", "Zoya Khan",
	}
	seedCities = []string{"Bengaluru", "Pune", "Hyderabad", "Chennai", "Mumbai"}
	seedMakes  = []struct {
		Make  string
		Model string
	}{
		{"Ather", "450X"}, {"Ola", "S1 Pro"}, {"TVS", "iQube"},
		{"Bajaj", "Chetak"}, {"Hero", "Vida V1"},
	}
)

// seed populates an empty Data in place. Deterministic: a fixed rng
// source keeps reseeds reproducible across runs.
func (s *Service) seed(d *Data) {
	rng := rand.New(rand.NewSource(20240117))
	now := s.now()

	daysAgo := func(n int) time.Time { return now.AddDate(0, 0, -n) }
	daysAhead := func(n int) time.Time { return now.AddDate(0, 0, n) }

	// --- riders ---------------------------------------------------------
	riders := make([]Rider, 0, len(seedNames))
	for i, name := range seedNames {
		created := daysAgo(300 - i*12)
		status := RiderActive
		if i == 7 || i == 15 {
			status = RiderBlocked
		}
		expiry := daysAhead(60 + rng.Intn(600))
		if i == 3 || i == 11 {
			// expiring within the warning window
			expiry = daysAhead(5 + rng.Intn(20))
		}
		riders = append(riders, Rider{
			ID:                 s.newID(),
			FullName:           name,
			Phone:              fmt.Sprintf("98%08d", 10000000+rng.Intn(89999999)),
			Email:              fmt.Sprintf("rider%02d@example.in", i+1),
			City:               seedCities[i%len(seedCities)],
			Address:            fmt.Sprintf("%d, %s Main Road", 10+rng.Intn(200), seedCities[i%len(seedCities)]),
			IDProofType:        []string{"Aadhaar", "DL", "Passport"}[i%3],
			IDProofNumber:      fmt.Sprintf("ID-%06d", 100000+rng.Intn(899999)),
			DocumentExpiryDate: expiry,
			Status:             status,
			TotalSpent:         decimal.Zero,
			KYCDocuments:       []KYCDocument{},
			CreatedAt:          created,
			UpdatedAt:          created,
		})
	}

	// --- vehicles -------------------------------------------------------
	vehicles := make([]Vehicle, 0, 10)
	for i := 0; i < 10; i++ {
		mk := seedMakes[i%len(seedMakes)]
		lastService := daysAgo(10 + rng.Intn(150))
		created := daysAgo(320 - i*10)
		vehicles = append(vehicles, Vehicle{
			ID:                 s.newID(),
			Code:               fmt.Sprintf("ZG-%03d", i+1),
			Make:               mk.Make,
			Model:              mk.Model,
			Color:              []string{"White", "Black", "Blue", "Red"}[i%4],
			RegistrationNumber: fmt.Sprintf("KA%02dEV%04d", 1+i%5, 1000+rng.Intn(8999)),
			BatteryHealth:      60 + rng.Intn(40),
			LastServiceDate:    lastService,
			Available:          true,
			IsServiceDue:       now.Sub(lastService) > serviceDueAfter,
			CreatedAt:          created,
			UpdatedAt:          created,
		})
	}

	// --- battery packs --------------------------------------------------
	packStatuses := []BatteryStatus{
		BatteryAvailable, BatteryAvailable, BatteryAvailable, BatteryCharging,
		BatteryAvailable, BatteryOutOfService, BatteryLost, BatteryAvailable,
	}
	packs := make([]BatteryPack, 0, len(packStatuses))
	for i, st := range packStatuses {
		created := daysAgo(250 - i*15)
		charge := 40 + rng.Intn(60)
		if i == 4 {
			charge = 12 // below the low-charge threshold
		}
		health := 75 + rng.Intn(25)
		if i == 7 {
			health = 58 // below the health warn threshold
		}
		packs = append(packs, BatteryPack{
			ID:            s.newID(),
			SerialNumber:  fmt.Sprintf("BP-%04d", 1001+i),
			Type:          []string{"OEM", "Aftermarket"}[i%2],
			CapacityWh:    2900 + 100*(i%3),
			HealthPercent: health,
			ChargePercent: charge,
			CycleCount:    rng.Intn(400),
			Status:        st,
			LastServiceAt: daysAgo(20 + rng.Intn(100)),
			CreatedAt:     created,
			UpdatedAt:     created,
		})
	}

	// --- staff ----------------------------------------------------------
	adminHash, _ := bcrypt.GenerateFromPassword([]byte("zapgo-admin"), bcrypt.MinCost)
	staffHash, _ := bcrypt.GenerateFromPassword([]byte("zapgo-staff"), bcrypt.MinCost)
	users := []Staff{
		{
			ID: s.newID(), Email: "admin@zapgo.in", DisplayName: "Admin",
			Role: RoleAdmin, Status: StaffActive, PasswordHash: string(adminHash),
			LastLogin: daysAgo(1), CreatedAt: daysAgo(365), UpdatedAt: daysAgo(1),
		},
		{
			ID: s.newID(), Email: "ops@zapgo.in", DisplayName: "Operations Desk",
			Role: RoleStaff, Status: StaffActive, PasswordHash: string(staffHash),
			Permissions: []string{"rentals", "returns", "payments"},
			LastLogin:   daysAgo(2), CreatedAt: daysAgo(300), UpdatedAt: daysAgo(2),
		},
	}

	settings := DefaultSettings()
	daily := settings.DailyRateDefault
	weekly := settings.WeeklyRateDefault

	rentals := []Rental{}
	payments := []Payment{}
	inspections := []ReturnInspection{}
	nocs := []Noc{}

	newRental := func(riderIdx, vehicleIdx int, plan Plan, start time.Time, days int) *Rental {
		payable := daily.Mul(decimal.NewFromInt(int64(days)))
		if plan == PlanWeekly {
			payable = weekly.Mul(decimal.NewFromInt(int64((days + 6) / 7)))
		}
		r := Rental{
			ID:                 s.newID(),
			RiderID:            riders[riderIdx].ID,
			VehicleID:          vehicles[vehicleIdx].ID,
			Plan:               plan,
			StartDate:          start,
			ExpectedReturnDate: start.AddDate(0, 0, days),
			Status:             RentalOngoing,
			PayableTotal:       payable,
			PaidTotal:          decimal.Zero,
			BalanceDue:         payable,
			CreatedAt:          start,
			UpdatedAt:          start,
		}
		rentals = append(rentals, r)
		return &rentals[len(rentals)-1]
	}

	pay := func(r *Rental, amount decimal.Decimal, method PayMethod, when time.Time) {
		p := Payment{
			ID:              s.newID(),
			RentalID:        r.ID,
			RiderID:         r.RiderID,
			Amount:          amount,
			Method:          method,
			TxnRef:          fmt.Sprintf("TXN%06d", 100000+rng.Intn(899999)),
			TransactionDate: when,
			CreatedAt:       when,
			UpdatedAt:       when,
		}
		payments = append(payments, p)
		r.PaidTotal = r.PaidTotal.Add(amount)
		r.BalanceDue = r.PayableTotal.Sub(r.PaidTotal)
		if r.BalanceDue.IsNegative() {
			r.BalanceDue = decimal.Zero
		}
		for i := range riders {
			if riders[i].ID == r.RiderID {
				riders[i].TotalSpent = riders[i].TotalSpent.Add(amount)
			}
		}
	}

	complete := func(r *Rental, returned time.Time) {
		r.ActualReturnDate = &returned
		r.Status = RentalCompleted
		r.UpdatedAt = returned
		for i := range riders {
			if riders[i].ID == r.RiderID {
				riders[i].RentalsCount++
			}
		}
	}

	attach := func(r *Rental, vehicleIdx int) {
		vehicles[vehicleIdx].Available = false
		vehicles[vehicleIdx].CurrentRentalID = r.ID
		vehicles[vehicleIdx].UpdatedAt = r.StartDate
	}

	inspect := func(r *Rental, in ReturnInspection) *ReturnInspection {
		in.ID = s.newID()
		in.RentalID = r.ID
		in.RiderID = r.RiderID
		in.VehicleID = r.VehicleID
		if in.TaxPercent.IsZero() {
			in.TaxPercent = settings.TaxPercentDefault
		}
		if in.CreatedAt.IsZero() {
			in.CreatedAt = r.UpdatedAt
			in.UpdatedAt = r.UpdatedAt
		}
		computeTotals(&in)
		inspections = append(inspections, in)
		return &inspections[len(inspections)-1]
	}

	// Completed history: fully paid, returned on time.
	for i := 0; i < 4; i++ {
		start := daysAgo(90 - i*18)
		r := newRental(i, i%len(vehicles), PlanDaily, start, 3+i)
		pay(r, r.PayableTotal, []PayMethod{PayUPI, PayCash, PayCard, PayOnline}[i%4], start.AddDate(0, 0, 1))
		complete(r, r.ExpectedReturnDate)
	}

	// Clean return: inspected, no charges, awaiting settlement.
	{
		start := daysAgo(12)
		r := newRental(4, 4, PlanDaily, start, 5)
		pay(r, r.PayableTotal, PayUPI, start)
		complete(r, r.ExpectedReturnDate)
		inspect(r, ReturnInspection{
			OdometerEnd:   842,
			ChargePercent: 64,
			AccessoriesReturned: &Accessories{
				Helmet: true, Charger: true, PhoneHolder: true,
			},
			Remarks: "No issues found.",
		})
	}

	// Damage plus missing accessories.
	{
		start := daysAgo(20)
		r := newRental(5, 5, PlanWeekly, start, 7)
		pay(r, r.PayableTotal, PayCard, start)
		complete(r, r.ExpectedReturnDate)
		inspect(r, ReturnInspection{
			OdometerEnd:        1310,
			ChargePercent:      35,
			DamageNotes:        "Scratched left panel, bent mirror.",
			AccessoriesReturned: &Accessories{Helmet: true},
			MissingItemsCharge: decimal.NewFromInt(800),
			CleaningFee:        decimal.NewFromInt(150),
			DamageFee:          decimal.NewFromInt(1200),
			Remarks:            "Charger and phone holder not returned.",
		})
	}

	// Missing battery on return.
	{
		start := daysAgo(16)
		r := newRental(6, 6, PlanDaily, start, 4)
		pay(r, r.PayableTotal, PayCash, start.AddDate(0, 0, 2))
		complete(r, r.ExpectedReturnDate)
		inspect(r, ReturnInspection{
			OdometerEnd:      455,
			IsBatteryMissing: true,
			MissingItemsCharge: decimal.NewFromInt(4500),
			AccessoriesReturned: &Accessories{Helmet: true, Charger: true},
			Remarks:          "Swappable pack not present at return.",
		})
	}

	// Overdue return settled with a goodwill adjustment.
	{
		start := daysAgo(30)
		r := newRental(8, 7, PlanDaily, start, 6)
		pay(r, r.PayableTotal, PayUPI, start)
		returned := r.ExpectedReturnDate.AddDate(0, 0, 5)
		complete(r, returned)
		lateDays, lateFee := LateFee(*r, settings, returned)
		inspect(r, ReturnInspection{
			OdometerEnd:      980,
			ChargePercent:    22,
			LateDays:         lateDays,
			LateFee:          lateFee,
			OtherAdjustments: decimal.NewFromInt(-500),
			AccessoriesReturned: &Accessories{Helmet: true, Charger: true, PhoneHolder: true},
			Remarks:          "Goodwill discount applied on late fee.",
		})
	}

	// Fully settled with NOC issued.
	{
		start := daysAgo(45)
		r := newRental(9, 8, PlanWeekly, start, 7)
		pay(r, r.PayableTotal, PayBank, start)
		complete(r, r.ExpectedReturnDate)
		settledAt := r.ExpectedReturnDate.AddDate(0, 0, 1)
		insp := inspect(r, ReturnInspection{
			OdometerEnd:   1622,
			ChargePercent: 71,
			CleaningFee:   decimal.NewFromInt(100),
			AccessoriesReturned: &Accessories{Helmet: true, Charger: true, PhoneHolder: true},
			Remarks:       "Settled at counter.",
		})
		insp.Settled = true
		insp.SettledAt = &settledAt
		insp.UpdatedAt = settledAt
		r.BalanceDue = insp.FinalAmount
		noc := Noc{
			ID:                 s.newID(),
			RentalID:           r.ID,
			ReturnInspectionID: insp.ID,
			GeneratedAt:        settledAt,
		}
		noc.Content = func() string {
			d := &Data{Riders: riders, Vehicles: vehicles, Settings: settings}
			return renderNoc(d, insp, settledAt)
		}()
		insp.NocIssued = true
		insp.NocID = noc.ID
		nocs = append(nocs, noc)
	}

	// Heavy damage held against a deposit.
	{
		start := daysAgo(25)
		r := newRental(10, 9, PlanDaily, start, 5)
		pay(r, r.PayableTotal, PayCard, start)
		complete(r, r.ExpectedReturnDate)
		inspect(r, ReturnInspection{
			OdometerEnd: 733,
			DamageNotes: "Cracked front fairing, dented floorboard.",
			DamageFee:   decimal.NewFromInt(6200),
			CleaningFee: decimal.NewFromInt(300),
			DepositHeld: decimal.NewFromInt(5000),
			AccessoriesReturned: &Accessories{Helmet: true, Charger: true},
			Remarks:     "Deposit applied against damage charges.",
		})
	}

	// Cancelled before pickup.
	{
		start := daysAgo(8)
		r := newRental(11, 3, PlanDaily, start, 2)
		r.Status = RentalCancelled
		r.UpdatedAt = start.Add(2 * time.Hour)
	}

	// Live rentals: vehicles leave the pool.
	{
		start := daysAgo(2)
		r := newRental(12, 0, PlanDaily, start, 4)
		pay(r, daily, PayUPI, start)
		attach(r, 0)
	}
	{
		start := daysAgo(5)
		r := newRental(13, 1, PlanWeekly, start, 7)
		attach(r, 1)
	}
	{
		// due today
		start := daysAgo(3)
		r := newRental(14, 2, PlanDaily, start, 3)
		pay(r, daily.Mul(decimal.NewFromInt(2)), PayCash, start.AddDate(0, 0, 1))
		attach(r, 2)
	}
	// Past due: the seed sweep flips these to overdue.
	{
		start := daysAgo(9)
		r := newRental(16, 4, PlanDaily, start, 5)
		pay(r, daily.Mul(decimal.NewFromInt(3)), PayUPI, start.AddDate(0, 0, 2))
		attach(r, 4)
	}
	{
		start := daysAgo(14)
		r := newRental(17, 5, PlanWeekly, start, 7)
		attach(r, 5)
	}

	// --- battery rentals ------------------------------------------------
	batteryRentals := []BatteryRental{}
	newBatteryRental := func(riderIdx, packIdx, days int, start time.Time) *BatteryRental {
		due := start.AddDate(0, 0, days)
		rate := decimal.NewFromInt(150)
		payable := rate.Mul(decimal.NewFromInt(int64(days)))
		br := BatteryRental{
			ID:                 s.newID(),
			RiderID:            riders[riderIdx].ID,
			BatteryID:          packs[packIdx].ID,
			Plan:               "daily",
			RatePerDay:         rate,
			StartDate:          start,
			ExpectedReturnDate: &due,
			Status:             BatteryRentalOngoing,
			PayableTotal:       payable,
			PaidTotal:          decimal.Zero,
			BalanceDue:         payable,
			CreatedAt:          start,
			UpdatedAt:          start,
		}
		batteryRentals = append(batteryRentals, br)
		return &batteryRentals[len(batteryRentals)-1]
	}
	{
		// ongoing, pack held by the rider
		br := newBatteryRental(18, 0, 6, daysAgo(2))
		packs[0].Status = BatteryAssigned
		packs[0].UpdatedAt = br.StartDate
	}
	{
		// past due, reclassified by the seed sweep
		br := newBatteryRental(19, 1, 4, daysAgo(10))
		packs[1].Status = BatteryAssigned
		packs[1].UpdatedAt = br.StartDate
	}
	{
		// returned and fully paid
		br := newBatteryRental(1, 2, 3, daysAgo(15))
		returned := br.StartDate.AddDate(0, 0, 3)
		br.ActualReturnDate = &returned
		br.Status = BatteryRentalReturned
		br.PaidTotal = br.PayableTotal
		br.BalanceDue = decimal.Zero
		br.UpdatedAt = returned
	}

	// --- swap history ---------------------------------------------------
	swaps := []BatterySwap{}
	for i := 0; i < 2; i++ {
		at := daysAgo(6 - i*3)
		swaps = append(swaps, BatterySwap{
			ID:           s.newID(),
			OutBatteryID: packs[2+i].ID,
			InBatteryID:  packs[3+i].ID,
			VehicleID:    vehicles[i].ID,
			SwapAt:       at,
			Location:     seedCities[i],
			InSoC:        15 + rng.Intn(20),
			OutSoC:       85 + rng.Intn(15),
			CreatedAt:    at,
			UpdatedAt:    at,
		})
	}

	d.Riders = riders
	d.Vehicles = vehicles
	d.BatteryPacks = packs
	d.Rentals = rentals
	d.Payments = payments
	d.ReturnInspections = inspections
	d.BatteryRentals = batteryRentals
	d.BatterySwaps = swaps
	d.Nocs = nocs
	d.Users = users
	d.Alerts = []Alert{}
	d.Settings = settings
}
