/*
handlers_test.go - HTTP-level tests for the rental console API

Exercises the full router: happy-path rental flow, error ->
status-code mapping, list query parsing, and the staff credential
redaction.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapgo/rental-engine/ledger"
	"github.com/zapgo/rental-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	seq := 0
	svc := ledger.NewService(ledger.NewStore(store.NewMemory()),
		ledger.WithClock(func() time.Time {
			return time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
		}),
		ledger.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("api-%04d", seq)
		}),
	)
	srv := httptest.NewServer(NewRouter(NewHandler(svc), []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func createTestRider(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/riders", map[string]any{
		"fullName":           "Aarav Sharma",
		"phone":              "9800000001",
		"email":              "aarav@example.in",
		"idProofType":        "DL",
		"idProofNumber":      "DL-42",
		"documentExpiryDate": "2027-01-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func createTestVehicle(t *testing.T, srv *httptest.Server, code string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/vehicles", map[string]any{
		"code":               code,
		"make":               "Ather",
		"model":              "450X",
		"registrationNumber": "KA01EV" + code,
		"batteryHealth":      90,
		"lastServiceDate":    "2025-05-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

// =============================================================================
// RENTAL FLOW
// =============================================================================

func TestRentalFlow_EndToEnd(t *testing.T) {
	// GIVEN: A rider and an available vehicle
	// WHEN: Rent -> pay -> return over the API
	// THEN: Each step reports the expected state transitions

	srv := newTestServer(t)
	riderID := createTestRider(t, srv)
	vehicleID := createTestVehicle(t, srv, "001")

	resp, rental := doJSON(t, http.MethodPost, srv.URL+"/api/rentals", map[string]any{
		"riderId":            riderID,
		"vehicleId":          vehicleID,
		"plan":               "daily",
		"startDate":          "2025-06-01",
		"expectedReturnDate": "2025-06-04",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ongoing", rental["status"])
	// Payable derived from the default daily rate: 3 days * 1200.
	assert.Equal(t, "3600", rental["payableTotal"])
	rentalID := rental["id"].(string)

	resp, vehicle := doJSON(t, http.MethodGet, srv.URL+"/api/vehicles/"+vehicleID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, vehicle["available"])

	resp, payment := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"rentalId": rentalID,
		"riderId":  riderID,
		"amount":   "3600",
		"method":   "upi",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "3600", payment["amount"])

	resp, returned := doJSON(t, http.MethodPost, srv.URL+"/api/rentals/"+rentalID+"/return", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", returned["status"])

	resp, vehicle = doJSON(t, http.MethodGet, srv.URL+"/api/vehicles/"+vehicleID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, vehicle["available"])

	// The list endpoint embeds the rider and vehicle.
	resp, list := doJSON(t, http.MethodGet, srv.URL+"/api/rentals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := list["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	require.NotNil(t, row["rider"])
	assert.Equal(t, "Aarav Sharma", row["rider"].(map[string]any)["fullName"])
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	riderID := createTestRider(t, srv)
	vehicleID := createTestVehicle(t, srv, "002")

	// 404: unknown entity.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/riders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Open a rental, then:
	resp, rental := doJSON(t, http.MethodPost, srv.URL+"/api/rentals", map[string]any{
		"riderId":            riderID,
		"vehicleId":          vehicleID,
		"plan":               "daily",
		"startDate":          "2025-06-01",
		"expectedReturnDate": "2025-06-03",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rentalID := rental["id"].(string)

	// 409: the vehicle is already out.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/rentals", map[string]any{
		"riderId":            riderID,
		"vehicleId":          vehicleID,
		"plan":               "daily",
		"startDate":          "2025-06-01",
		"expectedReturnDate": "2025-06-02",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 409: deleting a vehicle with an active rental.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/vehicles/"+vehicleID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 422: returning twice.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/rentals/"+rentalID+"/return", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/rentals/"+rentalID+"/return", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// 400: malformed dates.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/rentals", map[string]any{
		"riderId":   riderID,
		"vehicleId": vehicleID,
		"plan":      "daily",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// LIST QUERIES
// =============================================================================

func TestListQueries_FiltersAndPaging(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 5; i++ {
		createTestVehicle(t, srv, fmt.Sprintf("%03d", i+10))
	}

	resp, list := doJSON(t, http.MethodGet, srv.URL+"/api/vehicles?page=2&pageSize=2&sortBy=code&sortDir=asc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), list["total"])
	rows := list["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "012", rows[0].(map[string]any)["code"])

	resp, list = doJSON(t, http.MethodGet, srv.URL+"/api/vehicles?q=013", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), list["total"])

	resp, list = doJSON(t, http.MethodGet, srv.URL+"/api/vehicles?code_in=010,014", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), list["total"])

	resp, list = doJSON(t, http.MethodGet, srv.URL+"/api/vehicles?available=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), list["total"])
}

// =============================================================================
// STAFF / SETTINGS
// =============================================================================

func TestStaff_HashNeverLeaves(t *testing.T) {
	srv := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/staff", map[string]any{
		"email":       "ops@zapgo.in",
		"displayName": "Operations",
		"role":        "STAFF",
		"password":    "hunter2-but-longer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotContains(t, created, "passwordHash")

	// Duplicate email is a business-rule violation.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/staff", map[string]any{
		"email":       "OPS@zapgo.in",
		"displayName": "Impostor",
		"password":    "something-else",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, list := doJSON(t, http.MethodGet, srv.URL+"/api/staff", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := list["rows"].([]any)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0].(map[string]any), "passwordHash")
}

func TestSettings_PartialUpdateMerges(t *testing.T) {
	srv := newTestServer(t)

	resp, settings := doJSON(t, http.MethodGet, srv.URL+"/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ZapGo Rentals Pvt. Ltd.", settings["companyName"])

	resp, updated := doJSON(t, http.MethodPut, srv.URL+"/api/settings", map[string]any{
		"graceDays": 5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), updated["graceDays"])
	// Untouched fields survive the merge.
	assert.Equal(t, "ZapGo Rentals Pvt. Ltd.", updated["companyName"])
	assert.Equal(t, "INR", updated["currency"])
}

// =============================================================================
// DASHBOARD / ADMIN
// =============================================================================

func TestCounters_ReflectState(t *testing.T) {
	srv := newTestServer(t)
	riderID := createTestRider(t, srv)
	vehicleA := createTestVehicle(t, srv, "021")
	createTestVehicle(t, srv, "022")

	resp, rental := doJSON(t, http.MethodPost, srv.URL+"/api/rentals", map[string]any{
		"riderId":            riderID,
		"vehicleId":          vehicleA,
		"plan":               "daily",
		"startDate":          "2025-06-01",
		"expectedReturnDate": "2025-06-03",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"rentalId": rental["id"],
		"riderId":  riderID,
		"amount":   "1200",
		"method":   "cash",
	})

	resp, counters := doJSON(t, http.MethodGet, srv.URL+"/api/dashboard/counters", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), counters["totalVehicles"])
	assert.Equal(t, float64(1), counters["vehiclesAvailable"])
	assert.Equal(t, float64(1), counters["ongoingRentals"])
	assert.Equal(t, float64(0), counters["overdueRentals"])
	assert.Equal(t, "1200", counters["earningsToday"])
}

func TestAdmin_SweepAndDump(t *testing.T) {
	srv := newTestServer(t)

	resp, result := doJSON(t, http.MethodPost, srv.URL+"/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), result["overdueRentals"])

	resp, dump := doJSON(t, http.MethodGet, srv.URL+"/api/admin/dump", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, dump, "riders")
	assert.Contains(t, dump, "settings")
}
