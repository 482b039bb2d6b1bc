package fleet

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryFleetRepo) {
	t.Helper()
	svc, repo := newTestService(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, repo
}

func TestCreateBoatHandler(t *testing.T) {
	router, repo := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/boats/", strings.NewReader(`{"name":"Amel","registration":"SF-101","crew_capacity":6}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var boat Boat
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &boat))
	assert.Equal(t, "Amel", boat.Name)
	assert.Len(t, repo.boats, 1)
}

func TestCreateBoatHandlerValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/boats/", strings.NewReader(`{"registration":"SF-101"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"required"`)
}

func TestGetBoatHandlerNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/boats/7b0fb2a3-54f5-4b3c-9a31-4a6a0b2f1c11/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestGetBoatHandlerRejectsBadID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/boats/not-a-uuid/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompleteTripHandlerConflict(t *testing.T) {
	router, repo := newTestRouter(t)
	departure := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	trip := Trip{ID: mustUUID(t, "0f5b2c5e-7a38-4d77-8f0a-2b8d7e0f6a01"), Status: TripStatusCompleted, DepartureAt: departure}
	repo.trips[trip.ID] = trip

	body := `{"return_at":"2024-03-04T06:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/trips/"+trip.ID.String()+"/complete", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid Transition")
}

func TestUpdateSailorStatusHandler(t *testing.T) {
	router, repo := newTestRouter(t)
	sailor := Sailor{ID: mustUUID(t, "3c1d7a52-9a1e-4f0e-8d6b-5e2f4a7b9c10"), Status: SailorStatusActive}
	repo.sailors[sailor.ID] = sailor

	req := httptest.NewRequest(http.MethodPatch, "/sailors/"+sailor.ID.String()+"/status", strings.NewReader(`{"status":"INACTIVE"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, SailorStatusInactive, repo.sailors[sailor.ID].Status)

	req = httptest.NewRequest(http.MethodPatch, "/sailors/"+sailor.ID.String()+"/status", strings.NewReader(`{"status":"RETIRED"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"oneof"`)
}

func TestUpdateBoatStatusHandler(t *testing.T) {
	router, repo := newTestRouter(t)
	boat := Boat{ID: mustUUID(t, "5d2f8b63-0b2f-4a1f-9e7c-6f3a5b8c0d21"), Status: BoatStatusActive}
	repo.boats[boat.ID] = boat

	req := httptest.NewRequest(http.MethodPatch, "/boats/"+boat.ID.String()+"/status", strings.NewReader(`{"status":"MAINTENANCE"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, BoatStatusMaintenance, repo.boats[boat.ID].Status)
}

func TestDeleteInvoiceHandlerOnSettledTrip(t *testing.T) {
	router, repo := newTestRouter(t)
	trip := Trip{ID: mustUUID(t, "6e3a9c74-1c3a-4b2a-8f8d-7a4b6c9d1e32"), Status: TripStatusCompleted, Settled: true}
	repo.trips[trip.ID] = trip
	inv := SalesInvoice{ID: mustUUID(t, "7f4bad85-2d4b-4c3b-9a9e-8b5c7dae2f43"), TripID: trip.ID}
	repo.invoices[trip.ID] = []SalesInvoice{inv}

	req := httptest.NewRequest(http.MethodDelete, "/invoices/"+inv.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Trip Settled")

	trip.Settled = false
	repo.trips[trip.ID] = trip
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/invoices/"+inv.ID.String(), nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, repo.invoices[trip.ID])
}

func TestRecordAttendanceHandler(t *testing.T) {
	router, repo := newTestRouter(t)
	boatID := mustUUID(t, "8a5cbe96-3e5c-4d4c-8bab-9c6d8ebf3a54")
	trip := Trip{ID: mustUUID(t, "9b6dcfa7-4f6d-4e5d-9cbc-ad7e9fca4b65"), BoatID: boatID, Status: TripStatusInProgress}
	repo.trips[trip.ID] = trip
	sailor := Sailor{ID: mustUUID(t, "ac7ed0b8-5a7e-4f6e-8dcd-be8fa0db5c76"), BoatID: boatID, Status: SailorStatusActive}
	repo.sailors[sailor.ID] = sailor

	body := `{"sailor_id":"` + sailor.ID.String() + `","present":true,"observations":"on watch"}`
	req := httptest.NewRequest(http.MethodPut, "/trips/"+trip.ID.String()+"/attendance", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trips/"+trip.ID.String()+"/attendance", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data []Attendance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Present)
	assert.Equal(t, "on watch", resp.Data[0].Observations)
}
