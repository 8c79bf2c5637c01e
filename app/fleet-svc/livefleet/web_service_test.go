package livefleet

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/gorilla/mux"
	"github.com/matryer/is"
)

func serve(router *mux.Router, method string, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func vehiclePath(id fleet.EntityKey) string {
	return "/vehicles/" + url.PathEscape(string(id))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, value interface{}) {
	if err := json.Unmarshal(rr.Body.Bytes(), value); err != nil {
		t.Fatalf("unable to decode response body %q: %v", rr.Body.String(), err)
	}
}

func makeTestRouter(t *testing.T) (*mux.Router, *liveFleet, *fakePublicationDestination) {
	f, logWriter, publisher := makeTestLiveFleet(t, OverrideDiscard, at(10, 30))
	mustRefresh(t, f, at(10, 30))
	return createRouter(logWriter.log, f), f, publisher
}

func Test_createRouter_notReady(t *testing.T) {
	f, logWriter := makeUnloadedLiveFleet()
	router := createRouter(logWriter.log, f)
	tests := []struct {
		method     string
		target     string
		wantStatus int
	}{
		{method: http.MethodGet, target: "/vehicles", wantStatus: http.StatusServiceUnavailable},
		{method: http.MethodPost, target: "/refresh", wantStatus: http.StatusServiceUnavailable},
		{method: http.MethodGet, target: "/stops", wantStatus: http.StatusServiceUnavailable},
		{method: http.MethodGet, target: "/stops/ohio-union--sb-/arrivals", wantStatus: http.StatusServiceUnavailable},
		{method: http.MethodGet, target: "/stats", wantStatus: http.StatusServiceUnavailable},
		{method: http.MethodGet, target: vehiclePath(ccOhioUnion), wantStatus: http.StatusNotFound},
		{method: http.MethodGet, target: "/", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := serve(router, tt.method, tt.target, nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body:%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func Test_fleetHandlers_vehicles(t *testing.T) {
	is := is.New(t)
	router, _, _ := makeTestRouter(t)

	rr := serve(router, http.MethodGet, "/vehicles", nil)
	is.Equal(rr.Code, http.StatusOK)
	is.Equal(rr.Header().Get("Content-Type"), "application/json")
	var response vehiclesResponse
	decodeBody(t, rr, &response)
	is.Equal(response.CurrentSlot, "10:30")
	is.Equal(response.NextSlot, "10:40")
	is.Equal(response.Timestamp, at(10, 30).Unix())
	is.Equal(vehicleIds(response.Vehicles), []fleet.EntityKey{beArpsHall, ccOhioUnion, ccMackHall, beOhioUnion})

	rr = serve(router, http.MethodGet, "/vehicles?route=BE", nil)
	is.Equal(rr.Code, http.StatusOK)
	response = vehiclesResponse{}
	decodeBody(t, rr, &response)
	is.Equal(vehicleIds(response.Vehicles), []fleet.EntityKey{beArpsHall, beOhioUnion})

	rr = serve(router, http.MethodGet, "/vehicles?route=XX", nil)
	is.Equal(rr.Code, http.StatusOK)
	response = vehiclesResponse{}
	decodeBody(t, rr, &response)
	is.Equal(len(response.Vehicles), 0)
}

func Test_fleetHandlers_vehiclesCSV(t *testing.T) {
	is := is.New(t)
	router, _, _ := makeTestRouter(t)

	rr := serve(router, http.MethodGet, "/vehicles?format=csv&route=CC", nil)
	is.Equal(rr.Code, http.StatusOK)
	is.Equal(rr.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	is.Equal(len(lines), 3)
	is.True(strings.HasPrefix(lines[0], "id,route,current_stop,eta"))
	is.True(strings.HasPrefix(lines[1], "2:CC/Ohio Union (SB),CC,Ohio Union (SB),4,5,"))
}

func Test_fleetHandlers_vehicle(t *testing.T) {
	is := is.New(t)
	router, _, _ := makeTestRouter(t)

	rr := serve(router, http.MethodGet, vehiclePath(ccOhioUnion), nil)
	is.Equal(rr.Code, http.StatusOK)
	var response vehicleResponse
	decodeBody(t, rr, &response)
	is.Equal(response.Vehicle.Id, ccOhioUnion)
	is.Equal(response.Vehicle.CrowdLevel, fleet.CrowdHigh)
	is.Equal(response.Recommendation.Kind, fleet.RecommendConsiderNext)
	is.Equal(response.NextOnRoute, nil)

	rr = serve(router, http.MethodGet, vehiclePath(fleet.MakeEntityKey("CC", "Gray")), nil)
	is.Equal(rr.Code, http.StatusNotFound)
	var errResponse errorResponse
	decodeBody(t, rr, &errResponse)
	is.True(strings.Contains(errResponse.Error, "not found"))
}

func Test_fleetHandlers_crowdOverride(t *testing.T) {
	tests := []struct {
		name        string
		id          fleet.EntityKey
		body        string
		wantStatus  int
		wantEvents  int
		wantLevel   fleet.CrowdLevel
		wantApplied bool
	}{
		{
			name:        "applied",
			id:          ccOhioUnion,
			body:        `{"crowd_level":"LOW"}`,
			wantStatus:  http.StatusOK,
			wantEvents:  1,
			wantLevel:   fleet.CrowdLow,
			wantApplied: true,
		},
		{
			name:       "unknown crowd level",
			id:         ccOhioUnion,
			body:       `{"crowd_level":"packed"}`,
			wantStatus: http.StatusBadRequest,
			wantLevel:  fleet.CrowdHigh,
		},
		{
			name:       "malformed body",
			id:         ccOhioUnion,
			body:       `{"crowd_level":`,
			wantStatus: http.StatusBadRequest,
			wantLevel:  fleet.CrowdHigh,
		},
		{
			name:       "unknown vehicle",
			id:         fleet.MakeEntityKey("CC", "Gray"),
			body:       `{"crowd_level":"low"}`,
			wantStatus: http.StatusNotFound,
			wantLevel:  fleet.CrowdHigh,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			router, f, publisher := makeTestRouter(t)

			rr := serve(router, http.MethodPost, vehiclePath(tt.id)+"/crowd", strings.NewReader(tt.body))
			is.Equal(rr.Code, tt.wantStatus)
			is.Equal(len(publisher.published()), tt.wantEvents)
			if tt.wantApplied {
				var response fleet.Vehicle
				decodeBody(t, rr, &response)
				is.Equal(response.CrowdLevel, tt.wantLevel)
				is.True(response.OverrideActive)
			}
			v, _ := f.vehicle(ccOhioUnion)
			is.Equal(v.CrowdLevel, tt.wantLevel)
			is.Equal(v.OverrideActive, tt.wantApplied)
		})
	}
}

func Test_fleetHandlers_refresh(t *testing.T) {
	is := is.New(t)
	router, f, _ := makeTestRouter(t)
	_, _, err := f.applyOverride(fleet.CrowdOverride{Id: ccMackHall, CrowdLevel: fleet.CrowdHigh})
	is.NoErr(err)

	rr := serve(router, http.MethodPost, "/refresh", nil)
	is.Equal(rr.Code, http.StatusOK)
	var response refreshResponse
	decodeBody(t, rr, &response)
	is.Equal(response, refreshResponse{
		Timestamp:    at(10, 30).Unix(),
		CurrentSlot:  "10:30",
		NextSlot:     "10:40",
		VehicleCount: 4,
	})
	v, _ := f.vehicle(ccMackHall)
	is.Equal(v.CrowdLevel, fleet.CrowdLow)

	rr = serve(router, http.MethodGet, "/refresh", nil)
	is.Equal(rr.Code, http.StatusMethodNotAllowed)
}

func Test_fleetHandlers_stops(t *testing.T) {
	is := is.New(t)
	router, _, _ := makeTestRouter(t)

	rr := serve(router, http.MethodGet, "/stops", nil)
	is.Equal(rr.Code, http.StatusOK)
	var response []stopResponse
	decodeBody(t, rr, &response)
	is.Equal(response, []stopResponse{
		{Id: "ohio-union--sb-", Name: "Ohio Union (SB)", Location: fleet.Location{Lat: 40.0025, Lng: -83.0195},
			KnownLocation: true},
		{Id: "mack-hall--nb-", Name: "Mack Hall (NB)", Location: fleet.Location{Lat: 40.0045, Lng: -83.0255},
			KnownLocation: true},
		{Id: "arps-hall--nb-", Name: "Arps Hall (NB)", Location: fleet.Location{Lat: 40.0050, Lng: -83.0300},
			KnownLocation: true},
	})
}

func Test_fleetHandlers_stopArrivals(t *testing.T) {
	tests := []struct {
		name       string
		stop       string
		wantStatus int
		wantIds    []fleet.EntityKey
		wantEtas   []float64
	}{
		{
			name:       "by slug",
			stop:       "ohio-union--sb-",
			wantStatus: http.StatusOK,
			wantIds:    []fleet.EntityKey{ccOhioUnion, beArpsHall, beOhioUnion},
			wantEtas:   []float64{4, 7, 9},
		},
		{
			name:       "by name",
			stop:       "mack hall (nb)",
			wantStatus: http.StatusOK,
			wantIds:    []fleet.EntityKey{ccMackHall, ccOhioUnion},
			wantEtas:   []float64{6, 9},
		},
		{
			name:       "unknown stop",
			stop:       "gray-hall",
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			router, _, _ := makeTestRouter(t)
			rr := serve(router, http.MethodGet, "/stops/"+url.PathEscape(tt.stop)+"/arrivals", nil)
			is.Equal(rr.Code, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var response arrivalsResponse
			decodeBody(t, rr, &response)
			ids := make([]fleet.EntityKey, 0)
			etas := make([]float64, 0)
			for _, arrival := range response.Arrivals {
				ids = append(ids, arrival.Vehicle.Id)
				etas = append(etas, arrival.EtaToStop)
			}
			is.Equal(ids, tt.wantIds)
			is.Equal(etas, tt.wantEtas)
		})
	}
}

func Test_fleetHandlers_stats(t *testing.T) {
	is := is.New(t)
	router, _, _ := makeTestRouter(t)

	rr := serve(router, http.MethodGet, "/stats", nil)
	is.Equal(rr.Code, http.StatusOK)
	var response statsResponse
	decodeBody(t, rr, &response)
	is.Equal(response.Fleet.ActiveVehicles, 4)
	is.Equal(response.Fleet.TotalPassengers, 98)
	is.Equal(response.Fleet.CrowdLevels[fleet.CrowdLow], 2)
	is.Equal(response.Fleet.CrowdLevels[fleet.CrowdMedium], 1)
	is.Equal(response.Fleet.CrowdLevels[fleet.CrowdHigh], 1)
	is.Equal(response.Schedule.TotalRecords, 9)
	is.Equal(response.Schedule.UniqueStops, 3)
	is.Equal(response.Schedule.UniqueRoutes, 2)
	is.Equal(response.Schedule.Slots, 5)
}
