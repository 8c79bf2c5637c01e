package livefleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	logger "log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"github.com/gorilla/mux"
)

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// errorResponse is the json body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

// vehiclesResponse wraps a snapshot of the live vehicles
type vehiclesResponse struct {
	Timestamp   int64            `json:"timestamp"`
	CurrentSlot string           `json:"current_slot"`
	NextSlot    string           `json:"next_slot"`
	Holiday     bool             `json:"holiday"`
	Vehicles    []*fleet.Vehicle `json:"vehicles"`
}

// vehicleResponse is a single vehicle with boarding advice
type vehicleResponse struct {
	Vehicle        *fleet.Vehicle       `json:"vehicle"`
	Recommendation fleet.Recommendation `json:"recommendation"`
	NextOnRoute    *fleet.Vehicle       `json:"next_on_route"`
}

// crowdOverrideRequest is the body of a crowd override
type crowdOverrideRequest struct {
	CrowdLevel string `json:"crowd_level"`
}

// refreshResponse reports the outcome of a manual refresh
type refreshResponse struct {
	Timestamp    int64  `json:"timestamp"`
	CurrentSlot  string `json:"current_slot"`
	NextSlot     string `json:"next_slot"`
	VehicleCount int    `json:"vehicle_count"`
}

// stopResponse is a schedule stop with its location hint
type stopResponse struct {
	Id       string         `json:"id"`
	Name     string         `json:"name"`
	Location fleet.Location `json:"location"`
	//KnownLocation is false when Location is the default fallback
	KnownLocation bool `json:"known_location"`
}

// arrivalsResponse lists vehicles at or approaching a stop
type arrivalsResponse struct {
	Timestamp int64               `json:"timestamp"`
	Stop      stopResponse        `json:"stop"`
	Arrivals  []fleet.StopArrival `json:"arrivals"`
}

// statsResponse combines live fleet statistics with the schedule table summary
type statsResponse struct {
	Timestamp int64          `json:"timestamp"`
	Fleet     fleet.Stats    `json:"fleet"`
	Schedule  schedule.Stats `json:"schedule"`
}

// fleetHandlers holds data needed to respond to and log consumer requests
type fleetHandlers struct {
	log       *logger.Logger
	liveFleet *liveFleet
}

// makeFleetHandlers fleetHandlers factory
func makeFleetHandlers(log *logger.Logger, liveFleet *liveFleet) *fleetHandlers {
	return &fleetHandlers{
		log:       log,
		liveFleet: liveFleet,
	}
}

// vehicles serves the current snapshot sorted by eta, as json or csv with format=csv
func (h *fleetHandlers) vehicles(w http.ResponseWriter, r *http.Request) {
	if !h.liveFleet.ready() {
		h.writeError(w, http.StatusServiceUnavailable, fleet.ErrNotReady)
		return
	}
	snapshot := h.liveFleet.snapshot()
	vehicles := snapshot.Vehicles
	if route := r.FormValue("route"); route != "" {
		vehicles = fleet.FilterRoute(vehicles, route)
	}
	fleet.SortByEta(vehicles)

	if strings.ToLower(r.FormValue("format")) == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := fleet.WriteVehiclesCSV(w, vehicles); err != nil {
			h.log.Printf("Error writing vehicles csv: %v", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, vehiclesResponse{
		Timestamp:   snapshot.At.Unix(),
		CurrentSlot: snapshot.CurrentSlot,
		NextSlot:    snapshot.NextSlot,
		Holiday:     snapshot.Holiday,
		Vehicles:    vehicles,
	})
}

// vehicle serves one vehicle with its recommendation and the next vehicle of the same route at its stop
func (h *fleetHandlers) vehicle(w http.ResponseWriter, r *http.Request) {
	id, err := entityKeyVar(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	snapshot := h.liveFleet.snapshot()
	for _, v := range snapshot.Vehicles {
		if v.Id == id {
			h.writeJSON(w, http.StatusOK, vehicleResponse{
				Vehicle:        v,
				Recommendation: fleet.Recommend(v),
				NextOnRoute:    fleet.NextOnRoute(snapshot.Vehicles, v),
			})
			return
		}
	}
	h.writeError(w, http.StatusNotFound, fmt.Errorf("vehicle %q not found", id))
}

// crowdOverride applies a user supplied crowd level to a live vehicle
func (h *fleetHandlers) crowdOverride(w http.ResponseWriter, r *http.Request) {
	id, err := entityKeyVar(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	var request crowdOverrideRequest
	if err = json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("unable to decode crowd override: %w", err))
		return
	}
	level, err := fleet.ParseCrowdLevel(request.CrowdLevel)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	vehicle, applied, err := h.liveFleet.applyOverride(fleet.CrowdOverride{Id: id, CrowdLevel: level})
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !applied {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("vehicle %q not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, vehicle)
}

// refresh runs a synthesis pass for the current time
func (h *fleetHandlers) refresh(w http.ResponseWriter, _ *http.Request) {
	synthesis, err := h.liveFleet.refresh(h.liveFleet.now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fleet.ErrNotReady) {
			status = http.StatusServiceUnavailable
		}
		h.writeError(w, status, err)
		return
	}
	h.writeJSON(w, http.StatusOK, refreshResponse{
		Timestamp:    synthesis.At.Unix(),
		CurrentSlot:  synthesis.CurrentSlot,
		NextSlot:     synthesis.NextSlot,
		VehicleCount: len(synthesis.Vehicles),
	})
}

// stops lists every stop in the schedule table with its location hint
func (h *fleetHandlers) stops(w http.ResponseWriter, _ *http.Request) {
	table, err := h.liveFleet.synthesizer.Table()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	locations := h.liveFleet.synthesizer.Locations()
	results := make([]stopResponse, 0)
	for _, stop := range table.Stops() {
		results = append(results, makeStopResponse(stop, locations))
	}
	h.writeJSON(w, http.StatusOK, results)
}

// stopArrivals lists vehicles at or approaching the stop named by id or name
func (h *fleetHandlers) stopArrivals(w http.ResponseWriter, r *http.Request) {
	table, err := h.liveFleet.synthesizer.Table()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid stop name: %w", err))
		return
	}
	stop, found := findStop(table, name)
	if !found {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("stop %q not found", name))
		return
	}
	snapshot := h.liveFleet.snapshot()
	h.writeJSON(w, http.StatusOK, arrivalsResponse{
		Timestamp: snapshot.At.Unix(),
		Stop:      makeStopResponse(stop, h.liveFleet.synthesizer.Locations()),
		Arrivals:  fleet.ArrivalsForStop(snapshot.Vehicles, stop.Name),
	})
}

// stats summarizes the live fleet and schedule table
func (h *fleetHandlers) stats(w http.ResponseWriter, _ *http.Request) {
	table, err := h.liveFleet.synthesizer.Table()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	snapshot := h.liveFleet.snapshot()
	h.writeJSON(w, http.StatusOK, statsResponse{
		Timestamp: snapshot.At.Unix(),
		Fleet:     fleet.ComputeStats(snapshot.Vehicles),
		Schedule:  table.Stats(),
	})
}

// writeJSON marshals value as the response body
func (h *fleetHandlers) writeJSON(w http.ResponseWriter, status int, value interface{}) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		h.log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(jsonData); err != nil {
		h.log.Printf("Error writing json response: %s", err)
	}
}

// writeError responds with status and err as an errorResponse
func (h *fleetHandlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// entityKeyVar reads the "id" route variable. Entity keys contain '/', so clients send it path escaped
func entityKeyVar(r *http.Request) (fleet.EntityKey, error) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		return "", fmt.Errorf("invalid vehicle id: %w", err)
	}
	return fleet.EntityKey(id), nil
}

// findStop matches a stop by slug id or case insensitive name
func findStop(table *schedule.Table, name string) (schedule.Stop, bool) {
	for _, stop := range table.Stops() {
		if stop.Id == name || strings.EqualFold(stop.Name, name) {
			return stop, true
		}
	}
	return schedule.Stop{}, false
}

func makeStopResponse(stop schedule.Stop, locations *fleet.StopLocations) stopResponse {
	return stopResponse{
		Id:            stop.Id,
		Name:          stop.Name,
		Location:      locations.Lookup(stop.Name),
		KnownLocation: locations.Known(stop.Name),
	}
}

// createRouter routes every consumer endpoint. Paths are matched encoded so vehicle ids may carry an escaped '/'
func createRouter(log *logger.Logger, liveFleet *liveFleet) *mux.Router {
	handlers := makeFleetHandlers(log, liveFleet)

	r := mux.NewRouter().UseEncodedPath()
	r.Handle("/", &defaultHttpHandler{})
	r.HandleFunc("/vehicles", handlers.vehicles).Methods(http.MethodGet)
	r.HandleFunc("/vehicles/{id}/crowd", handlers.crowdOverride).Methods(http.MethodPost)
	r.HandleFunc("/vehicles/{id}", handlers.vehicle).Methods(http.MethodGet)
	r.HandleFunc("/refresh", handlers.refresh).Methods(http.MethodPost)
	r.HandleFunc("/stops", handlers.stops).Methods(http.MethodGet)
	r.HandleFunc("/stops/{name}/arrivals", handlers.stopArrivals).Methods(http.MethodGet)
	r.HandleFunc("/stats", handlers.stats).Methods(http.MethodGet)
	r.Handle("/vehiclePositions", makeVehiclePositionsHandler(log, liveFleet)).Methods(http.MethodGet)
	return r
}

// createServer creates configured http.Server for consumer requests
func createServer(log *logger.Logger, liveFleet *liveFleet, httpPort int) *http.Server {
	srv := &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      createRouter(log, liveFleet),
	}
	return srv
}

// runWebService starts up the consumer web service, and terminates on shutdown signal
func runWebService(log *logger.Logger,
	liveFleet *liveFleet,
	httpPort int,
	shutdownSignal chan bool) {
	srv := createServer(log, liveFleet, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
