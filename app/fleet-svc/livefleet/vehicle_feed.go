package livefleet

import (
	logger "log"
	"net/http"
	"strings"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// vehiclePositionsHandler serves the live fleet as a GTFS-realtime VehiclePositions feed
type vehiclePositionsHandler struct {
	log       *logger.Logger
	liveFleet *liveFleet
}

// makeVehiclePositionsHandler vehiclePositionsHandler factory
func makeVehiclePositionsHandler(log *logger.Logger, liveFleet *liveFleet) *vehiclePositionsHandler {
	return &vehiclePositionsHandler{
		log:       log,
		liveFleet: liveFleet,
	}
}

// ServeHTTP implements vehiclePositionsHandler http.Handler interface
func (h *vehiclePositionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	asText := strings.ToLower(r.FormValue("text")) == "true"
	snapshot := h.liveFleet.snapshot()
	feedMessage := buildFeedMessage(uint64(h.liveFleet.now().Unix()), snapshot)
	if asText {
		h.writeProtocolBufferAsText(feedMessage, w)
	} else {
		h.writeProtocolBuffer(feedMessage, w)
	}
}

// writeProtocolBuffer marshal gtfs.FeedMessage as protocol buffer to http.ResponseWriter
func (h *vehiclePositionsHandler) writeProtocolBuffer(feedMessage *gtfs.FeedMessage, w http.ResponseWriter) {
	bytes, err := proto.Marshal(feedMessage)
	if err != nil {
		h.log.Printf("Failed to marshal gtfs.FeedMessage to bytes, error:%s", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	if _, err = w.Write(bytes); err != nil {
		h.log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
	}
}

// writeProtocolBufferAsText write plain text formatting of gtfs.FeedMessage to http.ResponseWriter
func (h *vehiclePositionsHandler) writeProtocolBufferAsText(feedMessage *gtfs.FeedMessage, w http.ResponseWriter) {
	stringResponse := prototext.MarshalOptions{Multiline: true}.Format(feedMessage)
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte(stringResponse)); err != nil {
		h.log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
	}
}

// buildFeedMessage builds a full dataset gtfs.FeedMessage with one VehiclePosition per live vehicle
func buildFeedMessage(now uint64, snapshot *collectionSnapshot) *gtfs.FeedMessage {
	feedMessage := gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(now),
		},
		Entity: make([]*gtfs.FeedEntity, 0, len(snapshot.Vehicles)),
	}
	for _, v := range snapshot.Vehicles {
		feedMessage.Entity = append(feedMessage.Entity, makeVehicleFeedEntity(now, v))
	}
	return &feedMessage
}

// makeVehicleFeedEntity create gtfs.FeedEntity holding a VehiclePosition for v
func makeVehicleFeedEntity(now uint64, v *fleet.Vehicle) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(string(v.Id)),
		Vehicle: &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				RouteId: proto.String(v.Route),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(string(v.Id)),
				Label: proto.String(v.Destination),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(v.LocationHint.Lat)),
				Longitude: proto.Float32(float32(v.LocationHint.Lng)),
			},
			StopId:              proto.String(schedule.StopId(v.CurrentStop)),
			CurrentStatus:       gtfs.VehiclePosition_INCOMING_AT.Enum(),
			Timestamp:           proto.Uint64(now),
			OccupancyStatus:     occupancyStatus(v).Enum(),
			OccupancyPercentage: proto.Uint32(uint32(max(v.OccupancyPercent, 0))),
		},
	}
}

// occupancyStatus maps a vehicle's crowd level onto the GTFS-realtime occupancy scale
func occupancyStatus(v *fleet.Vehicle) gtfs.VehiclePosition_OccupancyStatus {
	if v.Capacity > 0 && v.PassengerCount >= v.Capacity {
		return gtfs.VehiclePosition_FULL
	}
	switch v.CrowdLevel {
	case fleet.CrowdLow:
		return gtfs.VehiclePosition_MANY_SEATS_AVAILABLE
	case fleet.CrowdMedium:
		return gtfs.VehiclePosition_FEW_SEATS_AVAILABLE
	case fleet.CrowdHigh:
		return gtfs.VehiclePosition_STANDING_ROOM_ONLY
	}
	return gtfs.VehiclePosition_NO_DATA_AVAILABLE
}
