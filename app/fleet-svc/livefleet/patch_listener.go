package livefleet

import (
	"fmt"
	logger "log"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/nats-io/nats.go"
)

// runPatchListener subscribes to patchSubject for fleet.VehiclePatch messages and applies them to liveFleet.
// Ends the NATS subscription and returns on shutdownSignal
func runPatchListener(log *logger.Logger,
	natsConn *nats.Conn,
	liveFleet *liveFleet,
	patchSubject string,
	shutdownSignal chan bool) error {

	ch := make(chan *nats.Msg, 64)
	log.Printf("Subscribing to vehicle patches on subject:%s on nats: %v\n", patchSubject, natsConn.Servers())
	sub, err := natsConn.ChanSubscribe(patchSubject, ch)
	if err != nil {
		return fmt.Errorf("unable to establish subscription to nats server: %w", err)
	}

	for {
		select {
		case msg := <-ch:
			processPatchFromMsg(log, msg, liveFleet)
		case <-shutdownSignal:
			log.Printf("ending vehicle patch listener on shutdown signal\n")
			if err = sub.Unsubscribe(); err != nil {
				log.Printf("Error unsubscribing to nats:%s", err)
			}
			return nil
		}
	}
}

// processPatchFromMsg un-marshals and validates a fleet.VehiclePatch from nats.Msg and applies it to liveFleet.
// Malformed patches are logged and dropped.
func processPatchFromMsg(log *logger.Logger, msg *nats.Msg, liveFleet *liveFleet) bool {
	patch, err := fleet.ParseVehiclePatch(msg.Data)
	if err != nil {
		log.Printf("error parsing VehiclePatch: %s, payload:%s", err, string(msg.Data))
		return false
	}
	return liveFleet.applyPatch(patch)
}
