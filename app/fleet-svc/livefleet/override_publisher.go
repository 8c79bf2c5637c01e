package livefleet

import (
	"encoding/json"
	"fmt"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/nats-io/nats.go"
)

// overridePublicationDestination is where crowd override events are sent after being applied
type overridePublicationDestination interface {
	Publish(event *fleet.CrowdOverrideEvent) error
}

// natsOverridePublicationDestination sends crowd override events over nats
type natsOverridePublicationDestination struct {
	natsConn        *nats.Conn
	overrideSubject string
}

// makeNatsOverridePublicationDestination builds natsOverridePublicationDestination
func makeNatsOverridePublicationDestination(natsConn *nats.Conn,
	overrideSubject string) *natsOverridePublicationDestination {
	return &natsOverridePublicationDestination{
		natsConn:        natsConn,
		overrideSubject: overrideSubject,
	}
}

// Publish implements overridePublicationDestination by sending event as json on overrideSubject
func (n *natsOverridePublicationDestination) Publish(event *fleet.CrowdOverrideEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling crowd override event to json: %w", err)
	}
	return n.natsConn.Publish(n.overrideSubject, jsonData)
}
