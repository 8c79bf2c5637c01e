package fleet

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityKey identifies a Vehicle across synthesis passes. It is a composite of the route and stop the vehicle
// was synthesized for, so the same pair always produces the same key.
type EntityKey string

// MakeEntityKey builds the EntityKey for a route and stop.
// The route is length prefixed ("<len>:<route>/<stop>") so no two distinct pairs produce the same key,
// whatever characters the names contain.
func MakeEntityKey(route string, stop string) EntityKey {
	return EntityKey(strconv.Itoa(len(route)) + ":" + route + "/" + stop)
}

// ParseEntityKey recovers the route and stop an EntityKey was built from
func ParseEntityKey(key EntityKey) (route string, stop string, err error) {
	s := string(key)
	colon := strings.IndexByte(s, ':')
	if colon < 1 {
		return "", "", fmt.Errorf("entity key %q has no route length", s)
	}
	routeLen, err := strconv.Atoi(s[:colon])
	if err != nil || routeLen < 0 {
		return "", "", fmt.Errorf("entity key %q has invalid route length", s)
	}
	rest := s[colon+1:]
	if len(rest) < routeLen+1 || rest[routeLen] != '/' {
		return "", "", fmt.Errorf("entity key %q is too short for route length %d", s, routeLen)
	}
	return rest[:routeLen], rest[routeLen+1:], nil
}

// Route returns the route portion of the key, or an empty string for a malformed key
func (k EntityKey) Route() string {
	route, _, _ := ParseEntityKey(k)
	return route
}

// Stop returns the stop portion of the key, or an empty string for a malformed key
func (k EntityKey) Stop() string {
	_, stop, _ := ParseEntityKey(k)
	return stop
}
