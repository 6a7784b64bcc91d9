// Package classifier interprets telemetry keys by their prefix.
//
// Keys starting with "2," carry machine status. Keys starting with "3," carry
// a timer when the suffix has two characters and a counter when it has one.
// Anything else is left unclassified.
package classifier

import (
	"sort"
	"strings"
	"unicode/utf8"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

const (
	StatusPrefix  = "2,"
	MeasurePrefix = "3,"
)

// Role is the meaning assigned to a telemetry key
type Role int

const (
	RoleUnclassified Role = iota
	RoleStatus
	RoleCounter
	RoleTimer
)

func (r Role) String() string {
	switch r {
	case RoleStatus:
		return "status"
	case RoleCounter:
		return "counter"
	case RoleTimer:
		return "timer"
	default:
		return "unclassified"
	}
}

// Classify returns the role of key
func Classify(key string) Role {
	switch {
	case strings.HasPrefix(key, StatusPrefix):
		return RoleStatus
	case strings.HasPrefix(key, MeasurePrefix):
		switch utf8.RuneCountInString(key[len(MeasurePrefix):]) {
		case 2:
			return RoleTimer
		case 1:
			return RoleCounter
		}
	}
	return RoleUnclassified
}

// IsDiscoverable reports whether key belongs to a classified prefix
func IsDiscoverable(key string) bool {
	return strings.HasPrefix(key, StatusPrefix) || strings.HasPrefix(key, MeasurePrefix)
}

// DiscoverKeys returns the sorted union of status and measure keys across events
func DiscoverKeys(events []mqtmodels.DeviceEvent) []string {
	seen := make(map[string]struct{})
	for _, event := range events {
		for key := range event.Fields {
			if IsDiscoverable(key) {
				seen[key] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
