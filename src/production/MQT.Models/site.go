package mqtmodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DynamicField is one configured telemetry key of a device
type DynamicField struct {
	ID          *primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Key         string              `bson:"key" json:"key"`
	Value       string              `bson:"value,omitempty" json:"value,omitempty"`
	ActiveValue string              `bson:"activeValue" json:"activeValue"`
}

// Device is a registered device module within a site
// Sub-document ids are kept as stored so rewrites of Devices preserve them.
type Device struct {
	ID            *primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	DeviceID      string              `bson:"device_id" json:"device_id"`
	ModuleID      string              `bson:"module_id" json:"module_id"`
	DynamicFields []DynamicField      `bson:"dynamic_fields" json:"dynamic_fields"`
}

// Site groups the registered devices of one installation
type Site struct {
	SiteName  string    `bson:"siteName" json:"siteName"`
	Devices   []Device  `bson:"Devices" json:"Devices"`
	Version   int       `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// FindDevice returns the first device with the given id
func (s *Site) FindDevice(deviceID string) (*Device, bool) {
	for i := range s.Devices {
		if s.Devices[i].DeviceID == deviceID {
			return &s.Devices[i], true
		}
	}
	return nil, false
}

// EnsureFields replaces a nil field list with an empty one
func (d Device) EnsureFields() Device {
	if d.DynamicFields == nil {
		d.DynamicFields = []DynamicField{}
	}
	return d
}

// CloneDevices deep-copies a device list
func CloneDevices(devices []Device) []Device {
	if devices == nil {
		return nil
	}
	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = d
		if d.DynamicFields != nil {
			out[i].DynamicFields = make([]DynamicField, len(d.DynamicFields))
			copy(out[i].DynamicFields, d.DynamicFields)
		}
	}
	return out
}

// DeviceLatestEvent pairs a registered device with its newest event, if any
type DeviceLatestEvent struct {
	DeviceID    string       `json:"device_id"`
	ModuleID    string       `json:"module_id"`
	LatestEvent *DeviceEvent `json:"latest_event"`
}
