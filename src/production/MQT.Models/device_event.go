package mqtmodels

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity fields of a DeviceEvent document. Everything else is telemetry.
const (
	EventFieldID         = "_id"
	EventFieldDeviceID   = "device_id"
	EventFieldEntityName = "entity_name"
	EventFieldModuleID   = "module_id"
	EventFieldCreatedAt  = "createdAt"
)

// DeviceEvent is one immutable telemetry snapshot from a device module.
// Telemetry pairs are stored as top-level document fields next to the identity.
type DeviceEvent struct {
	ID         primitive.ObjectID
	DeviceID   string
	EntityName string
	ModuleID   int
	CreatedAt  time.Time
	Fields     map[string]string
}

// IsIdentityField reports whether name is one of the reserved event fields
func IsIdentityField(name string) bool {
	switch name {
	case EventFieldID, EventFieldDeviceID, EventFieldEntityName, EventFieldModuleID, EventFieldCreatedAt, "__v":
		return true
	}
	return false
}

// ToDocument renders the event in its stored shape
func (e DeviceEvent) ToDocument() bson.D {
	doc := bson.D{}
	if !e.ID.IsZero() {
		doc = append(doc, bson.E{Key: EventFieldID, Value: e.ID})
	}
	doc = append(doc,
		bson.E{Key: EventFieldDeviceID, Value: e.DeviceID},
		bson.E{Key: EventFieldEntityName, Value: e.EntityName},
		bson.E{Key: EventFieldModuleID, Value: e.ModuleID},
		bson.E{Key: EventFieldCreatedAt, Value: e.CreatedAt},
	)
	for _, key := range SortedKeys(e.Fields) {
		if IsIdentityField(key) {
			continue
		}
		doc = append(doc, bson.E{Key: key, Value: e.Fields[key]})
	}
	return doc
}

// EventFromDocument reads a stored event. Telemetry values of non-string
// types are rendered to strings.
func EventFromDocument(doc bson.M) (*DeviceEvent, error) {
	event := &DeviceEvent{Fields: make(map[string]string)}
	for key, raw := range doc {
		switch key {
		case EventFieldID:
			if oid, ok := raw.(primitive.ObjectID); ok {
				event.ID = oid
			}
		case EventFieldDeviceID:
			event.DeviceID = RenderValue(raw)
		case EventFieldEntityName:
			event.EntityName = RenderValue(raw)
		case EventFieldModuleID:
			moduleID, err := toInt(raw)
			if err != nil {
				return nil, fmt.Errorf("decode module_id: %w", err)
			}
			event.ModuleID = moduleID
		case EventFieldCreatedAt:
			switch ts := raw.(type) {
			case primitive.DateTime:
				event.CreatedAt = ts.Time().UTC()
			case time.Time:
				event.CreatedAt = ts.UTC()
			}
		case "__v":
		default:
			event.Fields[key] = RenderValue(raw)
		}
	}
	return event, nil
}

// MarshalJSON flattens telemetry keys next to the identity fields
func (e DeviceEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+5)
	for key, value := range e.Fields {
		out[key] = value
	}
	if !e.ID.IsZero() {
		out[EventFieldID] = e.ID.Hex()
	}
	out[EventFieldDeviceID] = e.DeviceID
	out[EventFieldEntityName] = e.EntityName
	out[EventFieldModuleID] = e.ModuleID
	out[EventFieldCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// RenderValue converts a decoded telemetry value to its string form
func RenderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return val.Hex()
	default:
		return fmt.Sprint(val)
	}
}

func toInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case int32:
		return int(val), nil
	case int64:
		return int(val), nil
	case int:
		return val, nil
	case float64:
		return int(val), nil
	case string:
		return strconv.Atoi(val)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
