package classifier

import (
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

// Field is a classified telemetry value. The set of implementations is closed.
type Field interface {
	FieldKey() string
	FieldValue() string
	Role() Role
	isField()
}

type base struct {
	Key   string
	Value string
}

func (b base) FieldKey() string   { return b.Key }
func (b base) FieldValue() string { return b.Value }
func (base) isField()             {}

// StatusField carries a machine status code
type StatusField struct{ base }

func (StatusField) Role() Role { return RoleStatus }

// Maintenance reports whether the status code marks the machine as under maintenance
func (f StatusField) Maintenance() bool { return f.Value == "1" }

// CounterField carries a cycle count
type CounterField struct{ base }

func (CounterField) Role() Role { return RoleCounter }

// TimerField carries an elapsed time
type TimerField struct{ base }

func (TimerField) Role() Role { return RoleTimer }

// UnclassifiedField carries any other telemetry value
type UnclassifiedField struct{ base }

func (UnclassifiedField) Role() Role { return RoleUnclassified }

// NewField builds the variant matching key
func NewField(key, value string) Field {
	b := base{Key: key, Value: value}
	switch Classify(key) {
	case RoleStatus:
		return StatusField{b}
	case RoleCounter:
		return CounterField{b}
	case RoleTimer:
		return TimerField{b}
	default:
		return UnclassifiedField{b}
	}
}

// FieldsOf classifies every telemetry value of event, ordered by key
func FieldsOf(event *mqtmodels.DeviceEvent) []Field {
	if event == nil {
		return nil
	}
	keys := mqtmodels.SortedKeys(event.Fields)
	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, NewField(key, event.Fields[key]))
	}
	return fields
}
