package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

// EventQuery selects events of one device module
type EventQuery struct {
	DeviceID   string
	EntityName string
	ModuleID   int
	Limit      int
}

type EventRepository interface {
	// Write events (append only)
	InsertOne(ctx context.Context, e mqtmodels.DeviceEvent) error
	InsertMany(ctx context.Context, es []mqtmodels.DeviceEvent) error

	// Newest first, at most q.Limit
	FindLatest(ctx context.Context, q EventQuery) ([]mqtmodels.DeviceEvent, error)

	// Newest event for a device module, nil when there is none
	FindLatestByDeviceModule(ctx context.Context, deviceID string, moduleID int) (*mqtmodels.DeviceEvent, error)
}
