package mqtmodels

import "time"

// Machine status values
const (
	MachineHealthy     = "healthy"
	MachineMaintenance = "maintenance"
)

// Machine is one tile of the status board
type Machine struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Timer       string `json:"timer"`
	Counter     string `json:"counter"`
}

// BoxDevice is a device listed under a box with its current telemetry
type BoxDevice struct {
	DeviceID string            `json:"device_id"`
	ModuleID string            `json:"module_id"`
	Values   map[string]string `json:"values"`
}

// Box groups devices by entity name
type Box struct {
	Name    string      `json:"name"`
	Devices []BoxDevice `json:"devices"`
}

// Board is the machine-status snapshot of a site
type Board struct {
	SiteName         string     `json:"siteName"`
	Machines         []Machine  `json:"machines"`
	Boxes            []Box      `json:"boxes"`
	LastUpdated      *time.Time `json:"last_updated"`
	LastUpdatedLabel string     `json:"last_updated_label"`
	GeneratedAt      time.Time  `json:"generated_at"`
}
